// Package bufferpool maps a page id to a fixed-size pinned frame, loading
// it from disk on a miss and picking eviction victims via a Replacer (the
// LRU-K policy in pkg/lruk) when the pool is full. The replacer has a
// single caller and lives behind the pool's own mutex, not its own.
package bufferpool

import "errors"

// ErrNoFreeFrame is returned when no unpinned frame is available to serve
// a new page — every frame is pinned by some in-flight caller.
var ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")

// Replacer decides which frame to evict when the pool is full. It trades
// only in opaque frame indices [0, capacity) — pkg/lruk satisfies this.
type Replacer interface {
	RecordAccess(frameID int)
	Pin(frameID int)
	Unpin(frameID int)
	Remove(frameID int)
	Evict() (frameID int, ok bool)
	EvictableCount() int
}

// fileManager is the on-disk collaborator the pool loads pages from and
// flushes them to. internal/diskio.FileManager satisfies this.
type fileManager interface {
	AllocatePage() (uint32, error)
	ReadPage(pageID uint32, buf []byte) error
	WritePage(pageID uint32, buf []byte) error
}

// ReadOnlyFrameHandle is a pinned, read-only view of one page's bytes.
// Release unpins it; calls after the first are no-ops.
type ReadOnlyFrameHandle struct {
	pool    *Pool
	idx     int
	pageID  uint32
	release bool
}

func (h *ReadOnlyFrameHandle) PageID() uint32 { return h.pageID }

func (h *ReadOnlyFrameHandle) Data() []byte { return h.pool.frameData(h.idx) }

// Release unpins the frame. Safe to call more than once.
func (h *ReadOnlyFrameHandle) Release() error {
	if h.release {
		return nil
	}
	h.release = true
	return h.pool.unpin(h.idx, false)
}

// MutableFrameHandle supersets ReadOnlyFrameHandle with write access; its
// Release marks the frame dirty so it gets flushed before eviction.
type MutableFrameHandle struct {
	ReadOnlyFrameHandle
}

func (h *MutableFrameHandle) DataMut() []byte { return h.pool.frameData(h.idx) }

func (h *MutableFrameHandle) Release() error {
	if h.release {
		return nil
	}
	h.release = true
	return h.pool.unpin(h.idx, true)
}
