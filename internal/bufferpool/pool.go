package bufferpool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tuannm99/novadb/internal/storage"
)

// DefaultCapacity is the frame count a Pool is given when the caller
// doesn't size it explicitly.
var DefaultCapacity = 128

// pinCount is a page's pin count, panicking if it is ever decremented
// below zero.
type pinCount struct{ n int32 }

func (p *pinCount) inc() { atomic.AddInt32(&p.n, 1) }

// dec decrements the pin count and reports whether it reached zero.
func (p *pinCount) dec() bool {
	n := atomic.AddInt32(&p.n, -1)
	if n < 0 {
		panic("bufferpool: pin count dropped below zero")
	}
	return n == 0
}

func (p *pinCount) get() int32 { return atomic.LoadInt32(&p.n) }

// frame is one resident page: its bytes, its pin count, and whether it
// needs to be written back before its slot is reused.
type frame struct {
	pageID uint32
	buf    []byte
	pin    pinCount
	dirty  bool
	valid  bool // false for a never-used slot
}

// Pool owns a fixed number of frames backed by a fileManager. It pins
// pages for callers and, when full, evicts the frame the Replacer picks.
type Pool struct {
	fm   fileManager
	repl Replacer

	mu     sync.Mutex
	frames []frame
	table  map[uint32]int // pageID -> frame index
}

// New builds a Pool of the given capacity (DefaultCapacity if <= 0)
// backed by fm and evicting via repl.
func New(fm fileManager, repl Replacer, capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		fm:     fm,
		repl:   repl,
		frames: make([]frame, capacity),
		table:  make(map[uint32]int, capacity),
	}
}

func (p *Pool) frameData(idx int) []byte { return p.frames[idx].buf }

// CreatePageHandle allocates a new page id from the disk manager and
// returns a pinned, zero-initialized mutable frame for it.
func (p *Pool) CreatePageHandle() (*MutableFrameHandle, error) {
	pageID, err := p.fm.AllocatePage()
	if err != nil {
		return nil, fmt.Errorf("bufferpool: allocate page: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.reserveFrameLocked(pageID)
	if err != nil {
		return nil, err
	}
	f := &p.frames[idx]
	for i := range f.buf {
		f.buf[i] = 0
	}
	f.dirty = true

	return &MutableFrameHandle{ReadOnlyFrameHandle{pool: p, idx: idx, pageID: pageID}}, nil
}

// FetchPageHandle pins pageID's frame, loading it from disk through the
// file manager if it isn't already resident.
func (p *Pool) FetchPageHandle(pageID uint32) (*ReadOnlyFrameHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.table[pageID]; ok {
		f := &p.frames[idx]
		wasUnpinned := f.pin.get() == 0
		f.pin.inc()
		p.repl.RecordAccess(idx)
		if wasUnpinned {
			p.repl.Pin(idx)
		}
		return &ReadOnlyFrameHandle{pool: p, idx: idx, pageID: pageID}, nil
	}

	idx, err := p.reserveFrameLocked(pageID)
	if err != nil {
		return nil, err
	}
	f := &p.frames[idx]
	if err := p.fm.ReadPage(pageID, f.buf); err != nil {
		p.abandonFrameLocked(idx)
		return nil, err
	}

	return &ReadOnlyFrameHandle{pool: p, idx: idx, pageID: pageID}, nil
}

// reserveFrameLocked finds a free slot, or evicts one via the replacer,
// and claims it for pageID with a pin count of 1. Caller holds p.mu.
func (p *Pool) reserveFrameLocked(pageID uint32) (int, error) {
	idx := -1
	for i := range p.frames {
		if !p.frames[i].valid {
			idx = i
			break
		}
	}

	if idx == -1 {
		victim, ok := p.repl.Evict()
		if !ok {
			return -1, ErrNoFreeFrame
		}
		v := &p.frames[victim]
		if v.dirty {
			if err := p.fm.WritePage(v.pageID, v.buf); err != nil {
				// Evict already deleted victim's node, so Unpin alone would
				// be a no-op on an unknown frame. Recreate the node first,
				// then mark it evictable again so the frame can still be
				// picked on a later Evict call.
				p.repl.RecordAccess(victim)
				p.repl.Unpin(victim)
				return -1, fmt.Errorf("bufferpool: flush victim page %d: %w", v.pageID, err)
			}
		}
		delete(p.table, v.pageID)
		idx = victim
	}

	f := &p.frames[idx]
	if f.buf == nil {
		f.buf = make([]byte, storage.PageSize)
	}
	f.pageID = pageID
	f.pin = pinCount{n: 1}
	f.dirty = false
	f.valid = true

	p.table[pageID] = idx
	p.repl.RecordAccess(idx)
	p.repl.Pin(idx)

	return idx, nil
}

// abandonFrameLocked undoes reserveFrameLocked when loading the page
// that was just reserved for fails, freeing the slot back up.
func (p *Pool) abandonFrameLocked(idx int) {
	f := &p.frames[idx]
	delete(p.table, f.pageID)
	f.valid = false
	// Remove only drops evictable frames, so make it evictable first —
	// reserveFrameLocked pinned it non-evictable on the caller's behalf.
	p.repl.Unpin(idx)
	p.repl.Remove(idx)
}

// unpin decrements a frame's pin count, marking it dirty if requested
// and, once the count reaches zero, telling the replacer it is now an
// eviction candidate.
func (p *Pool) unpin(idx int, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := &p.frames[idx]
	if dirty {
		f.dirty = true
	}
	if f.pin.dec() {
		p.repl.Unpin(idx)
	}
	return nil
}

// FlushAll writes every dirty resident frame back through the file
// manager.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.frames {
		f := &p.frames[i]
		if !f.valid || !f.dirty {
			continue
		}
		if err := p.fm.WritePage(f.pageID, f.buf); err != nil {
			return fmt.Errorf("bufferpool: flush page %d: %w", f.pageID, err)
		}
		f.dirty = false
	}
	return nil
}
