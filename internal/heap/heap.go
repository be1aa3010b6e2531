// Package heap implements a table heap: a singly-linked chain of
// table-page frames, plus the convenience CRUD operations and scan
// iterator built on top of it, trimmed of the catalog/overflow-row
// concerns that belong to a query layer this module does not implement.
package heap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tuannm99/novadb/internal/bufferpool"
	"github.com/tuannm99/novadb/internal/storage"
)

// pool is the subset of *bufferpool.Pool the heap needs.
type pool interface {
	CreatePageHandle() (*bufferpool.MutableFrameHandle, error)
	FetchPageHandle(pageID uint32) (*bufferpool.ReadOnlyFrameHandle, error)
}

// Heap is a chain of table pages reachable from firstPageID, each linked
// to the next via its NextPageID header field.
//
// The iterator assumes the heap is stable during a scan; callers that
// mutate the heap concurrently with an open scan are responsible for
// their own external synchronization.
type Heap struct {
	pool pool

	mu          sync.RWMutex
	firstPageID uint32
	lastPageID  uint32
}

// New creates an empty heap with one allocated first page.
func New(p pool) (*Heap, error) {
	h := &Heap{pool: p}
	first, err := h.appendPageLocked()
	if err != nil {
		return nil, err
	}
	h.firstPageID = first
	h.lastPageID = first
	return h, nil
}

// Open reattaches to an existing heap whose chain head is already known
// (persisted by the caller, e.g. in a superblock).
func Open(p pool, firstPageID uint32) (*Heap, error) {
	return &Heap{pool: p, firstPageID: firstPageID, lastPageID: lastPageIDOf(p, firstPageID)}, nil
}

// lastPageIDOf walks the chain to find its tail, so Insert can append
// without re-walking the chain on every call.
func lastPageIDOf(p pool, firstPageID uint32) uint32 {
	current := firstPageID
	for {
		handle, err := p.FetchPageHandle(current)
		if err != nil {
			return current
		}
		next := storage.NewView(handle.PageID(), handle.Data()).NextPageID()
		_ = handle.Release()
		if next == storage.InvalidPageID {
			return current
		}
		current = next
	}
}

// FirstPageID returns the heap's chain head.
func (h *Heap) FirstPageID() uint32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.firstPageID
}

// appendPageLocked allocates a fresh page, initializes its header with
// next_page_id = storage.InvalidPageID, and returns its id. Caller holds
// h.mu for writing.
func (h *Heap) appendPageLocked() (uint32, error) {
	handle, err := h.pool.CreatePageHandle()
	if err != nil {
		return 0, fmt.Errorf("heap: allocate page: %w", err)
	}
	defer handle.Release()

	mv := storage.NewMutableView(handle.PageID(), handle.DataMut())
	mv.InitHeader(storage.InvalidPageID)
	return handle.PageID(), nil
}

// fetchMutable pins pageID for writing. Releasing the returned handle
// marks the frame dirty, so the change is flushed before eviction.
func (h *Heap) fetchMutable(pageID uint32) (*bufferpool.MutableFrameHandle, error) {
	ro, err := h.pool.FetchPageHandle(pageID)
	if err != nil {
		return nil, err
	}
	return &bufferpool.MutableFrameHandle{ReadOnlyFrameHandle: *ro}, nil
}

// Insert appends tuple to the heap, growing the page chain if the last
// page has no room.
func (h *Heap) Insert(meta storage.TupleMetadata, tuple []byte) (storage.RecordID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	handle, err := h.fetchMutable(h.lastPageID)
	if err != nil {
		return storage.RecordID{}, fmt.Errorf("heap: fetch last page: %w", err)
	}
	mv := storage.NewMutableView(handle.PageID(), handle.DataMut())
	rid, err := mv.InsertTuple(meta, tuple)
	if err == nil {
		_ = handle.Release()
		return rid, nil
	}
	_ = handle.Release()
	if !errors.Is(err, storage.ErrOutOfSpace) {
		return storage.RecordID{}, err
	}

	newPageID, err := h.appendPageLocked()
	if err != nil {
		return storage.RecordID{}, err
	}

	prevHandle, err := h.fetchMutable(h.lastPageID)
	if err != nil {
		return storage.RecordID{}, fmt.Errorf("heap: link new page: %w", err)
	}
	storage.NewMutableView(prevHandle.PageID(), prevHandle.DataMut()).SetNextPageID(newPageID)
	_ = prevHandle.Release()

	h.lastPageID = newPageID

	handle, err = h.fetchMutable(newPageID)
	if err != nil {
		return storage.RecordID{}, fmt.Errorf("heap: fetch new page: %w", err)
	}
	defer handle.Release()
	mv = storage.NewMutableView(handle.PageID(), handle.DataMut())
	return mv.InsertTuple(meta, tuple)
}

// Get fetches a tuple's metadata and payload by record id, regardless of
// tombstone state (mirrors storage.View.GetTuple — callers decide what
// to do with a deleted slot).
func (h *Heap) Get(rid storage.RecordID) (storage.TupleMetadata, []byte, error) {
	handle, err := h.pool.FetchPageHandle(rid.PageID())
	if err != nil {
		return storage.TupleMetadata{}, nil, fmt.Errorf("heap: fetch page %d: %w", rid.PageID(), err)
	}
	defer handle.Release()
	v := storage.NewView(handle.PageID(), handle.Data())
	return v.GetTuple(rid)
}

// Delete marks rid as a tombstone. Logical deletion only — the payload
// bytes stay in place.
func (h *Heap) Delete(rid storage.RecordID) error {
	return h.Update(rid, storage.TupleMetadata{IsDeleted: true})
}

// Update writes new slot metadata for rid through to its page.
func (h *Heap) Update(rid storage.RecordID, meta storage.TupleMetadata) error {
	handle, err := h.fetchMutable(rid.PageID())
	if err != nil {
		return fmt.Errorf("heap: fetch page %d: %w", rid.PageID(), err)
	}
	defer handle.Release()
	mv := storage.NewMutableView(handle.PageID(), handle.DataMut())
	return mv.UpdateTupleMetadata(rid, meta)
}

// Iterator returns a fresh scan cursor positioned at the heap's first
// page, first slot.
func (h *Heap) Iterator() *Iterator {
	return newIterator(h.pool, h.FirstPageID())
}
