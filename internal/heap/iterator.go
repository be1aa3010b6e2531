package heap

import (
	"github.com/tuannm99/novadb/internal/storage"
)

// Item is one tuple emitted by the Iterator: its record id and payload.
// Tombstones are filtered out before reaching the caller.
type Item struct {
	RecordID storage.RecordID
	Tuple    []byte
}

// Iterator is a forward cursor over a heap's page chain, grounded on
// TableTupleIterator. It pins a page only for the duration of one Next
// call, not across calls — it keeps no page reference between calls,
// which keeps handle lifetimes short.
type Iterator struct {
	pool        pool
	currentPage uint32
	currentSlot uint32
	done        bool
}

func newIterator(p pool, firstPageID uint32) *Iterator {
	return &Iterator{pool: p, currentPage: firstPageID}
}

// Next returns the next live tuple, or (Item{}, false, nil) once the
// chain is exhausted. A fetch error is returned exactly once; every call
// after that also reports end-of-iteration (non-resumable at this level).
func (it *Iterator) Next() (Item, bool, error) {
	if it.done {
		return Item{}, false, nil
	}

	for {
		if it.currentPage == storage.InvalidPageID {
			it.done = true
			return Item{}, false, nil
		}

		handle, err := it.pool.FetchPageHandle(it.currentPage)
		if err != nil {
			it.done = true
			return Item{}, false, err
		}

		v := storage.NewView(handle.PageID(), handle.Data())
		tupleCount := v.TupleCount()

		for it.currentSlot < tupleCount {
			slotID := it.currentSlot
			it.currentSlot++

			rid := storage.NewRecordID(it.currentPage, slotID)
			meta, tuple, err := v.GetTuple(rid)
			if err != nil {
				_ = handle.Release()
				it.done = true
				return Item{}, false, err
			}
			if meta.IsDeleted {
				continue
			}
			_ = handle.Release()
			return Item{RecordID: rid, Tuple: tuple}, true, nil
		}

		next := v.NextPageID()
		_ = handle.Release()
		it.currentPage = next
		it.currentSlot = 0
	}
}
