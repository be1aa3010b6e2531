// Package storage implements the slotted table-page layout: a fixed-size
// byte frame with a forward-growing slot directory and a backward-growing
// tuple payload region.
package storage

import "errors"

const (
	// PageSize is the fixed size, in bytes, of every page. It is part of
	// the on-disk contract: any tool reading a page file must know this
	// value to decode it.
	PageSize = 8 * 1024

	// HeaderSize is the size of TablePageHeader: next_page_id(4) +
	// tuple_cnt(4) + deleted_tuple_cnt(4) + reserved(4).
	HeaderSize = 16

	// SlotSize is the size of one slot-directory entry: offset(2) +
	// size(2) + metadata(2, only the low byte meaningful).
	SlotSize = 6
)

// InvalidPageID is the sentinel page id marking end-of-chain. Page ids are
// allocated starting from 1 so that 0 is never a live page.
const InvalidPageID uint32 = 0

// Error taxonomy. These are the only errors the table-page
// codec can return; everything else is infallible given valid inputs.
var (
	// ErrInvalidInput signals a malformed RecordId: it does not address
	// this page, or its slot id is out of range.
	ErrInvalidInput = errors.New("storage: invalid record id for this page")

	// ErrOutOfSpace signals that a tuple does not fit in the remaining
	// free region between the slot directory and the payload area.
	ErrOutOfSpace = errors.New("storage: page has no space for tuple")

	// ErrIO wraps a failure from the underlying disk/buffer-pool layer.
	ErrIO = errors.New("storage: I/O error")
)
