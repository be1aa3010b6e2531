package storage

import "github.com/tuannm99/novadb/pkg/bx"

// TablePage layout (bit-exact):
//
//	[0 .. HeaderSize)                         TablePageHeader
//	[HeaderSize .. HeaderSize+tupleCnt*SlotSize) slot directory, grows forward
//	...unused middle region...
//	[offset .. offset+size) per slot          tuple payloads, grow backward
//	                                           from PageSize
//
// TablePageHeader:
//
//	next_page_id      u32  offset 0
//	tuple_cnt         u32  offset 4
//	deleted_tuple_cnt u32  offset 8
//	reserved          [4]byte (zero) offset 12
const (
	hdrNextPageID = 0
	hdrTupleCnt   = 4
	hdrDeletedCnt = 8
)

// Slot directory entry layout (SlotSize == 6 bytes):
//
//	offset    u16  offset 0
//	size      u16  offset 2
//	metadata  u8 (is_deleted) + 1 reserved byte, offset 4
const (
	slotOffOffset = 0
	slotOffSize   = 2
	slotOffMeta   = 4
)

// TupleMetadata is the mutable per-slot state a caller can read and write.
// Only IsDeleted is meaningful; the rest of the metadata byte is reserved.
type TupleMetadata struct {
	IsDeleted bool
}

// Slot is a decoded slot-directory entry, returned by value for inspection.
type Slot struct {
	Offset   uint16
	Size     uint16
	Metadata TupleMetadata
}

// View is a read-only window over a page-sized byte frame, laid out as a
// table page. It never mutates buf.
type View struct {
	pageID uint32
	buf    []byte
}

// NewView wraps buf (which must be exactly PageSize bytes, owned by the
// caller's buffer-pool frame) as a read-only table page belonging to
// pageID.
func NewView(pageID uint32, buf []byte) View {
	if len(buf) != PageSize {
		panic("storage: page buffer must be exactly PageSize bytes")
	}
	return View{pageID: pageID, buf: buf}
}

// PageID delegates to the underlying frame, not to any header field: the
// table page header itself never stores its own page id.
func (v View) PageID() uint32 { return v.pageID }

func (v View) NextPageID() uint32 { return bx.U32At(v.buf, hdrNextPageID) }

func (v View) TupleCount() uint32 { return bx.U32At(v.buf, hdrTupleCnt) }

func (v View) DeletedTupleCount() uint32 { return bx.U32At(v.buf, hdrDeletedCnt) }

func (v View) slotOffset(slotID uint32) int {
	return HeaderSize + int(slotID)*SlotSize
}

func (v View) slotAt(slotID uint32) Slot {
	o := v.slotOffset(slotID)
	return Slot{
		Offset: bx.U16At(v.buf, o+slotOffOffset),
		Size:   bx.U16At(v.buf, o+slotOffSize),
		Metadata: TupleMetadata{
			IsDeleted: v.buf[o+slotOffMeta] != 0,
		},
	}
}

// SlotArray returns a read-only snapshot of the slot directory, length
// TupleCount(), in slot-id order.
func (v View) SlotArray() []Slot {
	n := v.TupleCount()
	out := make([]Slot, n)
	for i := range out {
		out[i] = v.slotAt(uint32(i))
	}
	return out
}

// GetTuple validates rid against this page and returns its metadata and a
// freshly copied tuple payload. It does NOT filter deleted tuples — the
// caller decides what to do with a tombstoned slot.
func (v View) GetTuple(rid RecordID) (TupleMetadata, []byte, error) {
	if rid.PageID() != v.pageID || rid.SlotID() >= v.TupleCount() {
		return TupleMetadata{}, nil, ErrInvalidInput
	}
	s := v.slotAt(rid.SlotID())
	tuple := make([]byte, s.Size)
	copy(tuple, v.buf[s.Offset:int(s.Offset)+int(s.Size)])
	return s.Metadata, tuple, nil
}

// MutableView supersets View with the operations that write through the
// frame. It shares the same backing slice, so reads via the embedded View
// always observe the latest writes.
type MutableView struct {
	View
}

// NewMutableView wraps buf as a read-write table page belonging to pageID.
func NewMutableView(pageID uint32, buf []byte) MutableView {
	return MutableView{View: NewView(pageID, buf)}
}

func (v MutableView) putSlot(slotID uint32, s Slot) {
	o := v.slotOffset(slotID)
	bx.PutU16At(v.buf, o+slotOffOffset, s.Offset)
	bx.PutU16At(v.buf, o+slotOffSize, s.Size)
	meta := byte(0)
	if s.Metadata.IsDeleted {
		meta = 1
	}
	v.buf[o+slotOffMeta] = meta
	v.buf[o+slotOffMeta+1] = 0
}

func (v MutableView) setTupleCount(n uint32)   { bx.PutU32At(v.buf, hdrTupleCnt, n) }
func (v MutableView) setDeletedCount(n uint32) { bx.PutU32At(v.buf, hdrDeletedCnt, n) }

// InitHeader writes a fresh header: next_page_id, tuple_cnt=0,
// deleted_tuple_cnt=0. Must be called exactly once on a freshly allocated
// page, before any insert.
func (v MutableView) InitHeader(nextPageID uint32) {
	for i := 0; i < HeaderSize; i++ {
		v.buf[i] = 0
	}
	bx.PutU32At(v.buf, hdrNextPageID, nextPageID)
}

// SetNextPageID updates the chain pointer, used when the heap grows past
// this page.
func (v MutableView) SetNextPageID(id uint32) {
	bx.PutU32At(v.buf, hdrNextPageID, id)
}

// InsertTuple places tuple at the next backward-growing offset and appends
// a directory entry for it. Slots are allocated in strictly decreasing
// offset order: the first tuple takes offset = PageSize - size.
//
// Returns ErrOutOfSpace if the slot directory and the new payload would
// overlap — the reference implementation this is grounded on omits this
// check.
func (v MutableView) InsertTuple(meta TupleMetadata, tuple []byte) (RecordID, error) {
	tupleCnt := v.TupleCount()

	var newOffset int
	if tupleCnt == 0 {
		newOffset = PageSize - len(tuple)
	} else {
		last := v.slotAt(tupleCnt - 1)
		newOffset = int(last.Offset) - len(tuple)
	}

	directoryEnd := HeaderSize + int(tupleCnt+1)*SlotSize
	if newOffset < directoryEnd {
		return RecordID{}, ErrOutOfSpace
	}

	v.setTupleCount(tupleCnt + 1)
	v.putSlot(tupleCnt, Slot{
		Offset:   uint16(newOffset),
		Size:     uint16(len(tuple)),
		Metadata: meta,
	})
	copy(v.buf[newOffset:newOffset+len(tuple)], tuple)

	return NewRecordID(v.pageID, tupleCnt), nil
}

// UpdateTupleMetadata writes is_deleted through to the slot directory
// in-place (the reference implementation this is grounded on mutates a
// local copy instead, losing the write). It also maintains
// DeletedTupleCount symmetrically: deleting increments it, undeleting
// decrements it.
func (v MutableView) UpdateTupleMetadata(rid RecordID, meta TupleMetadata) error {
	if rid.PageID() != v.pageID || rid.SlotID() >= v.TupleCount() {
		return ErrInvalidInput
	}
	s := v.slotAt(rid.SlotID())
	wasDeleted := s.Metadata.IsDeleted
	s.Metadata = meta
	v.putSlot(rid.SlotID(), s)

	switch {
	case !wasDeleted && meta.IsDeleted:
		v.setDeletedCount(v.DeletedTupleCount() + 1)
	case wasDeleted && !meta.IsDeleted:
		v.setDeletedCount(v.DeletedTupleCount() - 1)
	}
	return nil
}
