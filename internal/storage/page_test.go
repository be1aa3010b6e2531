package storage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestPage(t *testing.T, pageID uint32, next uint32) MutableView {
	t.Helper()
	buf := make([]byte, PageSize)
	v := NewMutableView(pageID, buf)
	v.InitHeader(next)
	return v
}

func TestInsertThenGet(t *testing.T) {
	p := newTestPage(t, 0, 1)

	tuple := []byte{1, 2, 3, 4}
	meta := TupleMetadata{IsDeleted: false}

	rid, err := p.InsertTuple(meta, tuple)
	require.NoError(t, err)
	require.Equal(t, NewRecordID(0, 0), rid)

	require.EqualValues(t, 1, p.TupleCount())
	require.EqualValues(t, 1, p.NextPageID())

	gotMeta, gotTuple, err := p.GetTuple(rid)
	require.NoError(t, err)
	require.Equal(t, meta, gotMeta)
	require.True(t, cmp.Equal(tuple, gotTuple))
}

func TestInsertAllocatesOffsetsBackward(t *testing.T) {
	p := newTestPage(t, 0, InvalidPageID)

	a := []byte("first tuple payload")
	b := []byte("second, a little longer tuple")

	ridA, err := p.InsertTuple(TupleMetadata{}, a)
	require.NoError(t, err)
	ridB, err := p.InsertTuple(TupleMetadata{}, b)
	require.NoError(t, err)

	slots := p.SlotArray()
	require.Len(t, slots, 2)
	require.EqualValues(t, PageSize-len(a), slots[0].Offset)
	require.EqualValues(t, int(slots[0].Offset)-len(b), slots[1].Offset)

	_, gotA, err := p.GetTuple(ridA)
	require.NoError(t, err)
	require.Equal(t, a, gotA)
	_, gotB, err := p.GetTuple(ridB)
	require.NoError(t, err)
	require.Equal(t, b, gotB)
}

func TestInsertOutOfSpace(t *testing.T) {
	p := newTestPage(t, 0, InvalidPageID)

	big := make([]byte, PageSize-HeaderSize-SlotSize+1)
	_, err := p.InsertTuple(TupleMetadata{}, big)
	require.ErrorIs(t, err, ErrOutOfSpace)
	require.EqualValues(t, 0, p.TupleCount())
}

func TestGetTupleInvalidInput(t *testing.T) {
	p := newTestPage(t, 5, InvalidPageID)
	_, err := p.InsertTuple(TupleMetadata{}, []byte("x"))
	require.NoError(t, err)

	_, _, err = p.GetTuple(NewRecordID(5, 1))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = p.GetTuple(NewRecordID(6, 0))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateTupleMetadataWritesThrough(t *testing.T) {
	p := newTestPage(t, 0, InvalidPageID)
	rid, err := p.InsertTuple(TupleMetadata{}, []byte("tombstone me"))
	require.NoError(t, err)

	require.NoError(t, p.UpdateTupleMetadata(rid, TupleMetadata{IsDeleted: true}))

	meta, _, err := p.GetTuple(rid)
	require.NoError(t, err)
	require.True(t, meta.IsDeleted)
	require.EqualValues(t, 1, p.DeletedTupleCount())

	// Undelete is symmetric and decrements the counter back.
	require.NoError(t, p.UpdateTupleMetadata(rid, TupleMetadata{IsDeleted: false}))
	meta, _, err = p.GetTuple(rid)
	require.NoError(t, err)
	require.False(t, meta.IsDeleted)
	require.EqualValues(t, 0, p.DeletedTupleCount())
}

func TestUpdateTupleMetadataInvalidInput(t *testing.T) {
	p := newTestPage(t, 0, InvalidPageID)
	err := p.UpdateTupleMetadata(NewRecordID(0, 0), TupleMetadata{IsDeleted: true})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSlotDirectoryNeverOverlapsPayload(t *testing.T) {
	p := newTestPage(t, 0, InvalidPageID)

	for i := 0; i < 50; i++ {
		_, err := p.InsertTuple(TupleMetadata{}, []byte("abcdefgh"))
		if err != nil {
			require.ErrorIs(t, err, ErrOutOfSpace)
			break
		}
	}

	directoryEnd := HeaderSize + int(p.TupleCount())*SlotSize
	for _, s := range p.SlotArray() {
		require.GreaterOrEqual(t, int(s.Offset), directoryEnd)
		require.LessOrEqual(t, int(s.Offset)+int(s.Size), PageSize)
	}
}

func TestRecordIDRoundTrip(t *testing.T) {
	rid := NewRecordID(12345, 678)
	require.Equal(t, rid, RecordIDFromU64(rid.ToU64()))
}

func TestPersistenceAcrossFreshView(t *testing.T) {
	buf := make([]byte, PageSize)
	w := NewMutableView(3, buf)
	w.InitHeader(4)
	rid, err := w.InsertTuple(TupleMetadata{IsDeleted: false}, []byte("persisted"))
	require.NoError(t, err)

	// Simulate "fetch again": a fresh view over the same underlying bytes.
	r := NewView(3, buf)
	require.EqualValues(t, 4, r.NextPageID())
	require.EqualValues(t, 1, r.TupleCount())
	meta, tuple, err := r.GetTuple(rid)
	require.NoError(t, err)
	require.False(t, meta.IsDeleted)
	require.Equal(t, []byte("persisted"), tuple)
}
