package storage

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"
)

func utf8Preview(b []byte) string {
	if !utf8.Valid(b) {
		return ""
	}
	var buf bytes.Buffer
	for _, r := range string(b) {
		if unicode.IsPrint(r) && r != '\n' && r != '\r' && r != '\t' {
			buf.WriteRune(r)
		} else {
			buf.WriteByte('.')
		}
	}
	return buf.String()
}

func asciiPreview(b []byte) string {
	var buf bytes.Buffer
	for _, c := range b {
		r := rune(c)
		if unicode.IsPrint(r) && r != '\n' && r != '\r' && r != '\t' {
			buf.WriteRune(r)
		} else {
			buf.WriteByte('.')
		}
	}
	return buf.String()
}

// Debug prints the header, slot directory, and tuple previews to w. Meant
// for heapctl's debug command, not for production logging.
func (v View) Debug(w io.Writer) {
	fmt.Fprintf(w, "=== Page %d ===\n", v.PageID())
	fmt.Fprintf(w, "nextPageID=%d tupleCount=%d deletedCount=%d\n",
		v.NextPageID(), v.TupleCount(), v.DeletedTupleCount())

	fmt.Fprintln(w, "\n-- Slots --")
	slots := v.SlotArray()
	if len(slots) == 0 {
		fmt.Fprintln(w, "(none)")
	}
	const maxPreview = 32
	for i, s := range slots {
		status := "LIVE"
		if s.Metadata.IsDeleted {
			status = "DELETED"
		}
		data := v.buf[s.Offset : int(s.Offset)+int(s.Size)]
		preview := data
		if len(preview) > maxPreview {
			preview = preview[:maxPreview]
		}
		hexDump := hex.EncodeToString(preview)
		fmt.Fprintf(w, "[%d] %s off=%d size=%d hex=%s", i, status, s.Offset, s.Size, hexDump)
		if s := utf8Preview(preview); s != "" {
			fmt.Fprintf(w, " utf8=%q", s)
		} else {
			fmt.Fprintf(w, " ascii=%q", asciiPreview(preview))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "=== End Page ===")
}

// DebugString renders Debug into a string.
func (v View) DebugString() string {
	var b bytes.Buffer
	v.Debug(&b)
	return b.String()
}
