// Package diskio is the on-disk file manager the buffer pool fetches pages
// through: open a heap's backing files, read/write fixed-size blocks by
// page number, allocate new page ids. It is deliberately thin — no
// caching, no WAL, no compaction — so that everything above it (the
// buffer pool, the replacer, the page codec) can be exercised against a
// real file instead of a fake.
package diskio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/tuannm99/novadb/internal/storage"
)

// superblock is the heap's small piece of metadata that must survive a
// crash without ever being torn; it is rewritten wholesale on every
// AllocatePage, so it is cheap to protect with a write-temp-then-rename.
type superblock struct {
	PageCount   uint32 `json:"page_count"`
	FirstPageID uint32 `json:"first_page_id"`
}

// FileManager owns one heap's backing files: a data file holding
// PageSize-aligned blocks, and a superblock file holding page count and
// the chain's head.
type FileManager struct {
	dataPath string
	sbPath   string

	data *os.File
	sb   superblock

	lock unixLock
}

// Open opens (creating if necessary) the heap backed by files at
// dir/name.db and dir/name.sb.json. On unix, it takes an advisory
// exclusive flock on the data file so a second process cannot open the
// same heap concurrently.
func Open(dir, name string) (*FileManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diskio: create dir: %w", err)
	}

	dataPath := dir + "/" + name + ".db"
	sbPath := dir + "/" + name + ".sb.json"

	f, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("diskio: open data file: %w", err)
	}

	lk, err := lockFile(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("diskio: lock data file: %w", err)
	}

	fm := &FileManager{dataPath: dataPath, sbPath: sbPath, data: f, lock: lk}

	if sb, err := readSuperblock(sbPath); err == nil {
		fm.sb = sb
	} else if !os.IsNotExist(err) {
		_ = fm.Close()
		return nil, fmt.Errorf("diskio: read superblock: %w", err)
	}

	return fm, nil
}

func readSuperblock(path string) (superblock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return superblock{}, err
	}
	var sb superblock
	if err := json.Unmarshal(data, &sb); err != nil {
		return superblock{}, fmt.Errorf("diskio: decode superblock: %w", err)
	}
	return sb, nil
}

func (fm *FileManager) writeSuperblock() error {
	data, err := json.Marshal(fm.sb)
	if err != nil {
		return fmt.Errorf("diskio: encode superblock: %w", err)
	}
	if err := atomic.WriteFile(fm.sbPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: write superblock: %v", storage.ErrIO, err)
	}
	return nil
}

// AllocatePage extends the heap by one page and returns its id. Page ids
// start at 1; 0 is storage.InvalidPageID and is never allocated.
func (fm *FileManager) AllocatePage() (uint32, error) {
	fm.sb.PageCount++
	id := fm.sb.PageCount
	if err := fm.writeSuperblock(); err != nil {
		fm.sb.PageCount--
		return 0, err
	}
	return id, nil
}

// FirstPageID returns the heap's current chain head, or
// storage.InvalidPageID if the heap is empty.
func (fm *FileManager) FirstPageID() uint32 { return fm.sb.FirstPageID }

// SetFirstPageID records the heap's chain head.
func (fm *FileManager) SetFirstPageID(id uint32) error {
	fm.sb.FirstPageID = id
	return fm.writeSuperblock()
}

// PageCount returns the number of pages ever allocated in this heap.
func (fm *FileManager) PageCount() uint32 { return fm.sb.PageCount }

func blockOffset(pageID uint32) int64 {
	// Page ids are 1-based; block 0 on disk holds page id 1.
	return int64(pageID-1) * storage.PageSize
}

// ReadPage reads the PageSize-byte block for pageID into buf. Reading a
// page beyond the current end of file returns a zero-filled buffer (the
// page was allocated but never flushed).
func (fm *FileManager) ReadPage(pageID uint32, buf []byte) error {
	if len(buf) != storage.PageSize {
		return fmt.Errorf("diskio: read buffer must be PageSize bytes")
	}
	n, err := fm.data.ReadAt(buf, blockOffset(pageID))
	if err != nil && n == 0 {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read page %d: %v", storage.ErrIO, pageID, err)
	}
	return nil
}

// WritePage writes buf (exactly PageSize bytes) to pageID's block.
func (fm *FileManager) WritePage(pageID uint32, buf []byte) error {
	if len(buf) != storage.PageSize {
		return fmt.Errorf("diskio: write buffer must be PageSize bytes")
	}
	if _, err := fm.data.WriteAt(buf, blockOffset(pageID)); err != nil {
		return fmt.Errorf("%w: write page %d: %v", storage.ErrIO, pageID, err)
	}
	return nil
}

// Close releases the file lock and closes the backing file.
func (fm *FileManager) Close() error {
	unlockFile(fm.lock)
	return fm.data.Close()
}
