// heapctl is a small interactive CLI for exercising a heap end-to-end:
// insert, fetch, delete and scan tuples against a disk-backed file,
// through the buffer pool and LRU-K replacer.
//
// Usage:
//
//	heapctl --dir ./data --name orders --capacity 128 --k 2
//
// REPL commands:
//
//	insert <text>        Insert a tuple, prints its record id
//	get <pageID:slotID>  Fetch a tuple by record id
//	delete <pageID:slotID> Mark a tuple as deleted
//	scan                 List all live tuples
//	stats                Show heap stats
//	help                 Show this help
//	exit / quit / q      Exit
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/spf13/pflag"

	"github.com/tuannm99/novadb/internal/bufferpool"
	"github.com/tuannm99/novadb/internal/config"
	"github.com/tuannm99/novadb/internal/diskio"
	"github.com/tuannm99/novadb/internal/heap"
	"github.com/tuannm99/novadb/internal/storage"
	"github.com/tuannm99/novadb/pkg/lruk"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()

	dir := pflag.String("dir", cfg.Heap.Dir, "directory holding the heap's files")
	name := pflag.String("name", cfg.Heap.Name, "heap name")
	capacity := pflag.Int("capacity", cfg.BufferPool.Capacity, "buffer pool frame capacity")
	k := pflag.Int("k", cfg.Replacer.K, "LRU-K history length")
	configPath := pflag.String("config", "", "optional YAML config file, overrides the flags above")
	pflag.Parse()

	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.Heap.Dir, cfg.Heap.Name, cfg.BufferPool.Capacity, cfg.Replacer.K = *dir, *name, *capacity, *k
	}

	sessionID := uuid.New()
	logger := slog.With("session", sessionID.String())
	logger.Info("heapctl starting", "dir", cfg.Heap.Dir, "name", cfg.Heap.Name,
		"capacity", cfg.BufferPool.Capacity, "k", cfg.Replacer.K)

	fm, err := diskio.Open(cfg.Heap.Dir, cfg.Heap.Name)
	if err != nil {
		return fmt.Errorf("heapctl: open heap: %w", err)
	}
	defer fm.Close()

	pool := bufferpoolFor(fm, cfg)

	var h *heap.Heap
	if fm.PageCount() == 0 {
		h, err = heap.New(pool)
	} else {
		h, err = heap.Open(pool, fm.FirstPageID())
	}
	if err != nil {
		return fmt.Errorf("heapctl: open table: %w", err)
	}
	if err := fm.SetFirstPageID(h.FirstPageID()); err != nil {
		return fmt.Errorf("heapctl: record first page: %w", err)
	}

	session := &repl{heap: h, pool: pool, fm: fm, logger: logger, sessionID: sessionID}
	return session.run()
}

func bufferpoolFor(fm *diskio.FileManager, cfg config.Config) *bufferpool.Pool {
	return bufferpool.New(fm, lruk.New(cfg.Replacer.K), cfg.BufferPool.Capacity)
}

type repl struct {
	heap      *heap.Heap
	pool      *bufferpool.Pool
	fm        *diskio.FileManager
	logger    *slog.Logger
	sessionID uuid.UUID
	liner     *liner.State
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()
	r.liner.SetCtrlCAborts(true)

	fmt.Printf("heapctl session %s\n", r.sessionID)
	fmt.Println("Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("heapctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				return r.flush()
			}
			return fmt.Errorf("heapctl: read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			return r.flush()
		case "help", "?":
			r.printHelp()
		case "insert":
			r.cmdInsert(args)
		case "get":
			r.cmdGet(args)
		case "delete", "del":
			r.cmdDelete(args)
		case "scan":
			r.cmdScan()
		case "stats":
			r.cmdStats()
		case "debug":
			r.cmdDebug(args)
		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (r *repl) flush() error {
	if err := r.pool.FlushAll(); err != nil {
		return fmt.Errorf("heapctl: flush: %w", err)
	}
	if err := r.fm.SetFirstPageID(r.heap.FirstPageID()); err != nil {
		return fmt.Errorf("heapctl: persist chain head: %w", err)
	}
	return nil
}

func (r *repl) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  insert <text>          Insert a tuple, prints its record id")
	fmt.Println("  get <pageID:slotID>    Fetch a tuple by record id")
	fmt.Println("  delete <pageID:slotID> Mark a tuple as deleted")
	fmt.Println("  scan                   List all live tuples")
	fmt.Println("  stats                  Show heap stats")
	fmt.Println("  debug <pageID>         Dump a page's header and slot directory")
	fmt.Println("  help                   Show this help")
	fmt.Println("  exit / quit / q        Exit")
}

func (r *repl) cmdInsert(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: insert <text>")
		return
	}
	rid, err := r.heap.Insert(storage.TupleMetadata{}, []byte(strings.Join(args, " ")))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		r.logger.Warn("insert failed", "error", err)
		return
	}
	fmt.Printf("OK: inserted %s\n", rid)
}

func parseRecordID(s string) (storage.RecordID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return storage.RecordID{}, fmt.Errorf("expected pageID:slotID, got %q", s)
	}
	page, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return storage.RecordID{}, err
	}
	slot, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return storage.RecordID{}, err
	}
	return storage.NewRecordID(uint32(page), uint32(slot)), nil
}

func (r *repl) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: get <pageID:slotID>")
		return
	}
	rid, err := parseRecordID(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	meta, tuple, err := r.heap.Get(rid)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("deleted=%v  data=%q\n", meta.IsDeleted, tuple)
}

func (r *repl) cmdDelete(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: delete <pageID:slotID>")
		return
	}
	rid, err := parseRecordID(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if err := r.heap.Delete(rid); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("OK: deleted %s\n", rid)
}

func (r *repl) cmdScan() {
	it := r.heap.Iterator()
	count := 0
	for {
		item, ok, err := it.Next()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if !ok {
			break
		}
		fmt.Printf("%3d. %s  %q\n", count+1, item.RecordID, item.Tuple)
		count++
	}
	if count == 0 {
		fmt.Println("(empty)")
	}
}

func (r *repl) cmdStats() {
	fmt.Printf("First page:  %d\n", r.heap.FirstPageID())
	fmt.Printf("Page count:  %d\n", r.fm.PageCount())
}

func (r *repl) cmdDebug(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: debug <pageID>")
		return
	}
	pageID, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	handle, err := r.pool.FetchPageHandle(uint32(pageID))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer handle.Release()
	storage.NewView(handle.PageID(), handle.Data()).Debug(os.Stdout)
}
