//go:build !unix

package diskio

import "os"

// unixLock is a no-op placeholder on platforms without flock semantics.
type unixLock = int

func lockFile(f *os.File) (unixLock, error) { return -1, nil }

func unlockFile(fd unixLock) {}
