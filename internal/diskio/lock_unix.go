//go:build unix

package diskio

import (
	"os"

	"golang.org/x/sys/unix"
)

// unixLock is the file descriptor we hold an advisory flock on.
type unixLock = int

// lockFile takes a non-blocking exclusive flock on f so that a second
// process cannot open the same heap file concurrently — there is no
// transaction manager in this module to arbitrate shared state otherwise.
func lockFile(f *os.File) (unixLock, error) {
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return -1, err
	}
	return fd, nil
}

func unlockFile(fd unixLock) {
	if fd >= 0 {
		_ = unix.Flock(fd, unix.LOCK_UN)
	}
}
