//go:build unix

package jobs

import (
	"os"

	"golang.org/x/sys/unix"
)

// fileLock holds an fcntl write lock on a sidecar lock file. The lock
// file, not the data file, is locked because the data file is replaced
// by rename on every commit.
type fileLock struct {
	f *os.File
}

func acquireFileLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	ft := unix.Flock_t{Type: unix.F_WRLCK, Whence: 0}
	if err := unix.FcntlFlock(f.Fd(), unix.F_SETLKW, &ft); err != nil {
		f.Close()
		return nil, err
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() {
	ft := unix.Flock_t{Type: unix.F_UNLCK, Whence: 0}
	unix.FcntlFlock(l.f.Fd(), unix.F_SETLKW, &ft)
	l.f.Close()
}
