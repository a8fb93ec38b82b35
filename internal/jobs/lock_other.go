//go:build !unix

package jobs

// Non-POSIX platforms rely on the per-job process mutex only.

type fileLock struct{}

func acquireFileLock(string) (*fileLock, error) { return &fileLock{}, nil }

func (l *fileLock) release() {}
