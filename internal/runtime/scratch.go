package runtime

import (
	"fmt"
	"os"

	"github.com/fifosk/ebook-tools-sub003/internal/cleanup"
	"github.com/fifosk/ebook-tools-sub003/internal/files"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
)

// DefaultScratchBytes is the RAM workspace size requested when the tmp
// mount reports less free capacity than a run needs.
const DefaultScratchBytes = 2 << 30

// ScratchSpace owns the tmp directory intermediate artifacts are written
// to. When RAM-backed, teardown unmounts it at process exit.
type ScratchSpace struct {
	Dir       string
	RAMBacked bool
}

// NewScratch prepares the scratch directory for rc. A RAM filesystem is
// mounted only when the context asks for one, the platform supports it,
// and the existing mount lacks wantBytes of free space. Mount failure is
// not fatal: the run continues on disk.
func NewScratch(rc *RuntimeContext, wantBytes uint64) (*ScratchSpace, error) {
	if wantBytes == 0 {
		wantBytes = DefaultScratchBytes
	}
	s := &ScratchSpace{Dir: rc.TmpDir}

	if err := files.EnsureDir(s.Dir, 0o755); err != nil {
		return nil, err
	}

	if !rc.UseRAMDisk || !ramMountSupported() {
		return s, nil
	}

	free, err := freeBytes(s.Dir)
	if err != nil {
		logger.Debug("Capacity probe failed, keeping disk scratch", "dir", s.Dir, "error", err)
		return s, nil
	}
	if free >= wantBytes {
		return s, nil
	}

	if err := mountRAM(s.Dir, wantBytes); err != nil {
		logger.Info("RAM scratch unavailable, continuing on disk", "dir", s.Dir, "error", err)
		return s, nil
	}
	s.RAMBacked = true
	logger.Info("Mounted RAM-backed scratch", "dir", s.Dir, "bytes", wantBytes)

	dir := s.Dir
	cleanup.RegisterOnce("scratch:"+rc.ID(), func() error {
		return unmountRAM(dir)
	})
	return s, nil
}

// Path joins name onto the scratch directory.
func (s *ScratchSpace) Path(name string) string {
	return s.Dir + string(os.PathSeparator) + name
}

// Teardown unmounts a RAM-backed scratch immediately. Safe to call twice;
// disk-backed scratch is left in place.
func (s *ScratchSpace) Teardown() error {
	if !s.RAMBacked {
		return nil
	}
	s.RAMBacked = false
	if err := unmountRAM(s.Dir); err != nil {
		return fmt.Errorf("unmount scratch %s: %w", s.Dir, err)
	}
	return nil
}
