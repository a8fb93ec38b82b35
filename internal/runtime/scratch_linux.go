//go:build linux

package runtime

import (
	"fmt"
	"os/exec"
	"syscall"
)

func ramMountSupported() bool { return true }

// freeBytes reports the free capacity of the filesystem holding dir, using
// the mount's own block size.
func freeBytes(dir string) (uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

func mountRAM(dir string, bytes uint64) error {
	sizeOpt := fmt.Sprintf("size=%d", bytes)
	out, err := exec.Command("mount", "-t", "tmpfs", "-o", sizeOpt, "ebook-scratch", dir).CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount tmpfs: %v: %s", err, out)
	}
	return nil
}

func unmountRAM(dir string) error {
	out, err := exec.Command("umount", dir).CombinedOutput()
	if err != nil {
		return fmt.Errorf("umount: %v: %s", err, out)
	}
	return nil
}
