//go:build darwin

package runtime

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"
)

func ramMountSupported() bool { return true }

func freeBytes(dir string) (uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// mountRAM attaches a RAM device and formats it onto dir. macOS sizes the
// device in 512-byte sectors.
func mountRAM(dir string, bytes uint64) error {
	sectors := bytes / 512
	out, err := exec.Command("hdiutil", "attach", "-nomount", fmt.Sprintf("ram://%d", sectors)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("hdiutil attach: %v: %s", err, out)
	}
	device := strings.TrimSpace(string(out))
	if out, err := exec.Command("newfs_hfs", "-v", "ebook-scratch", device).CombinedOutput(); err != nil {
		exec.Command("hdiutil", "detach", device).Run()
		return fmt.Errorf("newfs_hfs: %v: %s", err, out)
	}
	if out, err := exec.Command("mount", "-t", "hfs", device, dir).CombinedOutput(); err != nil {
		exec.Command("hdiutil", "detach", device).Run()
		return fmt.Errorf("mount hfs: %v: %s", err, out)
	}
	return nil
}

func unmountRAM(dir string) error {
	out, err := exec.Command("hdiutil", "detach", dir, "-force").CombinedOutput()
	if err != nil {
		return fmt.Errorf("hdiutil detach: %v: %s", err, out)
	}
	return nil
}
