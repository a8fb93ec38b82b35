package files

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	if err := AtomicWrite(path, []byte(`{"v":1}`), 0o600); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"v":1}` {
		t.Errorf("content = %q", data)
	}

	// Overwrite must replace, not append, and leave no temp litter.
	if err := AtomicWrite(path, []byte(`{"v":2}`), 0o600); err != nil {
		t.Fatalf("AtomicWrite overwrite: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != `{"v":2}` {
		t.Errorf("content after overwrite = %q", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected 1 file in dir, got %d", len(entries))
	}
}

func TestEnsureDirReplacesFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out")
	if err := os.WriteFile(target, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := EnsureDir(target, 0o755); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s, err=%v", target, err)
	}
}

func TestIsWritable(t *testing.T) {
	if !IsWritable(t.TempDir()) {
		t.Error("temp dir should be writable")
	}
	if IsWritable(filepath.Join(t.TempDir(), "missing")) {
		t.Error("missing dir should not be writable")
	}
}
