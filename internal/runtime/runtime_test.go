package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fifosk/ebook-tools-sub003/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.WorkingDir = filepath.Join(root, "work")
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.TmpDir = filepath.Join(root, "tmp")
	cfg.BooksDir = filepath.Join(root, "books")
	cfg.UseRAMDisk = false
	return cfg
}

func TestNewContextResolvesDirs(t *testing.T) {
	cfg := testConfig(t)
	rc, err := NewContext(cfg, Overrides{})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	for _, dir := range []string{rc.WorkingDir, rc.OutputDir, rc.TmpDir, rc.BooksDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
	if rc.ThreadCount != 5 || rc.QueueSize != 20 {
		t.Errorf("knobs = %d/%d, want 5/20", rc.ThreadCount, rc.QueueSize)
	}
	if rc.ID() == "" {
		t.Error("context has no identity")
	}
}

func TestWorkersFollowPipelineMode(t *testing.T) {
	cfg := testConfig(t)

	cfg.PipelineMode = false
	rc, err := NewContext(cfg, Overrides{ThreadCount: 8})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if got := rc.Workers(); got != 1 {
		t.Errorf("sequential Workers() = %d, want 1", got)
	}

	cfg.PipelineMode = true
	rc, err = NewContext(cfg, Overrides{ThreadCount: 8})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if got := rc.Workers(); got != 8 {
		t.Errorf("pipeline Workers() = %d, want 8", got)
	}
}

func TestNewContextOverridesWin(t *testing.T) {
	cfg := testConfig(t)
	override := filepath.Join(t.TempDir(), "preferred")
	rc, err := NewContext(cfg, Overrides{
		WorkingDir:  override,
		OllamaModel: "llama3.1:8b",
		ThreadCount: 2,
	})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if rc.WorkingDir != override {
		t.Errorf("working dir = %s, want override %s", rc.WorkingDir, override)
	}
	if rc.OllamaModel != "llama3.1:8b" || rc.ThreadCount != 2 {
		t.Errorf("overrides not applied: %s/%d", rc.OllamaModel, rc.ThreadCount)
	}
	if rc.QueueSize != 20 {
		t.Error("unset override must keep the configured value")
	}
}

func TestResolveDirClearsBrokenSymlink(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "work")
	if err := os.Symlink(filepath.Join(root, "gone"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	cfg := testConfig(t)
	cfg.WorkingDir = link
	rc, err := NewContext(cfg, Overrides{})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	info, err := os.Stat(rc.WorkingDir)
	if err != nil || !info.IsDir() {
		t.Errorf("broken symlink was not replaced by a directory: %v", err)
	}
}

func TestResolveDirFallsBackToConfigured(t *testing.T) {
	cfg := testConfig(t)
	// An unwritable user candidate falls through to the configured one.
	rc, err := NewContext(cfg, Overrides{OutputDir: "/proc/no-such-dir/out"})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if rc.OutputDir != cfg.OutputDir {
		t.Errorf("output dir = %s, want configured fallback %s", rc.OutputDir, cfg.OutputDir)
	}
}

func TestActiveBinding(t *testing.T) {
	cfg := testConfig(t)
	rc, err := NewContext(cfg, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	fallback, err := NewContext(cfg, Overrides{})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if got := Active(ctx, fallback); got != fallback {
		t.Error("unbound context must yield the fallback")
	}
	ctx = Bind(ctx, rc)
	if got := Active(ctx, fallback); got != rc {
		t.Error("bound context must yield the binding")
	}
}

func TestNewScratchDiskFallback(t *testing.T) {
	cfg := testConfig(t)
	rc, err := NewContext(cfg, Overrides{})
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewScratch(rc, 0)
	if err != nil {
		t.Fatalf("NewScratch: %v", err)
	}
	if s.RAMBacked {
		t.Error("ramdisk disabled, scratch must stay on disk")
	}
	if s.Dir != rc.TmpDir {
		t.Errorf("scratch dir = %s, want %s", s.Dir, rc.TmpDir)
	}
	if err := s.Teardown(); err != nil {
		t.Errorf("disk teardown must be a no-op: %v", err)
	}
}
