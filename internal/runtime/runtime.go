// Package runtime builds the immutable per-invocation context the pipeline
// stages read their paths and concurrency knobs from, plus the RAM-backed
// scratch space that holds intermediate media artifacts.
package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
	"github.com/fifosk/ebook-tools-sub003/internal/config"
	"github.com/fifosk/ebook-tools-sub003/internal/files"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
)

// Overrides carries per-invocation values that beat the loaded config.
// Empty and zero fields mean "no override".
type Overrides struct {
	WorkingDir  string
	OutputDir   string
	TmpDir      string
	BooksDir    string
	OllamaURL   string
	OllamaModel string
	ThreadCount int
	QueueSize   int
	BatchSize   int
}

// RuntimeContext is frozen after construction. A process may hold several,
// one per logical run.
type RuntimeContext struct {
	id string

	WorkingDir string
	OutputDir  string
	TmpDir     string
	BooksDir   string

	OllamaURL   string
	OllamaModel string

	ThreadCount int
	QueueSize   int
	BatchSize   int

	PipelineMode bool
	UseRAMDisk   bool

	Config config.Config
}

// ID is the identity used for once-per-context bookkeeping.
func (rc *RuntimeContext) ID() string { return rc.id }

// Workers returns the effective worker count. Sequential runs
// (pipeline_mode off) drive the same coordinator with a single worker;
// pipeline mode fans out to ThreadCount.
func (rc *RuntimeContext) Workers() int {
	if !rc.PipelineMode {
		return 1
	}
	if rc.ThreadCount < 1 {
		return 1
	}
	return rc.ThreadCount
}

// NewContext resolves directories and freezes the run parameters. Each
// directory tries user override, configured value, then a program-local
// default; the first writable candidate wins.
func NewContext(cfg config.Config, ov Overrides) (*RuntimeContext, error) {
	rc := &RuntimeContext{
		id:           uuid.NewString(),
		OllamaURL:    firstNonEmpty(ov.OllamaURL, cfg.OllamaURL),
		OllamaModel:  firstNonEmpty(ov.OllamaModel, cfg.OllamaModel),
		ThreadCount:  firstPositive(ov.ThreadCount, cfg.ThreadCount),
		QueueSize:    firstPositive(ov.QueueSize, cfg.QueueSize),
		BatchSize:    firstPositive(ov.BatchSize, cfg.BatchSize),
		PipelineMode: cfg.PipelineMode,
		UseRAMDisk:   cfg.UseRAMDisk,
		Config:       cfg,
	}

	var err error
	if rc.WorkingDir, err = resolveDir(ov.WorkingDir, cfg.WorkingDir, "ebook_work"); err != nil {
		return nil, err
	}
	if rc.OutputDir, err = resolveDir(ov.OutputDir, cfg.OutputDir, "ebook_output"); err != nil {
		return nil, err
	}
	if rc.TmpDir, err = resolveDir(ov.TmpDir, cfg.TmpDir, "ebook_tmp"); err != nil {
		return nil, err
	}
	if rc.BooksDir, err = resolveDir(ov.BooksDir, cfg.BooksDir, "books"); err != nil {
		return nil, err
	}
	return rc, nil
}

// resolveDir tries each candidate in order and returns the first one that
// can be created and written. Relative paths resolve against the working
// directory of the process.
func resolveDir(user, configured, defaultName string) (string, error) {
	candidates := make([]string, 0, 3)
	if user != "" {
		candidates = append(candidates, user)
	}
	if configured != "" {
		candidates = append(candidates, configured)
	}
	candidates = append(candidates, filepath.Join(".", defaultName))

	var lastErr error
	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil {
			lastErr = err
			continue
		}
		if err := files.EnsureDir(abs, 0o755); err != nil {
			lastErr = err
			continue
		}
		if !files.IsWritable(abs) {
			lastErr = fmt.Errorf("directory %s is not writable", abs)
			continue
		}
		return abs, nil
	}
	return "", apperrors.Config(fmt.Errorf("no writable directory for %s: %w", defaultName, lastErr))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

type ctxKey struct{}

// Bind attaches rc to ctx. The binding is immutable; rebinding shadows.
func Bind(ctx context.Context, rc *RuntimeContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// Active returns the context-bound RuntimeContext, or fallback when none is
// bound.
func Active(ctx context.Context, fallback *RuntimeContext) *RuntimeContext {
	if rc, ok := ctx.Value(ctxKey{}).(*RuntimeContext); ok {
		return rc
	}
	return fallback
}

// Hostname is used in scratch mount labels and debug artifacts.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		logger.Debug("Hostname lookup failed", "error", err)
		return "localhost"
	}
	return h
}
