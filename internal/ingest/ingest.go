// Package ingest turns input files into the sentence stream the pipeline
// consumes.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
)

// Source yields the sentences of one input document in reading order.
type Source interface {
	// Sentences returns the full ordered sentence list.
	Sentences(ctx context.Context) ([]string, error)
	// Name identifies the source for logs and artifact naming.
	Name() string
}

// subtitle extensions handled by the astisub reader.
var subtitleExts = map[string]bool{
	".srt": true, ".vtt": true, ".ssa": true, ".ass": true, ".stl": true, ".ttml": true,
}

// IsSubtitle reports whether the path carries a subtitle extension.
func IsSubtitle(path string) bool {
	return subtitleExts[strings.ToLower(filepath.Ext(path))]
}

// ForFile picks a source implementation from the file extension. Plain
// text is the default.
func ForFile(path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case subtitleExts[ext]:
		return NewSubtitleSource(path), nil
	case ext == ".txt" || ext == ".text" || ext == "":
		return NewTextSource(path), nil
	default:
		return nil, apperrors.Config(fmt.Errorf("unsupported input type %q", ext))
	}
}
