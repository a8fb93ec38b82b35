package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/asticode/go-astisub"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
	"github.com/fifosk/ebook-tools-sub003/internal/textnorm"
)

// SubtitleSource reads cue text from a subtitle file. Cues are joined and
// re-split into sentences so a sentence spanning two cues stays whole.
type SubtitleSource struct {
	path string
}

func NewSubtitleSource(path string) *SubtitleSource {
	return &SubtitleSource{path: path}
}

func (s *SubtitleSource) Name() string {
	return strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
}

func (s *SubtitleSource) Sentences(_ context.Context) ([]string, error) {
	subs, err := astisub.OpenFile(s.path)
	if err != nil {
		return nil, apperrors.Config(fmt.Errorf("parse subtitles: %w", err))
	}

	var sb strings.Builder
	for _, item := range subs.Items {
		for _, line := range item.Lines {
			for _, li := range line.Items {
				text := strings.TrimSpace(li.Text)
				if text == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
	}
	joined := textnorm.CollapseWhitespace(sb.String())
	if joined == "" {
		return nil, nil
	}
	return SplitSentences(joined), nil
}
