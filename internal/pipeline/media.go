package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fifosk/ebook-tools-sub003/internal/logger"
	"github.com/fifosk/ebook-tools-sub003/internal/media"
	"github.com/fifosk/ebook-tools-sub003/internal/progress"
)

// MediaEngine builds per-sentence media. The coordinator runs several
// Worker loops against the same queues.
type MediaEngine struct {
	Synth         media.Synthesizer
	GenerateAudio bool
	Tracker       *progress.Tracker
}

// Worker consumes translation results until it sees a sentinel or the stop
// signal, always emitting exactly one sentinel downstream before returning
// so the exporter's drain count stays deterministic.
func (m *MediaEngine) Worker(ctx context.Context, in <-chan TranslationResult, out chan<- MediaItem, stop *Stop) {
	defer func() {
		select {
		case out <- sentinelMedia():
		case <-time.After(5 * time.Second):
		}
	}()

	for {
		select {
		case res := <-in:
			if isSentinel(res.Index) {
				return
			}
			item := m.build(ctx, res)
			select {
			case out <- item:
			case <-stop.Done():
				return
			}
			if stop.IsSet() {
				return
			}
		case <-stop.Done():
			return
		}
	}
}

func (m *MediaEngine) build(ctx context.Context, res TranslationResult) MediaItem {
	item := MediaItem{
		Index:           res.Index,
		Number:          res.Number,
		TargetLanguage:  res.TargetLanguage,
		Sentence:        res.SourceText,
		Translation:     res.Translation,
		Transliteration: res.Transliteration,
		VideoBlock:      buildVideoBlock(res),
	}

	if m.GenerateAudio && m.Synth != nil && res.Err == "" {
		seg, err := m.Synth.Synthesize(ctx, res.Translation, res.TargetLanguage)
		if err != nil {
			logger.Warn("Audio synthesis failed, emitting silent item", "number", res.Number, "error", err)
			if m.Tracker != nil {
				m.Tracker.Retry(progress.StageMedia, err.Error())
			}
		} else {
			item.Audio = seg
		}
	}

	if m.Tracker != nil {
		m.Tracker.CompleteMedia(1)
	}
	return item
}

// buildVideoBlock renders the text block later composited into video
// frames. Failure-annotated translations render like any other text.
func buildVideoBlock(res TranslationResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d [%s]\n", res.Number, res.TargetLanguage)
	sb.WriteString(res.SourceText)
	sb.WriteByte('\n')
	sb.WriteString(res.Translation)
	if res.Transliteration != "" {
		sb.WriteByte('\n')
		sb.WriteString(res.Transliteration)
	}
	return sb.String()
}
