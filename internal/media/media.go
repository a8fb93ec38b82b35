// Package media defines the synthesis interfaces the pipeline consumes and
// the audio segment model exports are concatenated from. Real TTS and
// video compositing live behind these interfaces; the repo ships fakes for
// tests and dry runs.
package media

import (
	"context"
	"fmt"
	"time"

	"github.com/fifosk/ebook-tools-sub003/internal/files"
)

// AudioSegment is one synthesized utterance.
type AudioSegment struct {
	// Data is encoded MP3 audio.
	Data     []byte
	Duration time.Duration
}

// Synthesizer produces per-sentence audio.
type Synthesizer interface {
	// Synthesize renders text in the given language to an audio segment.
	Synthesize(ctx context.Context, text, langCode string) (*AudioSegment, error)
}

// Compositor renders a batch video from text blocks and their audio.
type Compositor interface {
	Compose(ctx context.Context, videoBlocks []string, segments []*AudioSegment, outPath string) error
}

// Concat joins segments into one stream. Nil segments are skipped so
// failure-annotated sentences leave silence rather than breaking a batch.
func Concat(segments []*AudioSegment) *AudioSegment {
	out := &AudioSegment{}
	for _, seg := range segments {
		if seg == nil {
			continue
		}
		out.Data = append(out.Data, seg.Data...)
		out.Duration += seg.Duration
	}
	return out
}

// ExportMP3 writes a segment to path atomically.
func ExportMP3(seg *AudioSegment, path string) error {
	if seg == nil {
		return fmt.Errorf("no audio to export")
	}
	return files.AtomicWrite(path, seg.Data, 0o644)
}

// FakeSynthesizer generates deterministic placeholder audio sized by text
// length. Used by tests and audio-less dry runs.
type FakeSynthesizer struct {
	// PerRune controls the fake duration per input rune.
	PerRune time.Duration
	// Fail makes every call return an error.
	Fail bool
	// Delay simulates synthesis latency.
	Delay time.Duration
}

func (f *FakeSynthesizer) Synthesize(ctx context.Context, text, langCode string) (*AudioSegment, error) {
	if f.Fail {
		return nil, fmt.Errorf("synthesis unavailable")
	}
	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.Delay):
		}
	}
	perRune := f.PerRune
	if perRune == 0 {
		perRune = 50 * time.Millisecond
	}
	runes := []rune(text)
	return &AudioSegment{
		Data:     []byte(langCode + ":" + text),
		Duration: time.Duration(len(runes)) * perRune,
	}, nil
}

// FakeCompositor records composition calls and writes a stub file.
type FakeCompositor struct {
	Calls []string
}

func (f *FakeCompositor) Compose(_ context.Context, videoBlocks []string, segments []*AudioSegment, outPath string) error {
	f.Calls = append(f.Calls, outPath)
	total := Concat(segments)
	header := fmt.Sprintf("blocks=%d duration=%s\n", len(videoBlocks), total.Duration)
	return files.AtomicWrite(outPath, []byte(header), 0o644)
}
