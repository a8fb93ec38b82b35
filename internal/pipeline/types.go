// Package pipeline is the staged translation core: the translation engine,
// the media workers, the ordered batch exporter, and the coordinator that
// owns their queues and lifecycle.
package pipeline

import (
	"sync"

	"github.com/fifosk/ebook-tools-sub003/internal/media"
)

// Sentence is one unit of work entering the pipeline. Index is 0-based and
// unique per run; Number is the 1-based reading-order position.
type Sentence struct {
	Index          int
	Number         int
	Text           string
	TargetLanguage string
}

// TranslationResult is the translation stage's output. When Err is set,
// Translation holds a structured failure annotation rather than model
// output.
type TranslationResult struct {
	Index           int
	Number          int
	SourceText      string
	TargetLanguage  string
	Translation     string
	Transliteration string
	RetryCount      int
	Err             string
}

// MediaItem is the media stage's output. Audio is present iff audio
// generation is enabled for the run.
type MediaItem struct {
	Index           int
	Number          int
	TargetLanguage  string
	Sentence        string
	Translation     string
	Transliteration string
	Audio           *media.AudioSegment
	VideoBlock      string
}

// sentinelIndex marks end-of-stream records on the stage queues.
const sentinelIndex = -1

func sentinelResult() TranslationResult { return TranslationResult{Index: sentinelIndex} }
func sentinelMedia() MediaItem          { return MediaItem{Index: sentinelIndex} }

func isSentinel(index int) bool { return index == sentinelIndex }

// AssignTargets zips texts with target languages round-robin and numbers
// them in reading order.
func AssignTargets(texts []string, targets []string) []Sentence {
	out := make([]Sentence, len(texts))
	for i, text := range texts {
		target := ""
		if len(targets) > 0 {
			target = targets[i%len(targets)]
		}
		out[i] = Sentence{
			Index:          i,
			Number:         i + 1,
			Text:           text,
			TargetLanguage: target,
		}
	}
	return out
}

// Stop is the run-wide cancellation signal. Setting it is monotonic: once
// set it stays set, and setting twice is safe.
type Stop struct {
	once sync.Once
	ch   chan struct{}
}

func NewStop() *Stop {
	return &Stop{ch: make(chan struct{})}
}

// Set requests cancellation.
func (s *Stop) Set() {
	s.once.Do(func() { close(s.ch) })
}

// IsSet reports whether cancellation was requested.
func (s *Stop) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on cancellation.
func (s *Stop) Done() <-chan struct{} { return s.ch }
