package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fifosk/ebook-tools-sub003/internal/media"
	"github.com/fifosk/ebook-tools-sub003/internal/pool"
)

func TestBuildVideoBlock(t *testing.T) {
	res := TranslationResult{
		Number:          7,
		TargetLanguage:  "es",
		SourceText:      "Hello.",
		Translation:     "Hola.",
		Transliteration: "ola",
	}
	block := buildVideoBlock(res)
	for _, want := range []string{"#7 [es]", "Hello.", "Hola.", "ola"} {
		if !strings.Contains(block, want) {
			t.Errorf("block missing %q:\n%s", want, block)
		}
	}
}

func TestMediaWorkerSentinelPassThrough(t *testing.T) {
	m := &MediaEngine{Synth: &media.FakeSynthesizer{}, GenerateAudio: true}
	in := make(chan TranslationResult, 4)
	out := make(chan MediaItem, 4)
	in <- TranslationResult{Index: 0, Number: 1, Translation: "Hola.", TargetLanguage: "es"}
	in <- sentinelResult()

	m.Worker(context.Background(), in, out, NewStop())

	first := <-out
	if first.Index != 0 || first.Audio == nil {
		t.Errorf("item = %+v", first)
	}
	second := <-out
	if !isSentinel(second.Index) {
		t.Error("worker must forward exactly one sentinel")
	}
}

func TestMediaWorkerFailedSynthesisEmitsSilentItem(t *testing.T) {
	m := &MediaEngine{Synth: &media.FakeSynthesizer{Fail: true}, GenerateAudio: true}
	in := make(chan TranslationResult, 2)
	out := make(chan MediaItem, 2)
	in <- TranslationResult{Index: 0, Number: 1, Translation: "Hola.", TargetLanguage: "es"}
	in <- sentinelResult()

	m.Worker(context.Background(), in, out, NewStop())

	item := <-out
	if item.Audio != nil {
		t.Error("failed synthesis must yield a nil audio segment")
	}
}

func TestMediaWorkerSkipsAudioForFailedTranslation(t *testing.T) {
	m := &MediaEngine{Synth: &media.FakeSynthesizer{}, GenerateAudio: true}
	in := make(chan TranslationResult, 2)
	out := make(chan MediaItem, 2)
	in <- TranslationResult{Index: 0, Number: 1, Translation: "Retry failed for translation after 5 attempts: x", Err: "x"}
	in <- sentinelResult()

	m.Worker(context.Background(), in, out, NewStop())

	item := <-out
	if item.Audio != nil {
		t.Error("failure-annotated result must not be synthesized")
	}
	if item.VideoBlock == "" {
		t.Error("failed result still renders a video block")
	}
}

// slowSynth delays one specific sentence to force out-of-order arrival at
// the exporter.
type slowSynth struct {
	slowNumber int
	delay      time.Duration
}

func (s *slowSynth) Synthesize(ctx context.Context, text, langCode string) (*media.AudioSegment, error) {
	if strings.Contains(text, "slow") {
		time.Sleep(s.delay)
	}
	return &media.AudioSegment{Data: []byte(text), Duration: time.Millisecond}, nil
}

func TestOrderedEmissionUnderReordering(t *testing.T) {
	// Sentence 2 is slow; the exporter must still commit 1,2,3,4 in order.
	results := []TranslationResult{
		{Index: 0, Number: 1, Translation: "fast one", TargetLanguage: "es"},
		{Index: 1, Number: 2, Translation: "slow two", TargetLanguage: "es"},
		{Index: 2, Number: 3, Translation: "fast three", TargetLanguage: "es"},
		{Index: 3, Number: 4, Translation: "fast four", TargetLanguage: "es"},
	}

	m := &MediaEngine{Synth: &slowSynth{delay: 300 * time.Millisecond}, GenerateAudio: true}
	in := make(chan TranslationResult, 8)
	out := make(chan MediaItem, 8)
	stop := NewStop()

	const workers = 2
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Worker(context.Background(), in, out, stop)
		}()
	}
	for _, r := range results {
		in <- r
	}
	for i := 0; i < workers; i++ {
		in <- sentinelResult()
	}

	// One sentence per window: commit order shows directly in the export
	// sequence.
	var mu sync.Mutex
	var order []string
	exporter := &Exporter{
		OutputDir:         t.TempDir(),
		BaseName:          "ordered",
		SentencesPerBatch: 1,
		OutputHTML:        true,
		ExportPool:        pool.NewSerialPool("export"),
		Exported: func(path string) {
			mu.Lock()
			order = append(order, path)
			mu.Unlock()
		},
	}

	if err := exporter.Run(context.Background(), out, stop, workers); err != nil {
		t.Fatal(err)
	}
	wg.Wait()

	if len(order) != 4 {
		t.Fatalf("exported = %v", order)
	}
	want := []string{"0001-0001", "0002-0002", "0003-0003", "0004-0004"}
	for i, path := range order {
		if !strings.Contains(path, want[i]) {
			t.Fatalf("export order = %v, want ascending windows", order)
		}
	}
}
