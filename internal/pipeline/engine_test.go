package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fifosk/ebook-tools-sub003/internal/googletrans"
	"github.com/fifosk/ebook-tools-sub003/internal/llm"
	"github.com/fifosk/ebook-tools-sub003/internal/pool"
	"github.com/fifosk/ebook-tools-sub003/internal/progress"
	"github.com/fifosk/ebook-tools-sub003/internal/translit"
	"github.com/fifosk/ebook-tools-sub003/internal/validate"
)

func newTestEngine(mock *llm.MockClient, batchSize int) (*Engine, pool.Pool) {
	p := pool.NewWorkerPool("test", 2, 8)
	return &Engine{
		Client:     mock,
		Tracker:    progress.NewTracker(),
		Pool:       p,
		Provider:   ProviderLLM,
		Model:      "gemma2:27b",
		BatchSize:  batchSize,
		Timeout:    time.Second,
		RetryDelay: time.Millisecond,
	}, p
}

func TestTranslateBatchViaJSONBatch(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{
		`{"items":[{"id":1,"translation":"Hola."},{"id":2,"translation":"Adios."}]}`,
	}}
	e, p := newTestEngine(mock, 10)
	defer p.Shutdown(true)

	results := e.TranslateBatch(context.Background(),
		mkSentencesWithText("es", "Hello.", "Goodbye."), "en")
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Translation != "Hola." || results[1].Translation != "Adios." {
		t.Errorf("translations = %+v", results)
	}
	if mock.Calls != 1 {
		t.Errorf("llm calls = %d, want one batch call", mock.Calls)
	}
	if results[0].Index != 0 || results[1].Index != 1 {
		t.Error("results must come back in sentence order")
	}
}

func TestTranslateBatchPerSentenceWhenDisabled(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{"Hola.", "Adios."}}
	e, p := newTestEngine(mock, 0)
	defer p.Shutdown(true)

	results := e.TranslateBatch(context.Background(),
		mkSentencesWithText("es", "Hello.", "Goodbye."), "en")
	if mock.Calls != 2 {
		t.Errorf("llm calls = %d, want 2 single calls", mock.Calls)
	}
	got := map[string]bool{}
	for _, r := range results {
		got[r.Translation] = true
	}
	if !got["Hola."] || !got["Adios."] {
		t.Errorf("results = %+v", results)
	}
}

func TestTranslateBatchRejectedItemRetriesWholeBatch(t *testing.T) {
	// First batch response: item 2 is a placeholder, rejected. Second
	// attempt fixes it.
	mock := &llm.MockClient{Responses: []string{
		`{"items":[{"id":1,"translation":"Hola."},{"id":2,"translation":"I cannot translate this."}]}`,
		`{"items":[{"id":1,"translation":"Hola."},{"id":2,"translation":"Adios."}]}`,
	}}
	e, p := newTestEngine(mock, 10)
	defer p.Shutdown(true)

	results := e.TranslateBatch(context.Background(),
		mkSentencesWithText("es", "Hello.", "Goodbye."), "en")
	if mock.Calls != 2 {
		t.Errorf("llm calls = %d, want 2 batch attempts", mock.Calls)
	}
	if results[1].Translation != "Adios." {
		t.Errorf("result 2 = %+v", results[1])
	}
	if results[1].RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", results[1].RetryCount)
	}
	if e.Tracker.RetryCount(progress.StageTranslation, "Invalid or placeholder translation") != 1 {
		t.Error("rejection reason not counted")
	}
}

func TestTranslateOneExhaustionAnnotates(t *testing.T) {
	// Every response is a placeholder; 5 response-level attempts then a
	// structured annotation.
	mock := &llm.MockClient{Responses: []string{"I cannot translate this."}}
	e, p := newTestEngine(mock, 0)
	defer p.Shutdown(true)

	results := e.TranslateBatch(context.Background(),
		mkSentencesWithText("es", "Hello."), "en")
	if mock.Calls != 5 {
		t.Errorf("llm calls = %d, want 5", mock.Calls)
	}
	res := results[0]
	if res.Err == "" {
		t.Fatal("exhausted result must carry an error")
	}
	if !strings.HasPrefix(res.Translation, "Retry failed for translation after 5 attempts") {
		t.Errorf("annotation = %q", res.Translation)
	}
}

func TestTranslateBatchMissingIDFallsBackPerSentence(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{
		// Batch answers only item 1, five response-level attempts.
		`{"items":[{"id":1,"translation":"Hola."}]}`,
		`{"items":[{"id":1,"translation":"Hola."}]}`,
		`{"items":[{"id":1,"translation":"Hola."}]}`,
		`{"items":[{"id":1,"translation":"Hola."}]}`,
		`{"items":[{"id":1,"translation":"Hola."}]}`,
		// Per-sentence fallback for item 2.
		"Adios.",
	}}
	e, p := newTestEngine(mock, 10)
	defer p.Shutdown(true)

	results := e.TranslateBatch(context.Background(),
		mkSentencesWithText("es", "Hello.", "Goodbye."), "en")
	if results[0].Translation != "Hola." || results[1].Translation != "Adios." {
		t.Errorf("results = %+v", results)
	}
	if mock.Calls != 6 {
		t.Errorf("llm calls = %d, want 5 batch + 1 single", mock.Calls)
	}
}

func TestEngineStartEmitsSentinels(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{
		`{"items":[{"id":1,"translation":"Hola."},{"id":2,"translation":"Adios."}]}`,
	}}
	e, p := newTestEngine(mock, 10)
	defer p.Shutdown(true)

	out := make(chan TranslationResult, 10)
	stop := NewStop()
	e.Start(context.Background(), mkSentencesWithText("es", "Hello.", "Goodbye."), "en", out, stop, 3)

	var results, sentinels int
	for i := 0; i < 5; i++ {
		res := <-out
		if isSentinel(res.Index) {
			sentinels++
		} else {
			results++
		}
	}
	if results != 2 || sentinels != 3 {
		t.Errorf("results = %d, sentinels = %d", results, sentinels)
	}
}

func TestEngineTracksCompletion(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{"Hola."}}
	e, p := newTestEngine(mock, 0)
	defer p.Shutdown(true)

	e.TranslateBatch(context.Background(), mkSentencesWithText("es", "Hello."), "en")
	if got := e.Tracker.Snapshot().CompletedTranslation; got != 1 {
		t.Errorf("completed = %d", got)
	}
}

func TestTransliterationRejectionReachesTracker(t *testing.T) {
	// First response is the translation, second the transliteration
	// candidate: non-Latin, so the validator rejects it.
	mock := &llm.MockClient{Responses: []string{"日本語です", "これは違う"}}
	e, p := newTestEngine(mock, 0)
	defer p.Shutdown(true)
	e.Translit = translit.New(mock, e.Model)
	e.IncludeTransliteration = true

	e.TranslateBatch(context.Background(), mkSentencesWithText("ja", "Hello."), "en")

	if got := e.Tracker.RetryCount(progress.StageTransliteration, validate.ReasonNonLatinTranslit); got != 1 {
		snap := e.Tracker.Snapshot()
		t.Errorf("transliteration rejection not counted, retries = %v", snap.Retries)
	}
}

func TestGoogleRetryHookReachesTracker(t *testing.T) {
	mock := &llm.MockClient{}
	e, p := newTestEngine(mock, 0)
	defer p.Shutdown(true)
	e.Google = googletrans.New()
	e.Provider = ProviderGoogleTrans

	e.wireRetryReporting()
	if e.Google.OnRetry == nil {
		t.Fatal("google retry hook left unwired")
	}
	e.Google.OnRetry("placeholder response")
	if got := e.Tracker.RetryCount(progress.StageTranslation, "placeholder response"); got != 1 {
		t.Errorf("google retry not counted, got %d", got)
	}
}

func mkSentencesWithText(target string, texts ...string) []Sentence {
	out := make([]Sentence, len(texts))
	for i, text := range texts {
		out[i] = Sentence{Index: i, Number: i + 1, Text: text, TargetLanguage: target}
	}
	return out
}
