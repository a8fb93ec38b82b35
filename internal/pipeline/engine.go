package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
	"github.com/fifosk/ebook-tools-sub003/internal/googletrans"
	"github.com/fifosk/ebook-tools-sub003/internal/language"
	"github.com/fifosk/ebook-tools-sub003/internal/llm"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
	"github.com/fifosk/ebook-tools-sub003/internal/pool"
	"github.com/fifosk/ebook-tools-sub003/internal/progress"
	"github.com/fifosk/ebook-tools-sub003/internal/textnorm"
	"github.com/fifosk/ebook-tools-sub003/internal/translit"
	"github.com/fifosk/ebook-tools-sub003/internal/validate"
)

// Translation providers.
const (
	ProviderLLM         = "llm"
	ProviderGoogleTrans = "googletrans"
)

const (
	// transportAttempts bounds retries inside the batch client.
	transportAttempts = 4
	// responseAttempts bounds content-validation retries inside the engine.
	responseAttempts = 5
	// responseRetryDelay separates content-validation retries.
	responseRetryDelay = time.Second
)

// Engine is the translation stage. It owns provider selection, batching,
// and both retry levels; it never performs cross-provider fallback.
type Engine struct {
	Client   llm.Client
	Google   *googletrans.Client
	Translit *translit.Transliterator
	Tracker  *progress.Tracker
	Pool     pool.Pool

	Provider               string
	Model                  string
	BatchSize              int
	IncludeTransliteration bool
	Timeout                time.Duration
	RetryDelay             time.Duration
	DebugDir               string
}

func (e *Engine) retryDelay() time.Duration {
	if e.RetryDelay > 0 {
		return e.RetryDelay
	}
	return responseRetryDelay
}

func failureAnnotation(stage string, attempts int, reason string) string {
	return fmt.Sprintf("Retry failed for %s after %d attempts: %s", stage, attempts, reason)
}

// wireRetryReporting points the provider retry hooks at the tracker so
// Google-translate attempts and rejected transliterations land in the
// retry counters alongside the engine's own retries. Hooks a caller set
// explicitly are left alone.
func (e *Engine) wireRetryReporting() {
	if e.Tracker == nil {
		return
	}
	if e.Google != nil && e.Google.OnRetry == nil {
		e.Google.OnRetry = func(reason string) {
			e.Tracker.Retry(progress.StageTranslation, reason)
		}
	}
	if e.Translit != nil && e.Translit.OnRetry == nil {
		e.Translit.OnRetry = func(reason string) {
			e.Tracker.Retry(progress.StageTransliteration, reason)
		}
	}
}

// TranslateBatch is the synchronous form: all groups are submitted to the
// pool and the full result set is returned in sentence order.
func (e *Engine) TranslateBatch(ctx context.Context, sentences []Sentence, sourceLang string) []TranslationResult {
	e.wireRetryReporting()
	groups := BuildBatches(sentences, e.BatchSize)
	futures := make([]*pool.Future, 0, len(groups))
	for _, group := range groups {
		group := group
		f, err := e.Pool.Submit(func() (any, error) {
			return e.translateGroup(ctx, group, sourceLang), nil
		})
		if err != nil {
			// Pool already shut down; annotate the group inline.
			futures = nil
			break
		}
		futures = append(futures, f)
	}

	results := make([]TranslationResult, 0, len(sentences))
	for f := range pool.AsCompleted(futures) {
		v, _ := f.Result()
		results = append(results, v.([]TranslationResult)...)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

// Start is the streaming form. It blocks until every sentence has been
// emitted (or stop was observed), then enqueues one sentinel per
// downstream consumer.
func (e *Engine) Start(ctx context.Context, sentences []Sentence, sourceLang string, out chan<- TranslationResult, stop *Stop, consumers int) {
	e.wireRetryReporting()
	groups := BuildBatches(sentences, e.BatchSize)
	futures := make([]*pool.Future, 0, len(groups))
	for _, group := range groups {
		if stop.IsSet() {
			break
		}
		group := group
		f, err := e.Pool.Submit(func() (any, error) {
			return e.translateGroup(ctx, group, sourceLang), nil
		})
		if err != nil {
			break
		}
		futures = append(futures, f)
	}

	for f := range pool.AsCompleted(futures) {
		v, _ := f.Result()
		for _, res := range v.([]TranslationResult) {
			if stop.IsSet() {
				break
			}
			select {
			case out <- res:
			case <-stop.Done():
			}
		}
	}

	for i := 0; i < consumers; i++ {
		select {
		case out <- sentinelResult():
		case <-time.After(5 * time.Second):
			// A consumer already gone; do not wedge shutdown.
		}
	}
}

func (e *Engine) translateGroup(ctx context.Context, group []Sentence, sourceLang string) []TranslationResult {
	var results []TranslationResult
	switch {
	case strings.HasPrefix(e.Provider, "google"):
		results = e.googleGroup(ctx, group, sourceLang)
	default:
		results = e.llmGroup(ctx, group, sourceLang)
	}

	if e.IncludeTransliteration && e.Translit != nil {
		e.fillTransliterations(ctx, group, results)
	}
	if e.Tracker != nil {
		e.Tracker.CompleteTranslation(len(results))
	}
	return results
}

func (e *Engine) googleGroup(ctx context.Context, group []Sentence, sourceLang string) []TranslationResult {
	results := make([]TranslationResult, len(group))
	for i, s := range group {
		res := TranslationResult{
			Index:          s.Index,
			Number:         s.Number,
			SourceText:     s.Text,
			TargetLanguage: s.TargetLanguage,
		}
		text, err := e.Google.Translate(ctx, s.Text, sourceLang, s.TargetLanguage)
		res.Translation = text
		if err != nil {
			res.Err = apperrors.PublicMessage(err)
		}
		results[i] = res
	}
	return results
}

func (e *Engine) llmGroup(ctx context.Context, group []Sentence, sourceLang string) []TranslationResult {
	results := make([]TranslationResult, len(group))
	pending := make([]int, 0, len(group))
	for i := range group {
		results[i] = TranslationResult{
			Index:          group[i].Index,
			Number:         group[i].Number,
			SourceText:     group[i].Text,
			TargetLanguage: group[i].TargetLanguage,
		}
		pending = append(pending, i)
	}

	if len(group) > 1 && NormalizeBatchSize(e.BatchSize) > 0 && llm.SupportsJSONBatch(e.Model) {
		pending = e.llmBatchPass(ctx, group, sourceLang, results)
	}

	for _, i := range pending {
		e.translateOne(ctx, group[i], sourceLang, &results[i])
	}
	return results
}

// llmBatchPass runs the JSON batch protocol with response-level retries.
// It returns the positions still unresolved for the per-sentence path.
func (e *Engine) llmBatchPass(ctx context.Context, group []Sentence, sourceLang string, results []TranslationResult) []int {
	target, _ := language.Resolve(group[0].TargetLanguage)
	system := BatchPrompt(sourceLang, group[0].TargetLanguage, e.IncludeTransliteration)

	items := make([]llm.BatchItem, len(group))
	for i, s := range group {
		items[i] = llm.BatchItem{ID: i + 1, Text: s.Text}
	}

	bc := llm.NewBatchClient(e.Client)
	bc.DebugDir = e.DebugDir
	bc.Lang = group[0].TargetLanguage

	unresolved := make([]int, len(group))
	for i := range unresolved {
		unresolved[i] = i
	}
	for attempt := 1; attempt <= responseAttempts; attempt++ {
		resp := bc.RequestBatch(ctx, e.Model, system, items, e.Timeout, transportAttempts,
			func(p *llm.BatchPayload) bool { return len(p.Items) > 0 })
		if resp.Err != nil {
			if e.Tracker != nil {
				e.Tracker.RecordBatch(progress.StageTranslation, len(items), len(unresolved), resp.Elapsed)
			}
			logger.Debug("Batch translation call failed, falling back per sentence", "error", resp.Err)
			return unresolved
		}

		byID := resp.Payload.ByID()
		var stillBad []int
		for _, i := range unresolved {
			item, found := byID[i+1]
			if !found {
				stillBad = append(stillBad, i)
				continue
			}
			translation, translitText := splitCandidate(item.Translation, item.Transliteration, e.IncludeTransliteration)
			if res := validate.Translation(group[i].Text, translation, target); !res.OK {
				if e.Tracker != nil {
					e.Tracker.Retry(progress.StageTranslation, res.Reason)
				}
				results[i].RetryCount++
				stillBad = append(stillBad, i)
				continue
			}
			results[i].Translation = translation
			results[i].Transliteration = translitText
		}
		if e.Tracker != nil {
			e.Tracker.RecordBatch(progress.StageTranslation, len(items), len(stillBad), resp.Elapsed)
		}
		unresolved = stillBad
		if len(unresolved) == 0 {
			return nil
		}
		if attempt < responseAttempts {
			select {
			case <-ctx.Done():
				return unresolved
			case <-time.After(e.retryDelay()):
			}
		}
	}
	return unresolved
}

func (e *Engine) translateOne(ctx context.Context, s Sentence, sourceLang string, res *TranslationResult) {
	target, _ := language.Resolve(s.TargetLanguage)
	system := SinglePrompt(sourceLang, s.TargetLanguage, e.IncludeTransliteration)
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: s.Text},
	}

	lastReason := "no attempts made"
	for attempt := 1; attempt <= responseAttempts; attempt++ {
		raw, err := e.Client.Chat(ctx, e.Model, messages, e.Timeout)
		if err != nil {
			lastReason = apperrors.PublicMessage(err)
			if !apperrors.IsRetryable(err) {
				break
			}
		} else {
			translation, translitText := splitRaw(raw, e.IncludeTransliteration)
			if vr := validate.Translation(s.Text, translation, target); vr.OK {
				res.Translation = translation
				res.Transliteration = translitText
				return
			} else {
				lastReason = vr.Reason
			}
		}

		res.RetryCount++
		if e.Tracker != nil {
			e.Tracker.Retry(progress.StageTranslation, lastReason)
		}
		if attempt < responseAttempts {
			select {
			case <-ctx.Done():
				attempt = responseAttempts
			case <-time.After(e.retryDelay()):
			}
		}
	}

	res.Translation = failureAnnotation(progress.StageTranslation, responseAttempts, lastReason)
	res.Err = lastReason
}

// fillTransliterations resolves missing transliterations in batch, using
// the translation output rather than the source.
func (e *Engine) fillTransliterations(ctx context.Context, group []Sentence, results []TranslationResult) {
	var texts []string
	var positions []int
	for i := range results {
		if results[i].Err != "" || results[i].Transliteration != "" {
			continue
		}
		texts = append(texts, results[i].Translation)
		positions = append(positions, i)
	}
	if len(texts) == 0 {
		return
	}
	romanized := e.Translit.TransliterateAll(ctx, texts, group[0].TargetLanguage)
	for n, i := range positions {
		results[i].Transliteration = romanized[n]
	}
}

func splitRaw(raw string, includeTranslit bool) (string, string) {
	if includeTranslit {
		translation, translitText := textnorm.SplitTranslit(raw)
		return normalizeCandidate(translation), normalizeCandidate(translitText)
	}
	first := raw
	if idx := strings.IndexByte(raw, '\n'); idx >= 0 {
		first = raw[:idx]
	}
	return normalizeCandidate(first), ""
}

func splitCandidate(translation, translitText string, includeTranslit bool) (string, string) {
	if includeTranslit && translitText == "" {
		return splitRaw(translation, true)
	}
	return normalizeCandidate(translation), normalizeCandidate(translitText)
}

func normalizeCandidate(s string) string {
	return textnorm.StripQuotes(textnorm.CollapseWhitespace(s))
}
