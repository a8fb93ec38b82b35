// Package translit romanizes translated text. A rule-based engine handles
// the scripts it has tables for; everything else goes through the LLM with
// validation and per-item fallback.
package translit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fifosk/ebook-tools-sub003/internal/language"
	"github.com/fifosk/ebook-tools-sub003/internal/llm"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
	"github.com/fifosk/ebook-tools-sub003/internal/textnorm"
	"github.com/fifosk/ebook-tools-sub003/internal/validate"
)

// Mode selects the engine combination.
type Mode string

const (
	// ModeRules uses only the local tables.
	ModeRules Mode = "rules"
	// ModeDefault tries the local tables first and the LLM second.
	ModeDefault Mode = "default"
)

// Transliterator coordinates the two engines.
type Transliterator struct {
	Mode    Mode
	Client  llm.Client
	Model   string
	Timeout time.Duration
	// OnRetry is reported with a reason whenever an LLM candidate is
	// rejected and the rule result is used instead.
	OnRetry func(reason string)
}

// New returns a default-mode transliterator. A nil client degrades to
// rules-only behavior.
func New(client llm.Client, model string) *Transliterator {
	return &Transliterator{
		Mode:    ModeDefault,
		Client:  client,
		Model:   model,
		Timeout: 2 * time.Minute,
	}
}

func systemPrompt(lang language.Language) string {
	return fmt.Sprintf(
		"You transliterate %s text into Latin script. Reply with the romanization only: no explanations, no source echo, single line.",
		lang.Name)
}

func batchSystemPrompt(lang language.Language) string {
	return fmt.Sprintf(
		"You transliterate %s text into Latin script. Reply with only valid JSON of the form {\"items\": [{\"id\": n, \"transliteration\": \"...\"}]}. One entry per input id, single-line strings, no code fences, no source echo.",
		lang.Name)
}

// usableRuleResult reports whether the local engine's output stands on its
// own.
func usableRuleResult(s string) bool {
	return strings.TrimSpace(s) != "" && !textnorm.IsPlaceholder(s)
}

// Transliterate romanizes one string. The returned string may be empty when
// neither engine produced a usable result.
func (t *Transliterator) Transliterate(ctx context.Context, text, langCode string) (string, error) {
	local := Romanize(text)
	if usableRuleResult(local) {
		return local, nil
	}
	if t.Mode == ModeRules || t.Client == nil {
		return local, nil
	}
	return t.llmTransliterate(ctx, text, langCode, local)
}

func (t *Transliterator) llmTransliterate(ctx context.Context, text, langCode, fallback string) (string, error) {
	lang, ok := language.Resolve(langCode)
	if !ok {
		lang = language.Language{Code: langCode, Name: langCode}
	}
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt(lang)},
		{Role: "user", Content: text},
	}
	raw, err := t.Client.Chat(ctx, t.Model, messages, t.Timeout)
	if err != nil {
		logger.Debug("LLM transliteration failed, keeping rule result", "language", lang.Code, "error", err)
		return fallback, nil
	}

	candidate := textnorm.StripQuotes(textnorm.CollapseWhitespace(raw))
	if res := validate.Transliteration(candidate); !res.OK {
		if t.OnRetry != nil {
			t.OnRetry(res.Reason)
		}
		logger.Debug("Transliteration candidate rejected", "language", lang.Code, "reason", res.Reason)
		return fallback, nil
	}
	return candidate, nil
}

// TransliterateAll romanizes a slice, batching the LLM remainder when the
// model supports JSON batches. Results align with the inputs by position.
func (t *Transliterator) TransliterateAll(ctx context.Context, texts []string, langCode string) []string {
	out := make([]string, len(texts))
	remaining := make([]int, 0, len(texts))
	for i, text := range texts {
		local := Romanize(text)
		if usableRuleResult(local) {
			out[i] = local
			continue
		}
		out[i] = local
		remaining = append(remaining, i)
	}

	if len(remaining) == 0 || t.Mode == ModeRules || t.Client == nil {
		return out
	}

	if len(remaining) > 1 && llm.SupportsJSONBatch(t.Model) {
		if t.batchFill(ctx, texts, langCode, remaining, out) {
			return out
		}
	}

	for _, i := range remaining {
		if usableRuleResult(out[i]) {
			continue
		}
		got, err := t.llmTransliterate(ctx, texts[i], langCode, out[i])
		if err == nil {
			out[i] = got
		}
	}
	return out
}

// batchFill issues one batch call and fills accepted entries. It returns
// true when every remaining slot was filled; rejected items are left for
// the per-item path.
func (t *Transliterator) batchFill(ctx context.Context, texts []string, langCode string, remaining []int, out []string) bool {
	lang, ok := language.Resolve(langCode)
	if !ok {
		lang = language.Language{Code: langCode, Name: langCode}
	}

	items := make([]llm.BatchItem, len(remaining))
	for n, i := range remaining {
		items[n] = llm.BatchItem{ID: n + 1, Text: texts[i]}
	}

	bc := llm.NewBatchClient(t.Client)
	bc.Lang = lang.Code
	resp := bc.RequestBatch(ctx, t.Model, batchSystemPrompt(lang), items, t.Timeout, 2,
		func(p *llm.BatchPayload) bool { return len(p.Items) > 0 })
	if resp.Err != nil {
		logger.Debug("Batch transliteration failed, falling back per item", "error", resp.Err)
		return false
	}

	byID := resp.Payload.ByID()
	complete := true
	for n, i := range remaining {
		item, found := byID[n+1]
		if !found {
			complete = false
			continue
		}
		candidate := textnorm.StripQuotes(textnorm.CollapseWhitespace(item.Transliteration))
		if res := validate.Transliteration(candidate); !res.OK {
			if t.OnRetry != nil {
				t.OnRetry(res.Reason)
			}
			complete = false
			continue
		}
		out[i] = candidate
	}
	return complete
}
