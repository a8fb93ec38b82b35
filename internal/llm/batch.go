package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
)

// BatchItem is one numbered input sentence.
type BatchItem struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// BatchResultItem is one parsed response entry.
type BatchResultItem struct {
	ID              int
	Translation     string
	Transliteration string
}

// BatchPayload is the parsed body of a batch response.
type BatchPayload struct {
	Items []BatchResultItem
}

// ByID indexes the payload, collapsing duplicate ids to the first
// occurrence.
func (p *BatchPayload) ByID() map[int]BatchResultItem {
	out := make(map[int]BatchResultItem, len(p.Items))
	for _, item := range p.Items {
		if _, seen := out[item.ID]; !seen {
			out[item.ID] = item
		}
	}
	return out
}

// BatchResponse carries the outcome of one RequestBatch call.
type BatchResponse struct {
	Payload  *BatchPayload
	Raw      string
	Err      error
	Elapsed  time.Duration
	Attempts int
}

// BatchClient layers JSON batch handling and bounded transport retries on a
// Client.
type BatchClient struct {
	client Client
	// DebugDir, when set, receives one artifact file per request/response
	// pair for post-hoc inspection.
	DebugDir string
	// Lang is the target language tag embedded in artifact filenames.
	Lang string
	// RetryDelay between transport attempts.
	RetryDelay time.Duration
}

// NewBatchClient wraps a chat client.
func NewBatchClient(client Client) *BatchClient {
	return &BatchClient{client: client, RetryDelay: 500 * time.Millisecond}
}

// RequestBatch sends the items as a single JSON user message and retries
// until the response parses and the validator accepts it, up to
// maxAttempts.
func (c *BatchClient) RequestBatch(ctx context.Context, model, systemPrompt string, items []BatchItem, timeout time.Duration, maxAttempts int, validator func(*BatchPayload) bool) BatchResponse {
	start := time.Now()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	userPayload, err := json.Marshal(struct {
		Items []BatchItem `json:"items"`
	}{Items: items})
	if err != nil {
		return BatchResponse{Err: err, Elapsed: time.Since(start)}
	}
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: string(userPayload)},
	}

	var lastErr error
	var raw string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			lastErr = apperrors.Canceled(ctx.Err())
			break
		}

		raw, lastErr = c.client.Chat(ctx, model, messages, timeout)
		if lastErr == nil {
			payload, parseErr := ParseBatchResponse(raw, items)
			if parseErr != nil {
				lastErr = apperrors.Validation(parseErr)
			} else if validator != nil && !validator(payload) {
				lastErr = apperrors.Validation(fmt.Errorf("batch payload rejected by validator"))
			} else {
				c.dumpArtifact(model, items, raw, attempt, time.Since(start), nil)
				return BatchResponse{
					Payload:  payload,
					Raw:      raw,
					Elapsed:  time.Since(start),
					Attempts: attempt,
				}
			}
		}

		c.dumpArtifact(model, items, raw, attempt, time.Since(start), lastErr)
		if attempt < maxAttempts && apperrors.IsRetryable(lastErr) {
			select {
			case <-ctx.Done():
				lastErr = apperrors.Canceled(ctx.Err())
			case <-time.After(c.RetryDelay):
				continue
			}
		}
		break
	}

	return BatchResponse{
		Raw:      raw,
		Err:      lastErr,
		Elapsed:  time.Since(start),
		Attempts: maxAttempts,
	}
}

// rawBatchItem tolerates the id under several keys and as a numeric string.
type rawBatchItem struct {
	ID              json.RawMessage `json:"id"`
	Index           json.RawMessage `json:"index"`
	SentenceID      json.RawMessage `json:"sentence_id"`
	Sentence        json.RawMessage `json:"sentence"`
	SentenceNumber  json.RawMessage `json:"sentence_number"`
	Translation     string          `json:"translation"`
	Transliteration string          `json:"transliteration"`
	Text            string          `json:"text"`
}

func (r rawBatchItem) id() (int, bool) {
	for _, raw := range []json.RawMessage{r.ID, r.Index, r.SentenceID, r.Sentence, r.SentenceNumber} {
		if len(raw) == 0 {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return n, true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func (r rawBatchItem) translation() string {
	if r.Translation != "" {
		return r.Translation
	}
	return r.Text
}

// ParseBatchResponse parses a model response into a BatchPayload. It
// tolerates a top-level {"items": [...]} object or a bare list, ids under
// several keys, and falls back to positional mapping when the response has
// the same length as the request but no usable ids.
func ParseBatchResponse(raw string, request []BatchItem) (*BatchPayload, error) {
	text := stripFences(raw)

	var envelope struct {
		Items []rawBatchItem `json:"items"`
	}
	var rawItems []rawBatchItem
	if err := json.Unmarshal([]byte(text), &envelope); err == nil && envelope.Items != nil {
		rawItems = envelope.Items
	} else if err := json.Unmarshal([]byte(text), &rawItems); err != nil {
		return nil, fmt.Errorf("response is not a batch object or list: %w", err)
	}
	if len(rawItems) == 0 {
		return nil, fmt.Errorf("batch response contains no items")
	}

	payload := &BatchPayload{Items: make([]BatchResultItem, 0, len(rawItems))}
	idsUsable := true
	for _, item := range rawItems {
		if _, ok := item.id(); !ok {
			idsUsable = false
			break
		}
	}

	if !idsUsable {
		if len(rawItems) != len(request) {
			return nil, fmt.Errorf("ids missing and length mismatch: got %d items for %d requests", len(rawItems), len(request))
		}
		for i, item := range rawItems {
			payload.Items = append(payload.Items, BatchResultItem{
				ID:              request[i].ID,
				Translation:     item.translation(),
				Transliteration: item.Transliteration,
			})
		}
		return payload, nil
	}

	seen := make(map[int]bool, len(rawItems))
	for _, item := range rawItems {
		id, _ := item.id()
		if seen[id] {
			continue
		}
		seen[id] = true
		payload.Items = append(payload.Items, BatchResultItem{
			ID:              id,
			Translation:     item.translation(),
			Transliteration: item.Transliteration,
		})
	}
	return payload, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func (c *BatchClient) dumpArtifact(model string, items []BatchItem, raw string, attempt int, elapsed time.Duration, reqErr error) {
	if c.DebugDir == "" || len(items) == 0 {
		return
	}
	lang := c.Lang
	if lang == "" {
		lang = "und"
	}
	name := fmt.Sprintf("%s_%04d-%04d_%s_a%d_%s.json",
		time.Now().UTC().Format("20060102T150405"),
		items[0].ID, items[len(items)-1].ID,
		sanitizeTag(lang), attempt, uuid.NewString()[:8])

	artifact := struct {
		Model    string      `json:"model"`
		Items    []BatchItem `json:"items"`
		Raw      string      `json:"raw"`
		Attempt  int         `json:"attempt"`
		ElapsedS float64     `json:"elapsed_s"`
		Error    string      `json:"error,omitempty"`
	}{Model: model, Items: items, Raw: raw, Attempt: attempt, ElapsedS: elapsed.Seconds()}
	if reqErr != nil {
		artifact.Error = reqErr.Error()
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(c.DebugDir, name), data, 0o600); err != nil {
		logger.Debug("Failed to write LLM debug artifact", "error", err)
	}
}

func sanitizeTag(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
