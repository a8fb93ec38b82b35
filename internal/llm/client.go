// Package llm provides the chat transport used by the translation engine:
// a minimal blocking client interface with Ollama and Gemini backends, and
// a batch client that wraps it with JSON payload handling and retries.
package llm

import (
	"context"
	"strings"
	"time"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"` // "system" or "user"
	Content string `json:"content"`
}

// Client is the single blocking call the engine needs. The timeout is
// absolute per call; retries live in the layers above.
type Client interface {
	Chat(ctx context.Context, model string, messages []Message, timeout time.Duration) (string, error)
	// ModelID returns the default model tag used when the caller passes "".
	ModelID() string
}

// batchCapableModels lists model families known to return well-formed JSON
// for batched requests. Anything else falls back to one call per sentence.
var batchCapableModels = []string{
	"gemma2",
	"gemma3",
	"llama3",
	"llama4",
	"qwen",
	"mistral",
	"mixtral",
	"deepseek",
	"gemini",
	"gpt-oss",
}

// SupportsJSONBatch reports whether the model family is trusted with
// JSON-batched translation requests.
func SupportsJSONBatch(model string) bool {
	tag := strings.ToLower(strings.TrimSpace(model))
	for _, family := range batchCapableModels {
		if strings.HasPrefix(tag, family) {
			return true
		}
	}
	return false
}
