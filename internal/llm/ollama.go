package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
	"github.com/fifosk/ebook-tools-sub003/internal/httpclient"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
)

// DefaultOllamaURL is the chat endpoint of a local Ollama daemon.
const DefaultOllamaURL = "http://localhost:11434/api/chat"

// OllamaClient talks to an Ollama-compatible /api/chat endpoint.
type OllamaClient struct {
	endpoint string
	model    string
	client   *http.Client
}

type ollamaRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

// NewOllamaClient creates a client for the given endpoint and default model.
// Empty arguments fall back to the local daemon defaults.
func NewOllamaClient(endpoint, model string) *OllamaClient {
	if endpoint == "" {
		endpoint = DefaultOllamaURL
	}
	return &OllamaClient{
		endpoint: endpoint,
		model:    model,
		client:   httpclient.Default(),
	}
}

func (c *OllamaClient) ModelID() string {
	return c.model
}

// Chat performs one blocking chat call. The timeout bounds the whole
// request including generation time.
func (c *OllamaClient) Chat(ctx context.Context, model string, messages []Message, timeout time.Duration) (string, error) {
	if model == "" {
		model = c.model
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payload, err := json.Marshal(ollamaRequest{Model: model, Messages: messages, Stream: false})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	body, resp, err := httpclient.DoAndRead(c.client, httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", apperrors.Canceled(ctx.Err())
		}
		return "", apperrors.New(
			apperrors.KindTransient,
			"LLM request failed due to a temporary network error.",
			fmt.Errorf("request failed: %w", err),
		)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, resp.Status, body)
	}

	var result ollamaResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", apperrors.New(
			apperrors.KindValidation,
			"LLM response format was invalid.",
			fmt.Errorf("failed to decode response: %w", err),
		)
	}
	if result.Error != "" {
		return "", apperrors.New(apperrors.KindTransient, "", fmt.Errorf("ollama error: %s", result.Error))
	}

	logger.Debug("Ollama chat completed", "model", model, "status", resp.Status, "bytes", len(body))
	return result.Message.Content, nil
}

func classifyStatus(statusCode int, status string, body []byte) error {
	cause := fmt.Errorf("llm status=%s body=%d bytes", status, len(body))
	switch {
	case statusCode == http.StatusTooManyRequests:
		return apperrors.RateLimit(cause)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return apperrors.Auth(cause)
	case statusCode == http.StatusNotFound:
		return apperrors.New(apperrors.KindUnavailable, "Model not found on the LLM endpoint.", cause)
	case statusCode >= 500:
		return apperrors.Transient(cause)
	default:
		return apperrors.New(apperrors.KindValidation, "Request rejected by the LLM endpoint.", cause)
	}
}
