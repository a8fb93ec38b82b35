package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
)

// GeminiClient adapts the Gemini API to the Client interface so runs can
// select `llm_backend: gemini` without touching the engine.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient dials the Gemini API with the given key.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, apperrors.New(apperrors.KindAuth, "", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) ModelID() string {
	return c.model
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Chat maps the (system, user) message pair onto a Gemini generation call.
func (c *GeminiClient) Chat(ctx context.Context, model string, messages []Message, timeout time.Duration) (string, error) {
	if model == "" {
		model = c.model
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	gm := c.client.GenerativeModel(model)
	var userParts []genai.Part
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
		default:
			userParts = append(userParts, genai.Text(msg.Content))
		}
	}
	if len(userParts) == 0 {
		return "", apperrors.Validation(fmt.Errorf("no user message in chat request"))
	}

	resp, err := gm.GenerateContent(ctx, userParts...)
	if err != nil {
		if ctx.Err() != nil {
			return "", apperrors.Canceled(ctx.Err())
		}
		return "", apperrors.Transient(err)
	}
	text, err := extractGeminiText(resp)
	if err != nil {
		return "", apperrors.Validation(err)
	}
	return text, nil
}

func extractGeminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		var combined string
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				combined += string(text)
			}
		}
		if combined != "" {
			return combined, nil
		}
	}
	return "", fmt.Errorf("no text parts in response")
}
