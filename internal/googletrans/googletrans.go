// Package googletrans is the fallback translation provider backed by the
// public Google Translate web endpoint. It carries its own retry loop and
// never surfaces raw transport noise to the pipeline.
package googletrans

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
	"github.com/fifosk/ebook-tools-sub003/internal/httpclient"
	"github.com/fifosk/ebook-tools-sub003/internal/language"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
	"github.com/fifosk/ebook-tools-sub003/internal/textnorm"
)

// DefaultEndpoint is the unauthenticated translate endpoint.
const DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"

const (
	maxAttempts = 5
	retryPause  = time.Second
)

// Client translates single sentences with paced requests. One instance is
// shared per process.
type Client struct {
	Endpoint   string
	HTTP       *http.Client
	RetryPause time.Duration

	// OnRetry is invoked with a reason for every failed attempt.
	OnRetry func(reason string)

	limiter *rate.Limiter
}

// New returns a client paced at a few requests per second, which is what
// the public endpoint tolerates.
func New() *Client {
	return &Client{
		Endpoint:   DefaultEndpoint,
		HTTP:       httpclient.Default(),
		RetryPause: retryPause,
		limiter:    rate.NewLimiter(rate.Limit(4), 2),
	}
}

var (
	healthOnce sync.Once
	healthErr  error
)

// HealthCheck verifies the endpoint is reachable. The outcome is cached
// for the life of the process.
func (c *Client) HealthCheck(ctx context.Context) error {
	healthOnce.Do(func() {
		_, err := c.fetch(ctx, "hello", "en", "es")
		if err != nil {
			healthErr = apperrors.Unavailable(fmt.Errorf("google translate health check: %w", err))
			logger.Warn("Google Translate health check failed", "error", err)
			return
		}
		logger.Debug("Google Translate health check passed")
	})
	return healthErr
}

// chineseVariants maps script and region subtags onto the two codes the
// provider actually serves.
var chineseVariants = map[string]string{
	"cn": "zh-cn", "sg": "zh-cn", "hans": "zh-cn",
	"tw": "zh-tw", "hk": "zh-tw", "mo": "zh-tw", "hant": "zh-tw",
}

// NormalizeLang maps a name, code, or pseudo-suffixed code onto the
// provider's language set.
func NormalizeLang(input string) (string, error) {
	stripped := language.StripPseudoSuffix(strings.TrimSpace(input))
	lower := strings.ToLower(stripped)

	if lower == "zh" || strings.HasPrefix(lower, "zh-") || strings.HasPrefix(lower, "zh_") {
		suffix := ""
		if len(lower) > 3 {
			suffix = lower[3:]
		}
		if v, ok := chineseVariants[suffix]; ok {
			return v, nil
		}
		return "zh-cn", nil
	}

	lang, ok := language.Resolve(stripped)
	if !ok {
		return "", fmt.Errorf("unknown language %q", input)
	}
	return lang.Code, nil
}

// Translate returns the provider's translation for one sentence. On
// exhaustion the returned text is a structured failure annotation and the
// error describes the last attempt.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	src, err := NormalizeLang(sourceLang)
	if err != nil {
		return "", apperrors.Validation(err)
	}
	tgt, err := NormalizeLang(targetLang)
	if err != nil {
		return "", apperrors.Validation(err)
	}

	pause := c.RetryPause
	if pause == 0 {
		pause = retryPause
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", apperrors.Canceled(err)
			}
		}

		result, err := c.fetch(ctx, text, src, tgt)
		switch {
		case err != nil:
			lastErr = err
		case strings.TrimSpace(result) == "":
			lastErr = fmt.Errorf("empty translation")
		case textnorm.IsPlaceholder(result):
			lastErr = fmt.Errorf("placeholder translation")
		default:
			return strings.TrimSpace(result), nil
		}

		if c.OnRetry != nil {
			c.OnRetry(lastErr.Error())
		}
		logger.Debug("Google Translate attempt failed", "attempt", attempt, "target", tgt, "error", lastErr)

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return "", apperrors.Canceled(ctx.Err())
			case <-time.After(pause):
			}
		}
	}

	annotation := fmt.Sprintf("Retry failed for translation after %d attempts: %s", maxAttempts, lastErr)
	return annotation, apperrors.Transient(fmt.Errorf("google translate exhausted %d attempts: %w", maxAttempts, lastErr))
}

// fetch issues one request and joins the returned segments.
func (c *Client) fetch(ctx context.Context, text, src, tgt string) (string, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", src)
	q.Set("tl", tgt)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	client := c.HTTP
	if client == nil {
		client = httpclient.Default()
	}
	body, resp, err := httpclient.DoAndRead(client, req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	return parseResponse(body)
}

// parseResponse walks the nested-array envelope the gtx client returns:
// [[["segment",...],["segment2",...]],...].
func parseResponse(body []byte) (string, error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil {
		return "", fmt.Errorf("unexpected response shape: %w", err)
	}
	if len(outer) == 0 {
		return "", fmt.Errorf("empty response")
	}

	var segments [][]json.RawMessage
	if err := json.Unmarshal(outer[0], &segments); err != nil {
		return "", fmt.Errorf("unexpected segment shape: %w", err)
	}

	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var piece string
		if err := json.Unmarshal(seg[0], &piece); err != nil {
			continue
		}
		sb.WriteString(piece)
	}
	return sb.String(), nil
}
