package googletrans

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := New()
	c.Endpoint = srv.URL
	c.HTTP = srv.Client()
	c.RetryPause = time.Millisecond
	return c, srv
}

func gtxBody(segments ...string) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = fmt.Sprintf(`["%s","src",null,null]`, s)
	}
	return "[[" + strings.Join(parts, ",") + "],null]"
}

func TestNormalizeLang(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ja", "ja"},
		{"Japanese", "ja"},
		{"en-orig", "en"},
		{"zh", "zh-cn"},
		{"zh-CN", "zh-cn"},
		{"zh-Hans", "zh-cn"},
		{"zh-sg", "zh-cn"},
		{"zh-TW", "zh-tw"},
		{"zh-Hant", "zh-tw"},
		{"zh-HK", "zh-tw"},
		{"zh-mo", "zh-tw"},
		{"pt-BR", "pt"},
		{"iw", "he"},
	}
	for _, tt := range tests {
		got, err := NormalizeLang(tt.in)
		if err != nil {
			t.Errorf("NormalizeLang(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeLang(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := NormalizeLang("klingon"); err == nil {
		t.Error("unknown language must fail")
	}
}

func TestTranslateJoinsSegments(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("tl"); got != "es" {
			t.Errorf("tl = %q, want es", got)
		}
		fmt.Fprint(w, gtxBody("Hola ", "mundo."))
	})
	defer srv.Close()

	got, err := c.Translate(context.Background(), "Hello world.", "en", "Spanish")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Hola mundo." {
		t.Errorf("translation = %q", got)
	}
}

func TestTranslateRetriesOnServerError(t *testing.T) {
	calls := 0
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, gtxBody("bonjour"))
	})
	defer srv.Close()

	var reasons []string
	c.OnRetry = func(reason string) { reasons = append(reasons, reason) }

	got, err := c.Translate(context.Background(), "hello", "en", "fr")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "bonjour" {
		t.Errorf("translation = %q", got)
	}
	if calls != 3 || len(reasons) != 2 {
		t.Errorf("calls = %d, retries reported = %d", calls, len(reasons))
	}
}

func TestTranslateExhaustionAnnotates(t *testing.T) {
	calls := 0
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer srv.Close()

	got, err := c.Translate(context.Background(), "hello", "en", "fr")
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
	if !strings.HasPrefix(got, "Retry failed for translation after 5 attempts") {
		t.Errorf("annotation = %q", got)
	}
}

func TestTranslateRejectsPlaceholder(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, gtxBody("I cannot translate this"))
	})
	defer srv.Close()

	if _, err := c.Translate(context.Background(), "hello", "en", "fr"); err == nil {
		t.Error("placeholder results must not count as success")
	}
}

func TestTranslateUnknownLanguage(t *testing.T) {
	c := New()
	if _, err := c.Translate(context.Background(), "hello", "en", "not-a-language"); err == nil {
		t.Error("unknown target must fail before any request")
	}
}
