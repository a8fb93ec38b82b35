package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := Validation(fmt.Errorf("bad shape"))
	kind, ok := KindOf(err)
	if !ok || kind != KindValidation {
		t.Fatalf("KindOf() = %v, %v; want %v, true", kind, ok, KindValidation)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf() matched a plain error")
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", RateLimit(errors.New("429")))
	kind, ok := KindOf(err)
	if !ok || kind != KindRateLimit {
		t.Fatalf("KindOf(wrapped) = %v, %v; want %v, true", kind, ok, KindRateLimit)
	}
	if !IsRateLimit(err) {
		t.Error("IsRateLimit(wrapped) = false")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", Transient(errors.New("503")), true},
		{"rate limit", RateLimit(errors.New("429")), true},
		{"validation", Validation(errors.New("hallucination")), true},
		{"auth", Auth(errors.New("403")), false},
		{"config", Config(errors.New("no dirs")), false},
		{"persistence", Persistence(errors.New("rename")), false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(Config(errors.New("unwritable"))) {
		t.Error("config errors must be fatal")
	}
	if IsFatal(Transient(errors.New("503"))) {
		t.Error("transient errors must not be fatal")
	}
}

func TestPublicMessage(t *testing.T) {
	err := New(KindAuth, "", errors.New("secret token abc"))
	if msg := PublicMessage(err); msg != "Authentication failed. Please verify your API key and permissions." {
		t.Errorf("PublicMessage() = %q", msg)
	}
	if msg := PublicMessage(nil); msg != "" {
		t.Errorf("PublicMessage(nil) = %q", msg)
	}
}
