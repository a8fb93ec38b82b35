package llm

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
)

var reqItems = []BatchItem{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}, {ID: 3, Text: "c"}}

func TestParseBatchResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantIDs []int
		wantErr bool
	}{
		{
			name:    "items envelope",
			raw:     `{"items":[{"id":1,"translation":"x"},{"id":2,"translation":"y"},{"id":3,"translation":"z"}]}`,
			wantIDs: []int{1, 2, 3},
		},
		{
			name:    "bare list",
			raw:     `[{"id":1,"translation":"x"},{"id":2,"translation":"y"}]`,
			wantIDs: []int{1, 2},
		},
		{
			name:    "alternate id keys",
			raw:     `{"items":[{"sentence_id":1,"translation":"x"},{"sentence_number":"2","translation":"y"},{"index":3,"translation":"z"}]}`,
			wantIDs: []int{1, 2, 3},
		},
		{
			name:    "numeric string ids",
			raw:     `{"items":[{"id":"1","translation":"x"},{"id":"2","translation":"y"}]}`,
			wantIDs: []int{1, 2},
		},
		{
			name:    "positional fallback on length match",
			raw:     `[{"translation":"x"},{"translation":"y"},{"translation":"z"}]`,
			wantIDs: []int{1, 2, 3},
		},
		{
			name:    "duplicate ids collapse to first",
			raw:     `{"items":[{"id":1,"translation":"first"},{"id":1,"translation":"second"},{"id":2,"translation":"y"}]}`,
			wantIDs: []int{1, 2},
		},
		{
			name:    "fenced json",
			raw:     "```json\n{\"items\":[{\"id\":1,\"translation\":\"x\"}]}\n```",
			wantIDs: []int{1},
		},
		{
			name:    "ids missing and length mismatch",
			raw:     `[{"translation":"x"}]`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     "Sure! Here are your translations:",
			wantErr: true,
		},
		{
			name:    "empty list",
			raw:     `{"items":[]}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := ParseBatchResponse(tt.raw, reqItems)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBatchResponse: %v", err)
			}
			if len(payload.Items) != len(tt.wantIDs) {
				t.Fatalf("got %d items, want %d", len(payload.Items), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if payload.Items[i].ID != want {
					t.Errorf("item %d id = %d, want %d", i, payload.Items[i].ID, want)
				}
			}
		})
	}
}

func TestParseBatchResponseDuplicateKeepsFirst(t *testing.T) {
	payload, err := ParseBatchResponse(`{"items":[{"id":1,"translation":"first"},{"id":1,"translation":"second"}]}`, reqItems)
	if err != nil {
		t.Fatal(err)
	}
	if got := payload.ByID()[1].Translation; got != "first" {
		t.Errorf("duplicate id kept %q, want first occurrence", got)
	}
}

func TestRequestBatchRetriesThenSucceeds(t *testing.T) {
	mock := &MockClient{
		Responses: []string{
			"not json at all",
			`{"items":[{"id":1,"translation":"x"}]}`,
		},
	}
	bc := NewBatchClient(mock)
	bc.RetryDelay = time.Millisecond

	resp := bc.RequestBatch(context.Background(), "mock", "sys", []BatchItem{{ID: 1, Text: "a"}}, time.Second, 4,
		func(p *BatchPayload) bool { return len(p.Items) > 0 })
	if resp.Err != nil {
		t.Fatalf("RequestBatch err: %v", resp.Err)
	}
	if resp.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", resp.Attempts)
	}
	if mock.Calls != 2 {
		t.Errorf("mock calls = %d, want 2", mock.Calls)
	}
}

func TestRequestBatchExhaustsAttempts(t *testing.T) {
	mock := &MockClient{Errs: []error{apperrors.Transient(errors.New("503"))}}
	bc := NewBatchClient(mock)
	bc.RetryDelay = time.Millisecond

	resp := bc.RequestBatch(context.Background(), "mock", "sys", []BatchItem{{ID: 1, Text: "a"}}, time.Second, 4, nil)
	if resp.Err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if mock.Calls != 4 {
		t.Errorf("mock calls = %d, want 4", mock.Calls)
	}
}

func TestRequestBatchValidatorRejection(t *testing.T) {
	mock := &MockClient{Responses: []string{`{"items":[{"id":1,"translation":""}]}`}}
	bc := NewBatchClient(mock)
	bc.RetryDelay = time.Millisecond

	resp := bc.RequestBatch(context.Background(), "mock", "sys", []BatchItem{{ID: 1, Text: "a"}}, time.Second, 2,
		func(p *BatchPayload) bool { return false })
	if resp.Err == nil {
		t.Fatal("expected validator rejection")
	}
	if kind, _ := apperrors.KindOf(resp.Err); kind != apperrors.KindValidation {
		t.Errorf("kind = %v, want validation", kind)
	}
}

func TestRequestBatchNonRetryableStops(t *testing.T) {
	mock := &MockClient{Errs: []error{apperrors.Auth(errors.New("401"))}}
	bc := NewBatchClient(mock)

	resp := bc.RequestBatch(context.Background(), "mock", "sys", []BatchItem{{ID: 1, Text: "a"}}, time.Second, 4, nil)
	if resp.Err == nil {
		t.Fatal("expected error")
	}
	if mock.Calls != 1 {
		t.Errorf("auth errors must not be retried; calls = %d", mock.Calls)
	}
}

func TestSupportsJSONBatch(t *testing.T) {
	if !SupportsJSONBatch("gemma2:27b") {
		t.Error("gemma2 should support batches")
	}
	if !SupportsJSONBatch("Llama3.1:8b") {
		t.Error("case-insensitive prefix match failed")
	}
	if SupportsJSONBatch("tinyllama") {
		t.Error("unknown family should not support batches")
	}
}

func TestDebugArtifactNameCarriesLanguage(t *testing.T) {
	dir := t.TempDir()
	mock := &MockClient{Responses: []string{`{"items":[{"id":1,"translation":"x"}]}`}}
	bc := NewBatchClient(mock)
	bc.DebugDir = dir
	bc.Lang = "pt-BR"

	bc.RequestBatch(context.Background(), "mock", "sys", []BatchItem{{ID: 1, Text: "a"}}, time.Second, 1,
		func(p *BatchPayload) bool { return len(p.Items) > 0 })

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("artifacts = %d (%v)", len(entries), err)
	}
	name := entries[0].Name()
	if !strings.Contains(name, "_0001-0001_pt-BR_a1_") {
		t.Errorf("artifact name %q must embed id range and language tag", name)
	}
	if strings.Contains(name, "mock") {
		t.Errorf("artifact name %q should not embed the model tag", name)
	}
}
