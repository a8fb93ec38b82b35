package llm

import (
	"context"
	"sync"
	"time"
)

// MockClient is a scripted Client for tests. Responses are returned in
// order; the last one repeats once the script runs out.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error
	Calls     int
	// LastMessages records the most recent request for assertions.
	LastMessages []Message
	Model        string
}

func (m *MockClient) ModelID() string {
	if m.Model == "" {
		return "mock"
	}
	return m.Model
}

func (m *MockClient) Chat(_ context.Context, _ string, messages []Message, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.Calls
	m.Calls++
	m.LastMessages = messages

	var err error
	if len(m.Errs) > 0 {
		if idx < len(m.Errs) {
			err = m.Errs[idx]
		} else {
			err = m.Errs[len(m.Errs)-1]
		}
	}
	if err != nil {
		return "", err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}
