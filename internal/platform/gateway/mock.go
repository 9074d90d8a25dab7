package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Call records a single delivery through MockSender.
type Call struct {
	To       string
	Template TemplateKind
	Params   []string
	Body     string
}

// MockSender is a recording Sender for tests and local development.
type MockSender struct {
	mu         sync.Mutex
	calls      []Call
	ShouldFail bool
	FailError  string
}

func (m *MockSender) Send(_ context.Context, to string, r Rendered) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{To: to, Template: r.Template.Kind, Params: r.Params, Body: r.Body})
	if m.ShouldFail {
		return "", errors.New(m.FailError)
	}
	return fmt.Sprintf("mock-%d", len(m.calls)), nil
}

// Calls returns a copy of the recorded calls.
func (m *MockSender) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}
