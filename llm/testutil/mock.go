// Package testutil provides test utilities for the llm package.
// It includes mock implementations for testing completion interactions.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/paperdraft/llm"
)

// MockCompleter is a thread-safe mock llm.Completer for testing.
// It captures every request and returns configured responses in order.
//
// Usage:
//
//	mock := &MockCompleter{
//	    Responses: []*llm.Response{{Content: "Sentence.", Model: "test-model"}},
//	}
//
//	// Error response (carrying fallback, as the real client does):
//	mock := &MockCompleter{
//	    Err: llm.NewTransportError(errors.New("connection refused"), "- raw"),
//	}
type MockCompleter struct {
	mu            sync.Mutex
	requests      []llm.Request
	Responses     []*llm.Response // Responses to return in sequence
	Err           error           // Error to return (takes precedence over Responses)
	ErrUseRequest bool            // Wrap Err as transport error with the request's fallback
	Delay         func(req llm.Request) // Optional per-request hook, called outside the lock
	responseIndex int
}

// Complete implements llm.Completer.
func (m *MockCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if m.Delay != nil {
		m.Delay(req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.Err != nil {
		if m.ErrUseRequest {
			return nil, llm.NewTransportError(m.Err, req.Fallback)
		}
		return nil, m.Err
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	// Default response if no responses configured
	return &llm.Response{Content: "mock completion", Model: "test-model"}, nil
}

// Requests returns a copy of every captured request, in call order.
func (m *MockCompleter) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns the number of times Complete() was called.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
