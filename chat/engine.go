// Package chat implements the conversational assistant: an append-only
// message log with strict turn-taking against the text-generation
// backend. At most one assistant turn is ever outstanding, enforced
// here rather than left to the presentation layer.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/paperdraft/llm"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks messages typed by the user.
	RoleUser Role = "user"

	// RoleAssistant marks messages produced by the assistant.
	RoleAssistant Role = "assistant"
)

// TurnState is the engine's turn-taking marker.
type TurnState string

const (
	// StateIdle means the engine can accept a submission.
	StateIdle TurnState = "idle"

	// StateAwaitingResponse means an assistant turn is outstanding.
	StateAwaitingResponse TurnState = "awaiting_response"
)

// WelcomeMessage seeds a fresh conversation. It participates in history
// payloads like any other message.
const WelcomeMessage = "Hello! I am your research assistant. How can I help you with your paper today?"

// FallbackReply is appended as the assistant turn when the backend
// cannot be reached.
const FallbackReply = "I'm sorry, I couldn't connect to the local LLM. Please ensure Ollama is running."

// Submission errors.
var (
	// ErrEmptyInput rejects empty or whitespace-only submissions.
	ErrEmptyInput = errors.New("chat input is empty")

	// ErrTurnInProgress rejects a submission while a previous assistant
	// turn is still outstanding.
	ErrTurnInProgress = errors.New("assistant turn already in progress")

	// ErrTurnDiscarded reports that the history was cleared while the
	// turn was outstanding; its reply was dropped instead of being
	// appended to the fresh log.
	ErrTurnDiscarded = errors.New("turn discarded: history cleared")
)

// Message is one entry in the append-only conversation log. Messages
// are never edited or reordered after creation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Engine owns the message log for the lifetime of a session and
// serializes it into backend-compatible payloads.
type Engine struct {
	client      llm.Completer
	model       string
	tokenBudget int
	now         func() time.Time
	logger      *slog.Logger

	mu       sync.Mutex
	messages []Message
	state    TurnState
	lastTS   time.Time
	gen      uint64 // log generation, bumped by Clear
}

// Option configures an Engine.
type Option func(*Engine)

// WithTokenBudget caps the approximate token size of history payloads.
// Oldest messages are trimmed first; zero disables trimming.
func WithTokenBudget(budget int) Option {
	return func(e *Engine) {
		e.tokenBudget = budget
	}
}

// WithNow sets the timestamp source.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine seeded with the welcome message.
func NewEngine(client llm.Completer, model string, opts ...Option) *Engine {
	e := &Engine{
		client: client,
		model:  model,
		now:    time.Now,
		logger: slog.Default(),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.seedLocked()
	return e
}

// Submit appends the user's message, sends the full ordered history to
// the backend, and appends the assistant reply (or the fallback reply)
// exactly once. It rejects empty input and concurrent turns.
func (e *Engine) Submit(ctx context.Context, userText string) (Message, error) {
	if strings.TrimSpace(userText) == "" {
		return Message{}, ErrEmptyInput
	}

	e.mu.Lock()
	if e.state == StateAwaitingResponse {
		e.mu.Unlock()
		return Message{}, ErrTurnInProgress
	}

	// The user message lands in the log before any network activity so
	// submission order, not completion order, defines message order.
	e.appendLocked(RoleUser, userText)
	e.state = StateAwaitingResponse
	gen := e.gen
	payload := e.payloadLocked()
	e.mu.Unlock()

	resp, err := e.client.Complete(ctx, llm.Request{
		Mode:     llm.ModeChat,
		Model:    e.model,
		Messages: payload,
		Fallback: FallbackReply,
	})

	reply := ""
	if err != nil {
		fallback, ok := llm.FallbackText(err)
		if !ok {
			fallback = FallbackReply
		}
		e.logger.Warn("Assistant turn failed, using fallback reply", "error", err)
		reply = fallback
	} else {
		reply = resp.Content
	}

	e.mu.Lock()
	if e.gen != gen {
		// The log was cleared while this turn was in flight. The reply
		// belongs to a conversation that no longer exists; dropping it
		// here keeps the fresh log free of stale turns.
		e.state = StateIdle
		e.mu.Unlock()
		e.logger.Debug("Assistant turn discarded, history was cleared mid-turn")
		return Message{}, ErrTurnDiscarded
	}
	msg := e.appendLocked(RoleAssistant, reply)
	e.state = StateIdle
	e.mu.Unlock()

	return msg, nil
}

// History returns a copy of the message log, oldest first.
func (e *Engine) History() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// State returns the current turn state.
func (e *Engine) State() TurnState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Clear empties the log unconditionally and reseeds the welcome
// message. It is the only operation that removes messages. The turn
// state is untouched: an outstanding turn stays outstanding (its reply
// is dropped when it resolves), so single-turn enforcement survives a
// mid-turn clear.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.messages = nil
	e.seedLocked()
}

// payloadLocked reduces the full history to {role, content} pairs with
// one leading system instruction, trimmed to the token budget.
func (e *Engine) payloadLocked() []llm.Message {
	payload := make([]llm.Message, 0, len(e.messages)+1)
	payload = append(payload, llm.Message{Role: "system", Content: SystemPrompt})
	for _, m := range e.messages {
		payload = append(payload, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return llm.TrimToBudget(payload, e.tokenBudget)
}

// appendLocked adds a message with a timestamp strictly later than all
// existing messages. Caller holds e.mu.
func (e *Engine) appendLocked(role Role, content string) Message {
	ts := e.now()
	if !ts.After(e.lastTS) {
		ts = e.lastTS.Add(time.Microsecond)
	}
	e.lastTS = ts

	msg := Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: ts,
	}
	e.messages = append(e.messages, msg)
	return msg
}

// seedLocked installs the synthetic welcome message.
func (e *Engine) seedLocked() {
	e.appendLocked(RoleAssistant, WelcomeMessage)
}
