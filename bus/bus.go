// Package bus is the event boundary between the drafting core and the
// presentation layer. Preview snapshots, chat turns, and error reports
// are published as JSON over NATS subjects the UI process subscribes to.
package bus

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/paperdraft/chat"
	"github.com/c360studio/paperdraft/paper"
)

// Subjects published by the drafting core.
const (
	// PreviewSubject carries each settled, non-superseded formatting
	// cycle's full output.
	PreviewSubject = "paperdraft.preview.updated"

	// ChatSubject carries each appended chat message.
	ChatSubject = "paperdraft.chat.turn"

	// ErrorSubject is the single error-reporting channel the
	// presentation layer observes.
	ErrorSubject = "paperdraft.errors"
)

// PreviewEvent is the payload on PreviewSubject.
type PreviewEvent struct {
	Seq       uint64                   `json:"seq"`
	Sections  []paper.FormattedSection `json:"sections"`
	Timestamp time.Time                `json:"timestamp"`
}

// ChatEvent is the payload on ChatSubject.
type ChatEvent struct {
	Message   chat.Message `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
}

// ErrorEvent is the payload on ErrorSubject.
type ErrorEvent struct {
	Op          string    `json:"op"`
	Error       string    `json:"error"`
	Remediation string    `json:"remediation"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher publishes core events over a NATS connection. It satisfies
// formatter.Sink and draft.Reporter.
type Publisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewPublisher creates a publisher on the given connection.
func NewPublisher(nc *nats.Conn, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{nc: nc, logger: logger}
}

// PublishPreview implements formatter.Sink.
func (p *Publisher) PublishPreview(seq uint64, sections []paper.FormattedSection) {
	p.publish(PreviewSubject, PreviewEvent{
		Seq:       seq,
		Sections:  sections,
		Timestamp: time.Now(),
	})
}

// PublishChatTurn announces an appended chat message.
func (p *Publisher) PublishChatTurn(msg chat.Message) {
	p.publish(ChatSubject, ChatEvent{
		Message:   msg,
		Timestamp: time.Now(),
	})
}

// ReportError implements draft.Reporter.
func (p *Publisher) ReportError(op string, err error, remediation string) {
	p.publish(ErrorSubject, ErrorEvent{
		Op:          op,
		Error:       err.Error(),
		Remediation: remediation,
		Timestamp:   time.Now(),
	})
}

// publish marshals and sends one event. Publish failures are logged,
// never propagated: losing a UI notification must not fail the
// operation that produced it.
func (p *Publisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Marshal event failed", "subject", subject, "error", err)
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn("Publish event failed", "subject", subject, "error", err)
	}
}
