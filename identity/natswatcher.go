package identity

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// SessionSubject is the subject the auth frontend publishes session
// changes on.
const SessionSubject = "paperdraft.auth.session"

// SessionEvent is the wire shape of a session-change notification.
type SessionEvent struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
}

// NATSProvider tracks the active session from session events on NATS.
// It starts signed out and follows whatever the auth frontend reports.
type NATSProvider struct {
	static *Static
	sub    *nats.Subscription
	logger *slog.Logger
}

// NewNATSProvider subscribes to session events on the given connection.
func NewNATSProvider(nc *nats.Conn, logger *slog.Logger) (*NATSProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p := &NATSProvider{
		static: &Static{subs: make(map[int]func(Identity, bool))},
		logger: logger,
	}

	sub, err := nc.Subscribe(SessionSubject, p.handle)
	if err != nil {
		return nil, err
	}
	p.sub = sub
	return p, nil
}

func (p *NATSProvider) handle(msg *nats.Msg) {
	var event SessionEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		p.logger.Warn("Ignoring malformed session event", "error", err)
		return
	}

	if event.Authenticated {
		p.logger.Info("Session established", "user_id", event.UserID)
		p.static.Set(Identity{ID: event.UserID, Email: event.Email})
	} else {
		p.logger.Info("Session ended")
		p.static.SignOut()
	}
}

// Current implements Provider.
func (p *NATSProvider) Current(ctx context.Context) (Identity, error) {
	return p.static.Current(ctx)
}

// Subscribe implements Provider.
func (p *NATSProvider) Subscribe(fn func(Identity, bool)) func() {
	return p.static.Subscribe(fn)
}

// Close drops the NATS subscription.
func (p *NATSProvider) Close() error {
	if p.sub != nil {
		return p.sub.Unsubscribe()
	}
	return nil
}
