package bus

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/paperdraft/chat"
	"github.com/c360studio/paperdraft/paper"
)

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()

	ns, err := server.NewServer(&server.Options{Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestPublisherPreviewEvent(t *testing.T) {
	nc := startNATS(t)
	p := NewPublisher(nc, nil)

	received := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(PreviewSubject, received)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	p.PublishPreview(7, []paper.FormattedSection{
		{SectionID: "s1", Title: "Intro", Content: "Prose.", Fallback: false},
	})

	select {
	case msg := <-received:
		var event PreviewEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, uint64(7), event.Seq)
		require.Len(t, event.Sections, 1)
		assert.Equal(t, "Prose.", event.Sections[0].Content)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("no preview event received")
	}
}

func TestPublisherChatTurn(t *testing.T) {
	nc := startNATS(t)
	p := NewPublisher(nc, nil)

	received := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(ChatSubject, received)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	p.PublishChatTurn(chat.Message{
		ID:      "m1",
		Role:    chat.RoleAssistant,
		Content: "Reply.",
	})

	select {
	case msg := <-received:
		var event ChatEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, "m1", event.Message.ID)
		assert.Equal(t, chat.RoleAssistant, event.Message.Role)
	case <-time.After(5 * time.Second):
		t.Fatal("no chat event received")
	}
}

func TestPublisherErrorEvent(t *testing.T) {
	nc := startNATS(t)
	p := NewPublisher(nc, nil)

	received := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(ErrorSubject, received)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	p.ReportError("save", errors.New("schema error 42703: column missing"),
		"The user_id column is missing. Please run: ALTER TABLE drafts ADD COLUMN user_id TEXT;")

	select {
	case msg := <-received:
		var event ErrorEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, "save", event.Op)
		assert.Contains(t, event.Error, "42703")
		assert.Contains(t, event.Remediation, "ALTER TABLE drafts")
	case <-time.After(5 * time.Second):
		t.Fatal("no error event received")
	}
}

func TestPublisherSurvivesClosedConnection(t *testing.T) {
	nc := startNATS(t)
	p := NewPublisher(nc, nil)
	nc.Close()

	// Publish failures are swallowed: the operation that produced the
	// event must not fail because the UI channel is down.
	assert.NotPanics(t, func() {
		p.PublishPreview(1, nil)
		p.ReportError("save", errors.New("x"), "y")
	})
}
