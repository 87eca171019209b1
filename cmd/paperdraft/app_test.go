package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/paperdraft/bus"
	"github.com/c360studio/paperdraft/chat"
	"github.com/c360studio/paperdraft/config"
	"github.com/c360studio/paperdraft/llm"
	"github.com/c360studio/paperdraft/llm/testutil"
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

func newTestApp(t *testing.T, mock llm.Completer) (*App, *nats.Conn) {
	t.Helper()

	nc := startNATS(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := &App{
		cfg:        config.DefaultConfig(),
		logger:     logger,
		natsConn:   nc,
		publisher:  bus.NewPublisher(nc, logger),
		chatEngine: chat.NewEngine(mock, "phi3", chat.WithLogger(logger)),
		ws:         paper.NewWorkingSet(),
	}
	return app, nc
}

func chatEvents(t *testing.T, nc *nats.Conn) <-chan bus.ChatEvent {
	t.Helper()

	events := make(chan bus.ChatEvent, 16)
	sub, err := nc.Subscribe(bus.ChatSubject, func(msg *nats.Msg) {
		var event bus.ChatEvent
		if err := json.Unmarshal(msg.Data, &event); err == nil {
			events <- event
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	return events
}

func submitPayload(t *testing.T, text string) *nats.Msg {
	t.Helper()
	data, err := json.Marshal(chatSubmitRequest{Text: text})
	require.NoError(t, err)
	return &nats.Msg{Subject: subjectChatSubmit, Data: data}
}

func TestHandleChatSubmitPublishesBothTurns(t *testing.T) {
	mock := &testutil.MockCompleter{
		Responses: []*llm.Response{{Content: "An assistant reply.", Model: "phi3"}},
	}
	app, nc := newTestApp(t, mock)
	events := chatEvents(t, nc)

	app.handleChatSubmit(submitPayload(t, "a question"))

	var got []bus.ChatEvent
	for len(got) < 2 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-time.After(5 * time.Second):
			t.Fatalf("expected 2 chat events, got %d", len(got))
		}
	}

	assert.Equal(t, chat.RoleUser, got[0].Message.Role)
	assert.Equal(t, "a question", got[0].Message.Content)
	assert.Equal(t, chat.RoleAssistant, got[1].Message.Role)
	assert.Equal(t, "An assistant reply.", got[1].Message.Content)
}

func TestHandleChatSubmitSurvivesClearDuringTurn(t *testing.T) {
	// Two completed turns grow the log before the turn under test, so
	// the clear shrinks it well below its pre-submission length.
	inFlight := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	blocking := false
	var mu sync.Mutex
	mock := &testutil.MockCompleter{
		Delay: func(llm.Request) {
			mu.Lock()
			shouldBlock := blocking
			mu.Unlock()
			if shouldBlock {
				once.Do(func() {
					close(inFlight)
					<-release
				})
			}
		},
	}
	app, nc := newTestApp(t, mock)
	events := chatEvents(t, nc)

	for _, q := range []string{"first turn", "second turn"} {
		_, err := app.chatEngine.Submit(context.Background(), q)
		require.NoError(t, err)
	}
	require.Len(t, app.chatEngine.History(), 5)

	mu.Lock()
	blocking = true
	mu.Unlock()

	app.handleChatSubmit(submitPayload(t, "turn under test"))
	<-inFlight

	// Clearing while the turn is in flight is a valid command sequence;
	// it must not kill the process when the turn resolves.
	app.handleChatClear(&nats.Msg{Subject: subjectChatClear})
	close(release)

	// The discarded turn publishes nothing; the app stays alive and
	// serves the next submission normally.
	select {
	case e := <-events:
		t.Fatalf("unexpected chat event for discarded turn: %+v", e)
	case <-time.After(500 * time.Millisecond):
	}

	require.Eventually(t, func() bool {
		return app.chatEngine.State() == chat.StateIdle
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	blocking = false
	mu.Unlock()

	app.handleChatSubmit(submitPayload(t, "after the clear"))

	var got []bus.ChatEvent
	for len(got) < 2 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-time.After(5 * time.Second):
			t.Fatalf("expected 2 chat events after clear, got %d", len(got))
		}
	}
	assert.Equal(t, "after the clear", got[0].Message.Content)
	assert.Equal(t, chat.RoleAssistant, got[1].Message.Role)
}
