package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/paperdraft/bus"
	"github.com/c360studio/paperdraft/chat"
	"github.com/c360studio/paperdraft/citations"
	"github.com/c360studio/paperdraft/config"
	"github.com/c360studio/paperdraft/draft"
	"github.com/c360studio/paperdraft/formatter"
	"github.com/c360studio/paperdraft/identity"
	"github.com/c360studio/paperdraft/llm"
	"github.com/c360studio/paperdraft/paper"
)

// Command subjects the presentation layer publishes on.
const (
	subjectEditSections = "paperdraft.edit.sections"
	subjectChatSubmit   = "paperdraft.chat.submit"
	subjectChatClear    = "paperdraft.chat.clear"
	subjectDraftSave    = "paperdraft.draft.save"
	subjectDraftUpdate  = "paperdraft.draft.update"
	subjectDraftLoad    = "paperdraft.draft.load"
	subjectDraftList    = "paperdraft.draft.list"
)

// App wires together all components behind the NATS boundary.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	embeddedServer *server.Server
	natsConn       *nats.Conn
	subs           []*nats.Subscription

	// Core
	publisher  *bus.Publisher
	ids        identity.Provider
	ws         *paper.WorkingSet
	formatter  *formatter.Formatter
	chatEngine *chat.Engine
	reconciler *draft.Reconciler

	metricsServer *http.Server
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}
}

// Start initializes and starts all components.
func (a *App) Start(ctx context.Context, metricsAddr string) error {
	if err := a.startNATS(); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	a.publisher = bus.NewPublisher(a.natsConn, a.logger)

	ids, err := identity.NewNATSProvider(a.natsConn, a.logger)
	if err != nil {
		return fmt.Errorf("start identity watcher: %w", err)
	}
	a.ids = ids

	client, err := llm.NewClient(a.cfg.Model.Provider, a.cfg.Model.Endpoint,
		llm.WithTimeout(a.cfg.Model.Timeout),
		llm.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("create completion client: %w", err)
	}

	formatterOpts := []formatter.Option{
		formatter.WithDebounce(a.cfg.Format.Debounce),
		formatter.WithSink(a.publisher),
		formatter.WithLogger(a.logger),
		formatter.WithMetrics(formatter.NewMetrics(prometheus.DefaultRegisterer)),
	}
	if a.cfg.Format.CitationContext {
		formatterOpts = append(formatterOpts, formatter.WithContextSource(
			citations.NewFetcher(
				citations.WithSnippetRunes(a.cfg.Format.SnippetRunes),
				citations.WithLogger(a.logger))))
	}
	a.formatter = formatter.New(client, a.cfg.Model.Format, formatterOpts...)

	a.chatEngine = chat.NewEngine(client, a.cfg.Model.Chat,
		chat.WithTokenBudget(a.cfg.Chat.TokenBudget),
		chat.WithLogger(a.logger))

	a.ws = paper.NewWorkingSet()
	if a.cfg.Store.URL != "" {
		store := draft.NewPostgRESTStore(a.cfg.Store.URL, a.cfg.Store.APIKey,
			draft.WithLogger(a.logger))
		a.reconciler = draft.NewReconciler(store, a.ids, a.ws,
			draft.WithReporter(a.publisher),
			draft.WithReconcilerLogger(a.logger))
	} else {
		a.logger.Warn("No store configured, drafts will not persist")
	}

	if err := a.subscribe(); err != nil {
		return fmt.Errorf("subscribe commands: %w", err)
	}

	if metricsAddr != "" {
		a.startMetrics(metricsAddr)
	}

	a.logger.Info("Components initialized")
	return nil
}

func (a *App) startNATS() error {
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
		conn, err := nats.Connect(a.cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
		return nil
	}

	a.logger.Info("Starting embedded NATS server")
	opts := &server.Options{
		Port:   -1, // Random available port
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return fmt.Errorf("embedded NATS server failed to start")
	}
	a.embeddedServer = ns

	conn, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return fmt.Errorf("connect to embedded NATS: %w", err)
	}
	a.natsConn = conn
	a.logger.Info("Embedded NATS ready", "url", ns.ClientURL())
	return nil
}

// subscribe installs the command handlers the presentation layer talks to.
func (a *App) subscribe() error {
	handlers := map[string]nats.MsgHandler{
		subjectEditSections: a.handleEditSections,
		subjectChatSubmit:   a.handleChatSubmit,
		subjectChatClear:    a.handleChatClear,
		subjectDraftSave:    a.handleDraftSave,
		subjectDraftUpdate:  a.handleDraftUpdate,
		subjectDraftLoad:    a.handleDraftLoad,
		subjectDraftList:    a.handleDraftList,
	}

	for subject, handler := range handlers {
		sub, err := a.natsConn.Subscribe(subject, handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		a.subs = append(a.subs, sub)
	}
	return nil
}

func (a *App) startMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsServer = &http.Server{Addr: addr, Handler: mux}

	go func() {
		a.logger.Info("Metrics listening", "addr", addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("Metrics server stopped", "error", err)
		}
	}()
}

// handleEditSections installs a new section list and kicks the
// formatter's debounce window.
func (a *App) handleEditSections(msg *nats.Msg) {
	var sections []paper.Section
	if err := json.Unmarshal(msg.Data, &sections); err != nil {
		a.publisher.ReportError("edit", fmt.Errorf("malformed sections payload: %w", err), draft.RemediationGeneric)
		return
	}

	a.ws.Replace(sections)
	a.formatter.NotifyEdit(a.ws.Sections())
}

type chatSubmitRequest struct {
	Text string `json:"text"`
}

// handleChatSubmit runs one assistant turn. The user message is
// published as soon as it lands in the log, the assistant reply when
// the turn completes.
func (a *App) handleChatSubmit(msg *nats.Msg) {
	var req chatSubmitRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		a.publisher.ReportError("chat", fmt.Errorf("malformed chat payload: %w", err), draft.RemediationGeneric)
		return
	}

	go func() {
		reply, err := a.chatEngine.Submit(context.Background(), req.Text)
		if err != nil {
			// Empty input, concurrent turns, and turns discarded by a
			// mid-flight clear are rejected quietly; the engine
			// invariant is the source of truth.
			a.logger.Debug("Chat submission rejected", "error", err)
			return
		}

		// Locate the reply in the log to publish its user turn; a clear
		// racing the submission may have removed either, so the log is
		// never re-sliced by a remembered index.
		history := a.chatEngine.History()
		for i := range history {
			if history[i].ID != reply.ID {
				continue
			}
			if i > 0 && history[i-1].Role == chat.RoleUser {
				a.publisher.PublishChatTurn(history[i-1])
			}
			break
		}
		a.publisher.PublishChatTurn(reply)
	}()
}

func (a *App) handleChatClear(_ *nats.Msg) {
	a.chatEngine.Clear()
	a.logger.Info("Chat history cleared")
}

type draftSaveRequest struct {
	Title string `json:"title"`
}

type draftUpdateRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type draftLoadRequest struct {
	ID string `json:"id"`
}

type draftOpReply struct {
	OK          bool   `json:"ok"`
	NoOp        bool   `json:"no_op,omitempty"`
	Error       string `json:"error,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

func (a *App) handleDraftSave(msg *nats.Msg) {
	if a.reconciler == nil {
		a.respond(msg, draftOpReply{Error: "no store configured"})
		return
	}
	var req draftSaveRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		a.respond(msg, draftOpReply{Error: err.Error()})
		return
	}

	if err := a.reconciler.Save(context.Background(), req.Title); err != nil {
		a.respond(msg, draftOpReply{Error: err.Error(), Remediation: draft.Remediation(err)})
		return
	}
	a.respond(msg, draftOpReply{OK: true})
}

func (a *App) handleDraftUpdate(msg *nats.Msg) {
	if a.reconciler == nil {
		a.respond(msg, draftOpReply{Error: "no store configured"})
		return
	}
	var req draftUpdateRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		a.respond(msg, draftOpReply{Error: err.Error()})
		return
	}

	err := a.reconciler.Update(context.Background(), req.ID, req.Title)
	switch {
	case errors.Is(err, draft.ErrNoRowsUpdated):
		// The no-op outcome is distinguishable from success and failure.
		a.respond(msg, draftOpReply{NoOp: true})
	case err != nil:
		a.respond(msg, draftOpReply{Error: err.Error(), Remediation: draft.Remediation(err)})
	default:
		a.respond(msg, draftOpReply{OK: true})
	}
}

type draftLoadReply struct {
	Sections    []paper.Section `json:"sections,omitempty"`
	Error       string          `json:"error,omitempty"`
	Remediation string          `json:"remediation,omitempty"`
}

func (a *App) handleDraftLoad(msg *nats.Msg) {
	if a.reconciler == nil {
		a.respond(msg, draftLoadReply{Error: "no store configured"})
		return
	}
	var req draftLoadRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		a.respond(msg, draftLoadReply{Error: err.Error()})
		return
	}

	sections, err := a.reconciler.Load(context.Background(), req.ID)
	if err != nil {
		a.respond(msg, draftLoadReply{Error: err.Error(), Remediation: draft.Remediation(err)})
		return
	}

	// The loaded content is the new working set; reformat it.
	a.formatter.NotifyEdit(sections)
	a.respond(msg, draftLoadReply{Sections: sections})
}

type draftListReply struct {
	Drafts      []paper.Draft `json:"drafts,omitempty"`
	Error       string        `json:"error,omitempty"`
	Remediation string        `json:"remediation,omitempty"`
}

func (a *App) handleDraftList(msg *nats.Msg) {
	if a.reconciler == nil {
		a.respond(msg, draftListReply{Error: "no store configured"})
		return
	}

	drafts, err := a.reconciler.List(context.Background())
	if err != nil {
		a.respond(msg, draftListReply{Error: err.Error(), Remediation: draft.Remediation(err)})
		return
	}
	a.respond(msg, draftListReply{Drafts: drafts})
}

func (a *App) respond(msg *nats.Msg, payload any) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("Marshal reply failed", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		a.logger.Warn("Respond failed", "error", err)
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown(timeout time.Duration) {
	a.logger.Info("Shutting down")

	a.formatter.Close()

	for _, sub := range a.subs {
		_ = sub.Unsubscribe()
	}

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		_ = a.metricsServer.Shutdown(ctx)
		cancel()
	}

	if a.natsConn != nil {
		_ = a.natsConn.Drain()
		a.natsConn.Close()
	}

	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}
}
