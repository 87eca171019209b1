// Package formatter turns raw section bullets into formatted preview
// prose. It owns the debounce policy across all sections, issues one
// completion call per non-empty section, and reconciles out-of-order
// cycle completions so the published preview is always consistent.
package formatter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/paperdraft/llm"
	"github.com/c360studio/paperdraft/paper"
)

// DefaultDebounce is the quiet period after the last edit before a
// formatting cycle starts.
const DefaultDebounce = 2 * time.Second

// State describes where the formatter is in its cycle lifecycle.
type State string

const (
	// StateIdle means no edits are waiting and nothing is in flight.
	StateIdle State = "idle"

	// StateDebouncing means edits arrived and the quiet window is open.
	StateDebouncing State = "debouncing"

	// StateInFlight means a cycle's completion calls are outstanding.
	StateInFlight State = "in_flight"
)

// Sink receives each settled, non-superseded cycle's full output.
// Implementations must not call back into the Formatter.
type Sink interface {
	PublishPreview(seq uint64, sections []paper.FormattedSection)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(seq uint64, sections []paper.FormattedSection)

// PublishPreview implements Sink.
func (f SinkFunc) PublishPreview(seq uint64, sections []paper.FormattedSection) {
	f(seq, sections)
}

// ContextSource supplies background text gathered for a section's
// citations, included in the formatting prompt when available.
type ContextSource interface {
	Context(ctx context.Context, citations []string) string
}

// Formatter schedules and runs formatting cycles.
//
// Per-cycle state machine: Idle → Debouncing → InFlight → Settled.
// Edits while Idle/Debouncing restart the debounce window. Edits while
// InFlight do not cancel the running cycle; they mark it stale so a
// fresh cycle starts the moment it settles. In-flight calls are never
// cancelled; a superseded cycle's results are discarded at publication
// time via the sequence check, not at request time.
type Formatter struct {
	client   llm.Completer
	model    string
	debounce time.Duration
	clock    Clock
	sink     Sink
	contexts ContextSource
	logger   *slog.Logger
	metrics  *Metrics

	mu           sync.Mutex
	state        State
	timer        Timer
	latest       []paper.Section
	pending      bool
	closed       bool
	nextSeq      uint64
	publishedSeq uint64
	published    []paper.FormattedSection
	settled      chan uint64 // signals each settled cycle's seq; test hook
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(f *Formatter) {
		f.debounce = d
	}
}

// WithClock sets the timer source.
func WithClock(c Clock) Option {
	return func(f *Formatter) {
		f.clock = c
	}
}

// WithSink sets the publication sink.
func WithSink(s Sink) Option {
	return func(f *Formatter) {
		f.sink = s
	}
}

// WithContextSource sets the citation context source.
func WithContextSource(cs ContextSource) Option {
	return func(f *Formatter) {
		f.contexts = cs
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Formatter) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(f *Formatter) {
		f.metrics = m
	}
}

// New creates a Formatter that formats with the given completer and model.
func New(client llm.Completer, model string, opts ...Option) *Formatter {
	f := &Formatter{
		client:   client,
		model:    model,
		debounce: DefaultDebounce,
		clock:    NewRealClock(),
		sink:     SinkFunc(func(uint64, []paper.FormattedSection) {}),
		logger:   slog.Default(),
		state:    StateIdle,
		settled:  make(chan uint64, 64),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NotifyEdit records the current section list after an edit and
// (re)starts the debounce window. While a cycle is in flight the edit
// only marks the cycle stale; a new cycle starts once it settles.
func (f *Formatter) NotifyEdit(sections []paper.Section) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	f.latest = paper.CloneSections(sections)

	switch f.state {
	case StateIdle:
		f.state = StateDebouncing
		f.timer = f.clock.AfterFunc(f.debounce, f.debounceFired)
	case StateDebouncing:
		if f.timer != nil {
			f.timer.Stop()
		}
		f.timer = f.clock.AfterFunc(f.debounce, f.debounceFired)
	case StateInFlight:
		f.pending = true
	}
}

// State returns the formatter's current lifecycle state.
func (f *Formatter) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Preview returns the highest-sequence published output and its cycle
// sequence number. The slice is a copy.
func (f *Formatter) Preview() (uint64, []paper.FormattedSection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]paper.FormattedSection, len(f.published))
	copy(out, f.published)
	return f.publishedSeq, out
}

// Settled exposes a channel receiving each cycle's sequence number as
// it settles, published or not. Used by callers that need to wait for
// quiescence (tests, graceful shutdown).
func (f *Formatter) Settled() <-chan uint64 {
	return f.settled
}

// Close stops the debounce timer and prevents new cycles. In-flight
// cycles still settle and publish.
func (f *Formatter) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	if f.state == StateDebouncing {
		f.state = StateIdle
	}
}

// debounceFired advances Debouncing → InFlight when the quiet window
// elapses without further edits.
func (f *Formatter) debounceFired() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateDebouncing || f.closed {
		return
	}
	f.startCycleLocked()
}

// startCycleLocked snapshots the section list, assigns the next cycle
// sequence, and launches the cycle. Caller holds f.mu.
func (f *Formatter) startCycleLocked() {
	f.state = StateInFlight
	f.nextSeq++
	seq := f.nextSeq
	snapshot := paper.CloneSections(f.latest)

	if f.metrics != nil {
		f.metrics.CyclesStarted.Inc()
	}
	f.logger.Debug("Formatting cycle started", "seq", seq, "sections", len(snapshot))

	go f.runCycle(seq, snapshot)
}

// runCycle formats every section of the snapshot concurrently, waits
// for all calls to resolve, then settles.
func (f *Formatter) runCycle(seq uint64, snapshot []paper.Section) {
	start := f.clock.Now()
	formatted := make([]paper.FormattedSection, len(snapshot))

	var wg sync.WaitGroup
	for i, sec := range snapshot {
		formatted[i] = paper.FormattedSection{SectionID: sec.ID, Title: sec.Title}

		// Empty sections publish an empty preview entry with no call.
		if sec.Empty() {
			continue
		}

		wg.Add(1)
		go func(i int, sec paper.Section) {
			defer wg.Done()
			formatted[i] = f.formatSection(sec)
		}(i, sec)
	}
	wg.Wait()

	f.settle(seq, formatted, f.clock.Now().Sub(start))
}

// formatSection issues one completion call for a section. Failures
// degrade to the raw content so the preview never goes blank.
func (f *Formatter) formatSection(sec paper.Section) paper.FormattedSection {
	ctx := context.Background()

	var citationContext string
	if f.contexts != nil && len(sec.Citations) > 0 {
		citationContext = f.contexts.Context(ctx, sec.Citations)
	}

	resp, err := f.client.Complete(ctx, llm.Request{
		Mode:     llm.ModeCompletion,
		Model:    f.model,
		Prompt:   SectionPrompt(sec, citationContext),
		Fallback: sec.Content,
	})
	if err != nil {
		fallback, ok := llm.FallbackText(err)
		if !ok {
			fallback = sec.Content
		}
		f.logger.Warn("Section formatting failed, using raw content",
			"section_id", sec.ID,
			"error", err)
		if f.metrics != nil {
			f.metrics.SectionFallbacks.Inc()
		}
		return paper.FormattedSection{
			SectionID: sec.ID,
			Title:     sec.Title,
			Content:   fallback,
			Fallback:  true,
		}
	}

	if f.metrics != nil {
		f.metrics.SectionsFormatted.Inc()
	}
	return paper.FormattedSection{
		SectionID: sec.ID,
		Title:     sec.Title,
		Content:   resp.Content,
	}
}

// settle publishes the cycle's output if its sequence is still the
// highest seen, then either returns to Idle or immediately starts the
// cycle scheduled by edits that arrived while this one was in flight.
func (f *Formatter) settle(seq uint64, formatted []paper.FormattedSection, elapsed time.Duration) {
	f.mu.Lock()

	if f.metrics != nil {
		f.metrics.CycleDuration.Observe(elapsed.Seconds())
		f.metrics.CyclesSettled.Inc()
	}

	if seq > f.publishedSeq {
		f.publishedSeq = seq
		f.published = formatted
		f.logger.Debug("Formatting cycle published", "seq", seq)
		// Publishing under the lock keeps sink delivery in sequence order.
		f.sink.PublishPreview(seq, formatted)
	} else {
		if f.metrics != nil {
			f.metrics.CyclesSuperseded.Inc()
		}
		f.logger.Debug("Formatting cycle superseded, output discarded", "seq", seq, "published", f.publishedSeq)
	}

	if f.pending && !f.closed {
		f.pending = false
		f.startCycleLocked()
	} else {
		f.state = StateIdle
	}
	f.mu.Unlock()

	select {
	case f.settled <- seq:
	default:
	}
}
