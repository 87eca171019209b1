package formatter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects formatting cycle metrics.
type Metrics struct {
	CyclesStarted     prometheus.Counter
	CyclesSettled     prometheus.Counter
	CyclesSuperseded  prometheus.Counter
	SectionsFormatted prometheus.Counter
	SectionFallbacks  prometheus.Counter
	CycleDuration     prometheus.Histogram
}

// NewMetrics registers formatting metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CyclesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "paperdraft_format_cycles_started_total",
			Help: "Formatting cycles issued after a debounce window closed.",
		}),
		CyclesSettled: factory.NewCounter(prometheus.CounterOpts{
			Name: "paperdraft_format_cycles_settled_total",
			Help: "Formatting cycles whose every completion call resolved.",
		}),
		CyclesSuperseded: factory.NewCounter(prometheus.CounterOpts{
			Name: "paperdraft_format_cycles_superseded_total",
			Help: "Settled cycles discarded because a newer cycle already published.",
		}),
		SectionsFormatted: factory.NewCounter(prometheus.CounterOpts{
			Name: "paperdraft_format_sections_total",
			Help: "Sections formatted successfully by the backend.",
		}),
		SectionFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "paperdraft_format_section_fallbacks_total",
			Help: "Sections published with raw content after a failed completion.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "paperdraft_format_cycle_duration_seconds",
			Help:    "Wall time from cycle start to settle.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}
}
