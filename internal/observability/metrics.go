package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command outcomes used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeRemote    = "remote"
	OutcomeTransport = "transport"
	OutcomeTimeout   = "timeout"
	OutcomeClosed    = "closed"
)

var (
	registerOnce sync.Once

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arictl",
			Subsystem: "engine",
			Name:      "commands_total",
			Help:      "Commands resolved, by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arictl",
			Subsystem: "engine",
			Name:      "command_duration_seconds",
			Help:      "Time from dispatch to resolution in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "outcome"},
	)
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arictl",
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Events received, by type and whether a handler ran.",
		},
		[]string{"type", "routed"},
	)
	unmatchedResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "arictl",
			Subsystem: "engine",
			Name:      "unmatched_responses_total",
			Help:      "Responses with no pending command.",
		},
	)
	pendingCommands = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arictl",
			Subsystem: "engine",
			Name:      "pending_commands",
			Help:      "Commands dispatched and not yet resolved.",
		},
	)
	feedConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arictl",
			Subsystem: "feed",
			Name:      "connected",
			Help:      "1 while the event feed websocket is connected.",
		},
	)
	feedReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "arictl",
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Event feed reconnect attempts.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			commandsTotal,
			commandDuration,
			eventsTotal,
			unmatchedResponses,
			pendingCommands,
			feedConnected,
			feedReconnects,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordCommand(method, outcome string, duration time.Duration) {
	RegisterMetrics()
	commandsTotal.WithLabelValues(method, outcome).Inc()
	commandDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
}

func RecordEvent(eventType string, routed bool) {
	RegisterMetrics()
	eventsTotal.WithLabelValues(eventType, strconv.FormatBool(routed)).Inc()
}

func RecordUnmatchedResponse() {
	RegisterMetrics()
	unmatchedResponses.Inc()
}

func SetPendingCommands(n int) {
	RegisterMetrics()
	pendingCommands.Set(float64(n))
}

func SetFeedConnected(connected bool) {
	RegisterMetrics()
	if connected {
		feedConnected.Set(1)
		return
	}
	feedConnected.Set(0)
}

func RecordFeedReconnect() {
	RegisterMetrics()
	feedReconnects.Inc()
}
