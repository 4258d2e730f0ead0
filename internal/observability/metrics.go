package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bot's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ticketsCreated     *prometheus.CounterVec
	ticketsClosed      *prometheus.CounterVec
	inactivityWarnings prometheus.Counter
	sweepRuns          *prometheus.CounterVec
	sweepErrors        *prometheus.CounterVec
	sweepDuration      *prometheus.HistogramVec
	commands           *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpLatency        *prometheus.HistogramVec
	httpErrors         *prometheus.CounterVec
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticketsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickets_created_total",
			Help: "Tickets opened, by subtype.",
		}, []string{"kind"}),
		ticketsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickets_closed_total",
			Help: "Tickets closed, by close mode.",
		}, []string{"mode"}),
		inactivityWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticket_inactivity_warnings_total",
			Help: "Inactivity warnings posted into ticket channels.",
		}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Completed sweep passes, by sweep.",
		}, []string{"sweep"}),
		sweepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_item_errors_total",
			Help: "Per-item failures inside sweep passes, by sweep.",
		}, []string{"sweep"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of sweep passes.",
			Buckets: prometheus.DefBuckets,
		}, []string{"sweep"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_commands_total",
			Help: "Chat commands handled, by command and result code.",
		}, []string{"command", "code"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Ops API requests.",
		}, []string{"method", "path", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Ops API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Ops API errors, by domain error code.",
		}, []string{"method", "path", "code"}),
	}

	m.registry.MustRegister(
		m.ticketsCreated, m.ticketsClosed, m.inactivityWarnings,
		m.sweepRuns, m.sweepErrors, m.sweepDuration, m.commands,
		m.httpRequests, m.httpLatency, m.httpErrors,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) TicketCreated(kind string) {
	if m == nil {
		return
	}
	m.ticketsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) TicketClosed(mode string) {
	if m == nil {
		return
	}
	m.ticketsClosed.WithLabelValues(mode).Inc()
}

func (m *Metrics) InactivityWarning() {
	if m == nil {
		return
	}
	m.inactivityWarnings.Inc()
}

// RecordSweep observes one finished sweep pass.
func (m *Metrics) RecordSweep(sweep string, duration time.Duration, itemErrors int) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(sweep).Inc()
	m.sweepDuration.WithLabelValues(sweep).Observe(duration.Seconds())
	if itemErrors > 0 {
		m.sweepErrors.WithLabelValues(sweep).Add(float64(itemErrors))
	}
}

// RecordCommand counts one handled chat command.
func (m *Metrics) RecordCommand(command, code string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, code).Inc()
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(method, path, code).Inc()
}
