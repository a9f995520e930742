// Package metrics provides Prometheus observability for the clinic server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinic"

// Collector owns a private registry and every series the server exports.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	ticks         *prometheus.CounterVec
	tickLatency   prometheus.Histogram
	patients      *prometheus.CounterVec
	active        prometheus.Gauge
	coins         prometheus.Gauge
	level         prometheus.Gauge
	phase         *prometheus.GaugeVec
	commands      *prometheus.CounterVec
	eventsWritten prometheus.Counter
	writeErrors   prometheus.Counter
	eventsDropped prometheus.Counter
	writeLatency  prometheus.Histogram
	wsConns       prometheus.Gauge
	wsMessages    *prometheus.CounterVec
	wsErrors      prometheus.Counter
}

// New registers all series on a fresh registry, plus the Go and process
// collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total",
			Help: "Scheduler ticks applied, by kind.",
		}, []string{"kind"}),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "advance_duration_seconds",
			Help:    "Time spent applying one scheduler advance.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		patients: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "patients_total",
			Help: "Patients by lifecycle outcome.",
		}, []string{"outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_patients",
			Help: "Patients not yet completed or failed.",
		}),
		coins: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "coins",
			Help: "Current coin balance.",
		}),
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "level",
			Help: "Current clinic level.",
		}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "phase",
			Help: "1 for the current session phase.",
		}, []string{"phase"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_total",
			Help: "Player commands by type and whether they applied.",
		}, []string{"type", "applied"}),
		eventsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ledger_events_written_total",
			Help: "Journal events written to the run ledger.",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ledger_write_errors_total",
			Help: "Failed run ledger writes.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ledger_events_dropped_total",
			Help: "Journal events not persisted because the ledger queue was full.",
		}),
		writeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "ledger_write_duration_seconds",
			Help:    "Run ledger write latency.",
			Buckets: prometheus.DefBuckets,
		}),
		wsConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ws_connections",
			Help: "Open websocket connections.",
		}),
		wsMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ws_messages_total",
			Help: "Websocket messages by direction.",
		}, []string{"direction"}),
		wsErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ws_errors_total",
			Help: "Websocket read and write errors.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.ticks, c.tickLatency, c.patients, c.active, c.coins, c.level, c.phase,
		c.commands, c.eventsWritten, c.writeErrors, c.eventsDropped, c.writeLatency,
		c.wsConns, c.wsMessages, c.wsErrors,
	)
	return c
}

// Registry exposes the registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordTick counts one applied tick of kind ("decay", "spawn").
func (c *Collector) RecordTick(kind string) {
	if c == nil {
		return
	}
	c.ticks.WithLabelValues(kind).Inc()
}

// RecordAdvance observes how long one scheduler advance took.
func (c *Collector) RecordAdvance(latency time.Duration) {
	if c == nil {
		return
	}
	c.tickLatency.Observe(latency.Seconds())
}

// RecordPatient counts a lifecycle outcome ("spawned", "served", "failed").
func (c *Collector) RecordPatient(outcome string) {
	if c == nil {
		return
	}
	c.patients.WithLabelValues(outcome).Inc()
}

// SetSession publishes the headline gauges of the live session.
func (c *Collector) SetSession(phase string, active, coins, level int) {
	if c == nil {
		return
	}
	c.phase.Reset()
	c.phase.WithLabelValues(phase).Set(1)
	c.active.Set(float64(active))
	c.coins.Set(float64(coins))
	c.level.Set(float64(level))
}

// RecordCommand counts a player command.
func (c *Collector) RecordCommand(cmdType string, applied bool) {
	if c == nil {
		return
	}
	label := "false"
	if applied {
		label = "true"
	}
	c.commands.WithLabelValues(cmdType, label).Inc()
}

// RecordEventWrite records a ledger write.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	if c == nil {
		return
	}
	c.writeLatency.Observe(latency.Seconds())
	if err != nil {
		c.writeErrors.Inc()
		return
	}
	c.eventsWritten.Inc()
}

// RecordEventDropped counts an event that never reached the ledger.
func (c *Collector) RecordEventDropped() {
	if c == nil {
		return
	}
	c.eventsDropped.Inc()
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int) {
	if c == nil {
		return
	}
	c.wsConns.Add(float64(delta))
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if c == nil {
		return
	}
	if incoming {
		c.wsMessages.WithLabelValues("in").Inc()
	} else {
		c.wsMessages.WithLabelValues("out").Inc()
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	if c == nil {
		return
	}
	c.wsErrors.Inc()
}

// Handler returns the /metrics endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
