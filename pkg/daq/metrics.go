package daq

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seagrayinc/u3stream/pkg/u3"
)

// NewRegistry creates a Prometheus registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler exposing reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics instruments a Session.
type Metrics struct {
	Commands     *prometheus.CounterVec // labels: command, result
	Polls        *prometheus.CounterVec // labels: result
	Packets      prometheus.Counter
	Scans        prometheus.Counter
	Overflows    prometheus.Counter
	DroppedScans prometheus.Counter
	CounterGaps  prometheus.Counter
	Backlog      prometheus.Gauge
	State        prometheus.Gauge
	PollDuration prometheus.Histogram
	ChannelVolts *prometheus.GaugeVec // labels: channel
}

// NewMetrics registers and returns the session metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "u3_commands_total",
			Help: "Control commands sent, by command and result.",
		}, []string{"command", "result"}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "u3_stream_polls_total",
			Help: "Stream poll cycles, by result.",
		}, []string{"result"}),
		Packets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "u3_stream_packets_total",
			Help: "StreamData packets accepted.",
		}),
		Scans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "u3_stream_scans_total",
			Help: "Completed scans produced.",
		}),
		Overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "u3_stream_overflow_packets_total",
			Help: "Packets reporting a device buffer overflow.",
		}),
		DroppedScans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "u3_stream_dropped_scans_total",
			Help: "Scans reported lost by auto-recovery.",
		}),
		CounterGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "u3_stream_packet_counter_gaps_total",
			Help: "Packets whose counter did not follow the previous packet.",
		}),
		Backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "u3_stream_backlog",
			Help: "Device buffer backlog reported by the last packet.",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "u3_session_state",
			Help: "Session state (0 closed, 1 configured, 2 streaming, 3 stopped).",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "u3_stream_poll_duration_seconds",
			Help:    "Duration of one poll cycle including the transport read.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		ChannelVolts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "u3_channel_volts",
			Help: "Latest calibrated value per scan list position.",
		}, []string{"channel"}),
	}
	reg.MustRegister(m.Commands, m.Polls, m.Packets, m.Scans, m.Overflows, m.DroppedScans,
		m.CounterGaps, m.Backlog, m.State, m.PollDuration, m.ChannelVolts)
	return m
}

// errorResult maps an error to a low cardinality label value.
func errorResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, u3.ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, u3.ErrUnexpectedResponse):
		return "shape"
	case errors.Is(err, u3.ErrDevice):
		return "device"
	case errors.Is(err, u3.ErrConfigNotApplied):
		return "not_applied"
	case errors.Is(err, u3.ErrShortRead), errors.Is(err, u3.ErrShortWrite):
		return "transport"
	default:
		return "error"
	}
}
