// Package metrics exposes Prometheus counters for the serial ingest path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics are the scoreboard-specific series.
type AppMetrics struct {
	SerialBytes      prometheus.Counter
	FramesTotal      *prometheus.CounterVec // labels: result=ok|malformed|unrecognized
	DecodeVariant    *prometheus.CounterVec // labels: variant
	SerialReadErrors prometheus.Counter
	ConnectsTotal    *prometheus.CounterVec // labels: result=ok|error
	ReaderActive     prometheus.Gauge
}

// NewAppMetrics registers and returns the scoreboard series.
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		SerialBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoreboard_serial_bytes_total",
			Help: "Bytes read from the scoreboard serial port.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoreboard_frames_total",
			Help: "Frames handed to the decoder, by result.",
		}, []string{"result"}),
		DecodeVariant: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoreboard_decode_variant_total",
			Help: "Successfully decoded frames by wire variant.",
		}, []string{"variant"}),
		SerialReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoreboard_serial_read_errors_total",
			Help: "Read errors on an open serial handle.",
		}),
		ConnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoreboard_connects_total",
			Help: "Serial connect attempts, by result.",
		}, []string{"result"}),
		ReaderActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scoreboard_reader_active",
			Help: "Reader loops currently running.",
		}),
	}
	reg.MustRegister(m.SerialBytes, m.FramesTotal, m.DecodeVariant, m.SerialReadErrors, m.ConnectsTotal, m.ReaderActive)
	return m
}

// Frame counts one decode attempt. result is ok, malformed or unrecognized.
func (m *AppMetrics) Frame(result string) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(result).Inc()
}

// Variant counts one decoded frame of the given wire variant.
func (m *AppMetrics) Variant(variant string) {
	if m == nil {
		return
	}
	m.DecodeVariant.WithLabelValues(variant).Inc()
}

// Bytes adds n received bytes.
func (m *AppMetrics) Bytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SerialBytes.Add(float64(n))
}

// ReadError counts one failed read.
func (m *AppMetrics) ReadError() {
	if m == nil {
		return
	}
	m.SerialReadErrors.Inc()
}

// Connect counts one connect attempt.
func (m *AppMetrics) Connect(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.ConnectsTotal.WithLabelValues("ok").Inc()
	} else {
		m.ConnectsTotal.WithLabelValues("error").Inc()
	}
}

// SetReaderActive counts a reader loop in or out. Loops overlap briefly when
// a replaced one is slow to exit, so the gauge is a count and not a flag.
func (m *AppMetrics) SetReaderActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.ReaderActive.Inc()
	} else {
		m.ReaderActive.Dec()
	}
}
