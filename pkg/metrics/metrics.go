// Package metrics exports relaygram connection state as Prometheus
// gauges/counters, grounded on the pack's runZeroInc-sockstats exporter
// (which does the equivalent job for raw TCP_INFO stats) and
// distribution-distribution's use of prometheus/client_golang alongside
// docker/go-metrics for registry-scoped counters.
//
// Wiring metrics is optional: NetworkProtocol works fine with a nil
// *Metrics (every method is a no-op on a nil receiver).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the gauges and counters for one NetworkProtocol instance.
type Metrics struct {
	CongestionWindow prometheus.Gauge
	Threshold        prometheus.Gauge
	RTTMillis        prometheus.Gauge
	RTTVarMillis     prometheus.Gauge
	Retransmits      prometheus.Counter
	AuthFailures     prometheus.Counter
	DropsDecompress  prometheus.Counter
	PendingReliable  prometheus.Gauge
}

// New registers a fresh set of relaygram metrics on reg and returns them.
// Pass a nil reg to use prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		CongestionWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaygram", Name: "congestion_window", Help: "Current congestion window size in frames.",
		}),
		Threshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaygram", Name: "congestion_threshold", Help: "Current slow-start/AIMD threshold.",
		}),
		RTTMillis: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaygram", Name: "rtt_milliseconds", Help: "Smoothed round-trip-time estimate.",
		}),
		RTTVarMillis: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaygram", Name: "rtt_var_milliseconds", Help: "RTT variance estimate.",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relaygram", Name: "retransmits_total", Help: "Frames retransmitted after RTO expiry.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relaygram", Name: "auth_failures_total", Help: "Frames dropped for failing AEAD authentication.",
		}),
		DropsDecompress: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relaygram", Name: "decompress_drops_total", Help: "Frames dropped for decompression failure.",
		}),
		PendingReliable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaygram", Name: "pending_reliable", Help: "Reliable frames currently unacked.",
		}),
	}

	reg.MustRegister(m.CongestionWindow, m.Threshold, m.RTTMillis, m.RTTVarMillis,
		m.Retransmits, m.AuthFailures, m.DropsDecompress, m.PendingReliable)

	return m
}

// SetCongestionWindow records the current window size.
func (m *Metrics) SetCongestionWindow(v float64) {
	if m == nil {
		return
	}
	m.CongestionWindow.Set(v)
}

// SetThreshold records the current slow-start/AIMD threshold.
func (m *Metrics) SetThreshold(v float64) {
	if m == nil {
		return
	}
	m.Threshold.Set(v)
}

// SetRTT records the smoothed RTT estimate, in milliseconds.
func (m *Metrics) SetRTT(v float64) {
	if m == nil {
		return
	}
	m.RTTMillis.Set(v)
}

// SetRTTVar records the RTT variance estimate, in milliseconds.
func (m *Metrics) SetRTTVar(v float64) {
	if m == nil {
		return
	}
	m.RTTVarMillis.Set(v)
}

// SetPendingReliable records how many reliable frames are unacked.
func (m *Metrics) SetPendingReliable(v float64) {
	if m == nil {
		return
	}
	m.PendingReliable.Set(v)
}

// IncRetransmits increments the retransmit counter.
func (m *Metrics) IncRetransmits() {
	if m == nil {
		return
	}
	m.Retransmits.Inc()
}

// IncAuthFailures increments the AEAD-failure drop counter.
func (m *Metrics) IncAuthFailures() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}

// IncDropsDecompress increments the decompression-failure drop counter.
func (m *Metrics) IncDropsDecompress() {
	if m == nil {
		return
	}
	m.DropsDecompress.Inc()
}
