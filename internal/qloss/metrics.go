package qloss

import "github.com/prometheus/client_golang/prometheus"

// metrics are the Prometheus collectors a Conn reports into. NewConn builds
// a fresh set for every Conn; the collectors carry no per-connection
// labels, so registering a second Conn's set against the same registry
// panics on the duplicate names (MustRegister).
type metrics struct {
	congestionWindow prometheus.Gauge
	ssthresh         prometheus.Gauge
	bytesInFlight    prometheus.Gauge
	smoothedRTT      prometheus.Gauge
	rttVariation     prometheus.Gauge
	minRTT           prometheus.Gauge

	packetsLost          prometheus.Counter
	persistentCongestion prometheus.Counter
	ptoFired             prometheus.Counter
	acksProcessed        prometheus.Counter
}

// newMetrics constructs and registers a metrics set against reg, prefixing
// every collector with qloss_. Passing a nil registry is valid and yields
// working, unregistered collectors (used by tests).
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		congestionWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qloss_congestion_window_bytes",
			Help: "Current NewReno congestion window in bytes.",
		}),
		ssthresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qloss_ssthresh_bytes",
			Help: "Current slow-start threshold in bytes.",
		}),
		bytesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qloss_bytes_in_flight",
			Help: "Bytes sent and not yet acked or declared lost.",
		}),
		smoothedRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qloss_smoothed_rtt_seconds",
			Help: "Smoothed round-trip time estimate.",
		}),
		rttVariation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qloss_rtt_variation_seconds",
			Help: "RTT variation estimate (rttvar).",
		}),
		minRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qloss_min_rtt_seconds",
			Help: "Minimum observed round-trip time.",
		}),
		packetsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qloss_packets_lost_total",
			Help: "Packets declared lost by packet or time threshold.",
		}),
		persistentCongestion: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qloss_persistent_congestion_total",
			Help: "Times persistent congestion collapsed the window.",
		}),
		ptoFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qloss_pto_fired_total",
			Help: "Probe-timeout timer firings.",
		}),
		acksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qloss_acks_processed_total",
			Help: "ACK frames successfully processed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.congestionWindow, m.ssthresh, m.bytesInFlight,
			m.smoothedRTT, m.rttVariation, m.minRTT,
			m.packetsLost, m.persistentCongestion, m.ptoFired, m.acksProcessed,
		)
	}
	return m
}
