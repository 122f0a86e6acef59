package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanDuration tracks the latency of scan dispatches by terminal state.
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "scanhub_scan_duration_seconds",
			Help: "Duration of scan dispatches in seconds",
			Buckets: []float64{
				0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0,
			},
		},
		[]string{"state"}, // rate_limited, invalid, success, failed
	)

	// ScansTotal counts scan attempts by terminal state and code type.
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanhub_scans_total",
			Help: "Scan attempts by terminal state and code type",
		},
		[]string{"state", "code_type"},
	)

	// RotationsTotal counts code rotations by result.
	RotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanhub_rotations_total",
			Help: "Code rotations by result",
		},
		[]string{"result"},
	)
)

// RecordScan records one finished scan dispatch.
func RecordScan(state, codeType string, seconds float64) {
	ScanDuration.WithLabelValues(state).Observe(seconds)
	ScansTotal.WithLabelValues(state, codeType).Inc()
}

// RecordRotation records one rotation attempt outcome.
func RecordRotation(result string) {
	RotationsTotal.WithLabelValues(result).Inc()
}
