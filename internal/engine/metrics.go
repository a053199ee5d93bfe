package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	framesEntered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_frames_entered_total",
			Help: "Total number of frame-entry events processed.",
		},
	)

	scriptOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_script_runs_total",
			Help: "Total number of frame script runs by outcome.",
		},
		[]string{"outcome"},
	)

	scriptDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cadence_script_duration_seconds",
			Help:    "Frame script run duration in seconds.",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		},
	)

	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cadence_tick_duration_seconds",
			Help:    "Engine Advance duration in seconds.",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .016, .033, .1},
		},
	)

	snapshotsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_snapshots_published_total",
			Help: "Total number of frame snapshots published.",
		},
	)
)

func init() {
	prometheus.MustRegister(framesEntered)
	prometheus.MustRegister(scriptOutcomes)
	prometheus.MustRegister(scriptDuration)
	prometheus.MustRegister(tickDuration)
	prometheus.MustRegister(snapshotsPublished)
}
