package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	loopIterations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neowall_loop_iterations_total",
		Help: "Event loop iterations.",
	})

	framesPresented = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neowall_frames_presented_total",
		Help: "Frames presented to the compositor.",
	})

	cycleAdvances = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "neowall_cycle_advances_total",
		Help: "Playlist advances across all outputs.",
	})

	presentDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "neowall_present_duration_seconds",
		Help:    "Time spent presenting a frame to the compositor.",
		Buckets: []float64{.0005, .001, .002, .005, .01, .017, .033, .1, .5},
	})

	reloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neowall_config_reloads_total",
			Help: "Configuration reload attempts by outcome.",
		},
		[]string{"result"},
	)

	outputsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "neowall_outputs",
		Help: "Outputs currently tracked by the directory.",
	})
)

func init() {
	prometheus.MustRegister(loopIterations)
	prometheus.MustRegister(framesPresented)
	prometheus.MustRegister(presentDuration)
	prometheus.MustRegister(cycleAdvances)
	prometheus.MustRegister(reloadsTotal)
	prometheus.MustRegister(outputsGauge)
}
