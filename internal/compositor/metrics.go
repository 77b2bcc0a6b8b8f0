package compositor

import "github.com/prometheus/client_golang/prometheus"

var (
	initAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neowall_backend_init_attempts_total",
			Help: "Backend initialization attempts by outcome.",
		},
		[]string{"backend", "result"},
	)

	activeBackend = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "neowall_backend_active",
			Help: "Set to 1 for the currently active backend.",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(initAttempts)
	prometheus.MustRegister(activeBackend)
}
