package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AcquireCounter tracks the number of acquisition attempts.
	AcquireCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "latch_acquire_attempts_total",
		Help: "Total number of lock acquisition attempts",
	})
	// AcquiredCounter tracks the number of successful acquisitions.
	AcquiredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "latch_acquired_total",
		Help: "Total number of successful lock acquisitions",
	})
	// ContendedCounter tracks attempts that lost the claim to another holder.
	ContendedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "latch_contended_total",
		Help: "Total number of acquisition attempts lost to contention",
	})
	// ArmExhaustedCounter tracks claims given up because the lease could
	// not be armed within the retry budget.
	ArmExhaustedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "latch_arm_exhausted_total",
		Help: "Total number of claims abandoned after lease arming failed",
	})
	// ReleaseCounter tracks held-lock releases.
	ReleaseCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "latch_releases_total",
		Help: "Total number of lock releases",
	})
	// HeldGauge reports the number of locks currently held by this process.
	HeldGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "latch_held_locks",
		Help: "Current number of locks held by this process",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterLockMetrics registers latch core metrics on the provided registry.
func RegisterLockMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AcquireCounter, AcquiredCounter, ContendedCounter, ArmExhaustedCounter, ReleaseCounter, HeldGauge)
}
