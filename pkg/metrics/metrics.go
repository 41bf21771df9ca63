package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transctrl_reconcile_total",
			Help: "Total number of Reconcile RPCs by outcome",
		},
		[]string{"outcome"},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transctrl_reconcile_duration_seconds",
			Help:    "Duration of a Reconcile call in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	InstancesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transctrl_instances_created_total",
			Help: "Total number of containers created",
		},
	)

	InstancesDestroyedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transctrl_instances_destroyed_total",
			Help: "Total number of containers destroyed",
		},
	)

	InstancesRecreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transctrl_instances_recreated_total",
			Help: "Total number of containers recreated due to drift",
		},
	)

	RateLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transctrl_rate_limit_rejections_total",
			Help: "Total number of Reconcile calls rejected by the rate limiter",
		},
	)

	ManagedContainers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transctrl_managed_containers",
			Help: "Number of managed containers by runtime state",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(ReconcileTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(InstancesCreatedTotal)
	prometheus.MustRegister(InstancesDestroyedTotal)
	prometheus.MustRegister(InstancesRecreatedTotal)
	prometheus.MustRegister(RateLimitRejectionsTotal)
	prometheus.MustRegister(ManagedContainers)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
