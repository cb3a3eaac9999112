package sweep

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/daryltucker/sweep-runner/internal/model"
)

// Metrics exposes sweep progress to Prometheus. A nil *Metrics records nothing.
type Metrics struct {
	trials     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	planned    prometheus.Gauge
	completed  prometheus.Gauge
	throughput *prometheus.GaugeVec
}

// NewMetrics registers the sweep collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		trials: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_trials_total",
			Help: "Trials finished, by status",
		}, []string{"status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sweep_trial_duration_seconds",
			Help:    "Wall-clock duration of one benchmark invocation",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5m
		}, []string{"engine"}),
		planned: f.NewGauge(prometheus.GaugeOpts{
			Name: "sweep_trials_planned",
			Help: "Trials in the current sweep grid",
		}),
		completed: f.NewGauge(prometheus.GaugeOpts{
			Name: "sweep_trials_completed",
			Help: "Trials recorded so far in the current sweep",
		}),
		throughput: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sweep_last_throughput",
			Help: "Last throughput parsed for a configuration",
		}, []string{"engine", "value_size", "threads", "section"}),
	}
}

func (m *Metrics) setPlanned(n int) {
	if m == nil {
		return
	}
	m.planned.Set(float64(n))
	m.completed.Set(0)
}

func (m *Metrics) observe(o model.TrialOutcome) {
	if m == nil {
		return
	}
	m.trials.WithLabelValues(string(o.Status)).Inc()
	m.duration.WithLabelValues(o.Config.Engine).Observe(o.Duration.Seconds())
	m.completed.Inc()

	size := strconv.Itoa(o.Config.ValueSize)
	threads := strconv.Itoa(o.Config.Threads)
	if o.PrefillThroughput != nil {
		m.throughput.WithLabelValues(o.Config.Engine, size, threads, "prefill").Set(*o.PrefillThroughput)
	}
	if o.DecodeThroughput != nil {
		m.throughput.WithLabelValues(o.Config.Engine, size, threads, "decode").Set(*o.DecodeThroughput)
	}
}
