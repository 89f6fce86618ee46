// internal/metrics/metrics.go

// Package metrics exposes check results as Prometheus metrics written to a
// node_exporter textfile after each run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "twiliot"

// Recorder holds the metrics for one process
type Recorder struct {
	reg *prometheus.Registry

	assets    prometheus.Gauge
	offline   prometheus.Gauge
	skipped   prometheus.Gauge
	lastCheck prometheus.Gauge
	alerts    *prometheus.CounterVec
	failures  prometheus.Counter
}

// NewRecorder registers all metrics on a private registry
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		assets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assets_checked",
			Help:      "Assets returned by the platform in the last check.",
		}),
		offline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assets_offline",
			Help:      "Assets not seen within the threshold in the last check.",
		}),
		skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assets_skipped",
			Help:      "Assets without a last-updated timestamp in the last check.",
		}),
		lastCheck: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_check_timestamp_seconds",
			Help:      "Unix time of the last completed check.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert runs by action.",
		}, []string{"action"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sms_failures_total",
			Help:      "SMS sends that returned no result.",
		}),
	}

	r.reg.MustRegister(r.assets, r.offline, r.skipped, r.lastCheck, r.alerts, r.failures)
	return r
}

// ObserveCheck records the outcome of one asset check
func (r *Recorder) ObserveCheck(checked, offline, skipped int, at time.Time) {
	r.assets.Set(float64(checked))
	r.offline.Set(float64(offline))
	r.skipped.Set(float64(skipped))
	r.lastCheck.Set(float64(at.Unix()))
}

// ObserveAlert counts a run by action; attempted sends without a result count as failures
func (r *Recorder) ObserveAlert(action string, attempted, delivered bool) {
	r.alerts.WithLabelValues(action).Inc()
	if attempted && !delivered {
		r.failures.Inc()
	}
}

// WriteTextfile atomically writes all metrics in the text exposition format
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
