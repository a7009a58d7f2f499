// Package metrics exposes capture and replay counters in Prometheus form.
// The CLI is a short-lived batch process, so metrics are written to a
// node-exporter textfile at the end of a run rather than served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Recorder owns a private registry so parallel runs and tests do not
// collide on the global one.
type Recorder struct {
	registry *prometheus.Registry
	objects  *prometheus.CounterVec
	devices  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder creates and registers the collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		objects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ntoconfig",
			Name:      "objects_total",
			Help:      "Objects processed, by operation, object type and result.",
		}, []string{"op", "type", "result"}),
		devices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ntoconfig",
			Name:      "devices_total",
			Help:      "Device passes, by operation and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ntoconfig",
			Name:      "device_duration_seconds",
			Help:      "Wall time of one device pass.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"op"}),
	}
	r.registry.MustRegister(r.objects, r.devices, r.duration)
	return r
}

// Object counts one processed object. A nil Recorder is a no-op.
func (r *Recorder) Object(op, objType, result string) {
	if r == nil {
		return
	}
	r.objects.WithLabelValues(op, objType, result).Inc()
}

// Device records the outcome and duration of one device pass.
func (r *Recorder) Device(op string, err error, d time.Duration) {
	if r == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	r.devices.WithLabelValues(op, result).Inc()
	r.duration.WithLabelValues(op).Observe(d.Seconds())
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics in text exposition format to path.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
