package observe

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the frame loop and the status server.
type Metrics struct {
	registry        *prometheus.Registry
	framesTotal     prometheus.Counter
	handsDetected   prometheus.Counter
	detectErrors    prometheus.Counter
	volumeSets      prometheus.Counter
	volumeSetErrors prometheus.Counter
	volumeLevel     prometheus.Gauge
	extendedFingers prometheus.Gauge
	frameDuration   prometheus.Histogram
	httpRequests    prometheus.Counter
	httpErrors      prometheus.Counter
}

// NewMetrics creates and registers the collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fingervol_frames_total",
			Help: "Total number of frames processed",
		}),
		handsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fingervol_hands_detected_total",
			Help: "Total number of frames in which a hand was selected",
		}),
		detectErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fingervol_detect_errors_total",
			Help: "Total number of failed landmark detections",
		}),
		volumeSets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fingervol_volume_sets_total",
			Help: "Total number of volume levels applied",
		}),
		volumeSetErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fingervol_volume_set_errors_total",
			Help: "Total number of volume levels the endpoint rejected",
		}),
		volumeLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fingervol_volume_level",
			Help: "Last volume level applied, in [0,1]",
		}),
		extendedFingers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fingervol_extended_fingers",
			Help: "Number of extended fingers in the last hand seen",
		}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fingervol_frame_duration_seconds",
			Help:    "Time spent processing one frame",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		httpRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fingervol_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		httpErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fingervol_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
	}

	registry.MustRegister(
		m.framesTotal,
		m.handsDetected,
		m.detectErrors,
		m.volumeSets,
		m.volumeSetErrors,
		m.volumeLevel,
		m.extendedFingers,
		m.frameDuration,
		m.httpRequests,
		m.httpErrors,
	)

	return m
}

// ObserveFrame counts one processed frame and its duration.
func (m *Metrics) ObserveFrame(d time.Duration) {
	m.framesTotal.Inc()
	m.frameDuration.Observe(d.Seconds())
}

// IncHandsDetected records a frame with a selected hand and its finger count.
func (m *Metrics) IncHandsDetected(fingers int) {
	m.handsDetected.Inc()
	m.extendedFingers.Set(float64(fingers))
}

// IncDetectErrors increments the detection error counter.
func (m *Metrics) IncDetectErrors() {
	m.detectErrors.Inc()
}

// ObserveVolumeSet records a SetLevel call. The level gauge only moves on success.
func (m *Metrics) ObserveVolumeSet(level float64, err error) {
	if err != nil {
		m.volumeSetErrors.Inc()
		return
	}
	m.volumeSets.Inc()
	m.volumeLevel.Set(level)
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.httpRequests.Inc()
}

// IncErrors increments the HTTP error counter.
func (m *Metrics) IncErrors() {
	m.httpErrors.Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
