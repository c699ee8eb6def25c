package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dream"

// Collectors holds the service's prometheus instruments on a private registry.
type Collectors struct {
	Registry *prometheus.Registry

	verdicts         *prometheus.CounterVec
	samples          *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	devices          prometheus.Gauge
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

func New() *Collectors {
	c := &Collectors{
		Registry: prometheus.NewRegistry(),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rem_verdicts_total",
			Help:      "REM evaluations by policy and gate outcome.",
		}, []string{"policy", "reason"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hr_samples_total",
			Help:      "Heart-rate samples received, accepted or skipped as malformed.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rem_transitions_total",
			Help:      "REM phase starts and ends.",
		}, []string{"transition"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cue_dispatches_total",
			Help:      "Final scenario cue dispatch outcomes.",
		}, []string{"status"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cue_dispatch_duration_seconds",
			Help:      "Time spent synthesizing a cue.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"status"}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices",
			Help:      "Devices with live detection state.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	c.Registry.MustRegister(
		c.verdicts, c.samples, c.transitions, c.dispatches, c.dispatchDuration,
		c.devices, c.requests, c.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collectors) ObserveVerdict(policy, reason string) {
	c.verdicts.WithLabelValues(policy, reason).Inc()
}

func (c *Collectors) ObserveSamples(accepted, skipped int) {
	if accepted > 0 {
		c.samples.WithLabelValues("accepted").Add(float64(accepted))
	}
	if skipped > 0 {
		c.samples.WithLabelValues("skipped").Add(float64(skipped))
	}
}

func (c *Collectors) ObserveTransition(transition string) {
	c.transitions.WithLabelValues(transition).Inc()
}

// ObserveDispatch counts every final status; only synthesized cues carry a duration.
func (c *Collectors) ObserveDispatch(status string, d time.Duration) {
	c.dispatches.WithLabelValues(status).Inc()
	if d > 0 {
		c.dispatchDuration.WithLabelValues(status).Observe(d.Seconds())
	}
}

func (c *Collectors) SetDevices(n int) {
	c.devices.Set(float64(n))
}

// ObserveRequest records one served HTTP request. route is the matched pattern, not the raw path.
func (c *Collectors) ObserveRequest(method, route string, code int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{Registry: c.Registry})
}
