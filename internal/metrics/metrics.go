// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/alarm-gateway/internal/version"
)

const namespace = "alarm_gateway"

// Lock acquisition outcomes.
const (
	LockAcquired    = "acquired"
	LockDenied      = "denied"
	LockUnavailable = "unavailable"
)

// Login outcomes.
const (
	LoginSucceeded   = "succeeded"
	LoginDenied      = "denied"
	LoginUnavailable = "unavailable"
)

// Registry holds all gateway collectors on a private prometheus registry.
// A nil *Registry is valid and records nothing.
type Registry struct {
	registry *prometheus.Registry

	// HTTP surface
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// System lock
	LockAcquisitions *prometheus.CounterVec
	LockReleaseFails prometheus.Counter
	ActionsTotal     *prometheus.CounterVec

	// Login
	LoginsTotal *prometheus.CounterVec

	BuildInfo *prometheus.GaugeVec
}

// New creates a registry with Go runtime and process collectors attached.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by route, method and status code.",
		}, []string{"route", "method", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		LockAcquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "system_lock_acquisitions_total",
			Help:      "Attempts to take the remote system lock, by outcome.",
		}, []string{"outcome"}),
		LockReleaseFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "system_lock_release_failures_total",
			Help:      "Explicit releases of the remote system lock that failed.",
		}),
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarm_actions_total",
			Help:      "Arm and disarm commands sent while holding the lock, by action and result.",
		}, []string{"action", "result"}),
		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts forwarded to the alarm system, by outcome.",
		}, []string{"outcome"}),
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Always 1, labeled with the running build.",
		}, []string{"version", "commit", "goversion"}),
	}

	info := version.Get()
	r.BuildInfo.WithLabelValues(info.Version, info.Commit, info.GoVersion).Set(1)

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RequestsTotal,
		r.RequestDuration,
		r.LockAcquisitions,
		r.LockReleaseFails,
		r.ActionsTotal,
		r.LoginsTotal,
		r.BuildInfo,
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one handled HTTP request.
func (r *Registry) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}

	r.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveLock records the outcome of a lock acquisition.
func (r *Registry) ObserveLock(outcome string) {
	if r == nil {
		return
	}

	r.LockAcquisitions.WithLabelValues(outcome).Inc()
}

// ObserveReleaseFailure records a failed explicit release.
func (r *Registry) ObserveReleaseFailure() {
	if r == nil {
		return
	}

	r.LockReleaseFails.Inc()
}

// ObserveAction records an arm or disarm command result.
func (r *Registry) ObserveAction(action string, err error) {
	if r == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}

	r.ActionsTotal.WithLabelValues(action, result).Inc()
}

// ObserveLogin records the outcome of a login attempt.
func (r *Registry) ObserveLogin(outcome string) {
	if r == nil {
		return
	}

	r.LoginsTotal.WithLabelValues(outcome).Inc()
}
