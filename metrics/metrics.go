// Package metrics records upload outcomes as Prometheus metrics. kvenv is a
// short-lived CLI, so metrics are collected in a private registry and
// written once to a node_exporter textfile when the run ends.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/jongio/kvenv/keyvault"
	"github.com/jongio/kvenv/secretname"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Recorder holds the upload metrics of one run.
type Recorder struct {
	registry *prometheus.Registry

	uploads      *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvenv_secret_uploads_total",
				Help: "Total number of secrets processed by upload",
			},
			[]string{"vault", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kvenv_secret_upload_duration_seconds",
				Help:    "Duration of SetSecret calls in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"vault"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvenv_secret_upload_errors_total",
				Help: "Total number of upload errors by type",
			},
			[]string{"vault", "error_type"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kvenv_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"vault"},
		),
	}

	r.registry.MustRegister(r.uploads, r.duration, r.errors, r.breakerState)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records one upload outcome.
func (r *Recorder) Observe(vault string, o keyvault.Outcome) {
	result := ResultSuccess
	switch {
	case errors.Is(o.Err, keyvault.ErrCircuitOpen):
		result = ResultSkipped
	case o.Err != nil:
		result = ResultFailure
	}

	r.uploads.With(prometheus.Labels{"vault": vault, "result": result}).Inc()

	if result == ResultSkipped {
		return
	}
	r.duration.With(prometheus.Labels{"vault": vault}).Observe(o.Duration.Seconds())

	if o.Err != nil {
		r.errors.With(prometheus.Labels{"vault": vault, "error_type": errorType(o.Err)}).Inc()
	}
}

// RecordBreakerState records the upload circuit breaker state.
func (r *Recorder) RecordBreakerState(vault string, state gobreaker.State) {
	var value float64
	switch state {
	case gobreaker.StateClosed:
		value = 0
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	r.breakerState.With(prometheus.Labels{"vault": vault}).Set(value)
}

// WriteTextfile writes every metric to path in the Prometheus text format.
// The file is written atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// errorType categorizes an upload error for the error_type label.
func errorType(err error) string {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch {
		case respErr.StatusCode == http.StatusUnauthorized || respErr.StatusCode == http.StatusForbidden:
			return "auth_error"
		case respErr.StatusCode == http.StatusConflict:
			return "conflict"
		case respErr.StatusCode == http.StatusTooManyRequests:
			return "throttled"
		case respErr.StatusCode >= 500:
			return "server_error"
		default:
			return "http_" + strconv.Itoa(respErr.StatusCode)
		}
	}

	switch {
	case errors.Is(err, secretname.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}
