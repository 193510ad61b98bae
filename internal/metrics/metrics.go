// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"nusd-wallet/pkg/apperror"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nusd"

// Metrics owns a private registry so tests can build independent instances.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	settlementOps     *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	unclaimedDeposits *prometheus.CounterVec
	scannerRuns       *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		settlementOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settlement",
				Name:      "operations_total",
				Help:      "Settlement operations by operation and result code.",
			},
			[]string{"operation", "result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "path"},
		),
		unclaimedDeposits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scanner",
				Name:      "unclaimed_deposits_total",
				Help:      "On-chain transfers into a vault with no ledger entry.",
			},
			[]string{"vault"},
		),
		scannerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scanner",
				Name:      "runs_total",
				Help:      "Deposit scanner runs by outcome.",
			},
			[]string{"success"},
		),
	}

	m.registry.MustRegister(
		m.settlementOps,
		m.httpRequests,
		m.httpDuration,
		m.unclaimedDeposits,
		m.scannerRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSettlement counts one settlement operation. The result label is
// "ok" or the AppError code of err ("error" for untyped errors).
func (m *Metrics) RecordSettlement(operation string, err error) {
	if m == nil {
		return
	}
	m.settlementOps.WithLabelValues(operation, resultLabel(err)).Inc()
}

// RecordHTTPRequest records one served request. path should be the route template.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if path == "" {
		path = "unmatched"
	}
	method = strings.ToUpper(method)
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUnclaimedDeposit counts a transfer the scanner found without a ledger entry.
func (m *Metrics) RecordUnclaimedDeposit(vaultAddress string) {
	if m == nil {
		return
	}
	m.unclaimedDeposits.WithLabelValues(vaultAddress).Inc()
}

// RecordScannerRun counts one scanner pass.
func (m *Metrics) RecordScannerRun(success bool) {
	if m == nil {
		return
	}
	m.scannerRuns.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := apperror.Code(err); code != "" {
		return code
	}
	return "error"
}
