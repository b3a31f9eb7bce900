// Package telemetry provides opt-in, low-overhead Prometheus metrics for
// the patch subsystem. It is safe to call from hot paths: when disabled,
// all public functions are no-ops.
package telemetry

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the telemetry module.
//
// MetricsAddr, when non-empty, starts a dedicated HTTP server that serves
// /metrics. If you already expose Prometheus elsewhere, leave it empty and
// register promhttp yourself.
type Config struct {
	Enabled     bool
	MetricsAddr string // e.g. ":9090". Empty to disable the standalone endpoint
}

var (
	modEnabled atomic.Bool

	patchesAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strictpatch_patches_applied_total",
		Help: "Total patches that were written and passed verification",
	})
	patchesFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "strictpatch_patches_failed_total",
		Help: "Total failed patch attempts by error code",
	}, []string{"code"})
	rollbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strictpatch_rollbacks_total",
		Help: "Total automatic restores after verification failure",
	})
	backupsPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strictpatch_backups_pruned_total",
		Help: "Total backups removed by the retention policy",
	})
	queueWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "strictpatch_queue_wait_seconds",
		Help:    "Time a request spent waiting behind earlier requests",
		Buckets: prometheus.DefBuckets,
	})
	verifySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "strictpatch_verify_seconds",
		Help:    "Duration of full verification pipeline runs",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	// Register eagerly. If no endpoint is exposed, registration is harmless.
	prometheus.MustRegister(patchesAppliedTotal, patchesFailedTotal, rollbacksTotal,
		backupsPrunedTotal, queueWaitSeconds, verifySeconds)
}

// Enable configures the module. Safe to call multiple times.
func Enable(cfg Config) {
	modEnabled.Store(cfg.Enabled)
	if cfg.Enabled && cfg.MetricsAddr != "" {
		startMetricsEndpoint(cfg.MetricsAddr)
	}
}

// Enabled reports whether telemetry is active.
func Enabled() bool { return modEnabled.Load() }

// ObservePatchApplied records a successful patch with its queue wait.
func ObservePatchApplied(queueWait time.Duration) {
	if !modEnabled.Load() {
		return
	}
	patchesAppliedTotal.Inc()
	queueWaitSeconds.Observe(queueWait.Seconds())
}

// ObservePatchFailed records a failed patch attempt by error code.
func ObservePatchFailed(code string) {
	if !modEnabled.Load() {
		return
	}
	patchesFailedTotal.WithLabelValues(code).Inc()
}

// ObserveRollback records an automatic restore from backup.
func ObserveRollback() {
	if !modEnabled.Load() {
		return
	}
	rollbacksTotal.Inc()
}

// ObservePruned records backups removed by a retention pass.
func ObservePruned(n int) {
	if !modEnabled.Load() || n <= 0 {
		return
	}
	backupsPrunedTotal.Add(float64(n))
}

// ObserveVerifyDuration records a full pipeline run duration.
func ObserveVerifyDuration(d time.Duration) {
	if !modEnabled.Load() {
		return
	}
	verifySeconds.Observe(d.Seconds())
}

// startMetricsEndpoint exposes /metrics on addr in a background goroutine.
func startMetricsEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
