// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	installsStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dillinger",
		Name:      "installs_started_total",
		Help:      "Installations launched, by platform.",
	}, []string{"platform"})

	installsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dillinger",
		Name:      "installs_finished_total",
		Help:      "Installations that left the installing state, by platform and outcome.",
	}, []string{"platform", "outcome"})

	installsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dillinger",
		Name:      "installs_active",
		Help:      "Installations currently in the installing state, as of the last reconcile pass.",
	})

	pollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dillinger",
		Name:      "install_poll_duration_seconds",
		Help:      "Time spent querying the installer runner for one installation.",
		Buckets:   prometheus.DefBuckets,
	})

	runnerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dillinger",
		Name:      "runner_errors_total",
		Help:      "Errors returned by the installer runner, by operation.",
	}, []string{"op"})

	volumePurposeChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dillinger",
		Name:      "volume_purpose_changes_total",
		Help:      "Purpose assignments made by the volume registry.",
	})

	registerOnce sync.Once
)

// Outcomes of a finished installation.
const (
	OutcomeInstalled = "installed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Register adds the collectors to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(installsStarted, installsFinished, installsActive, pollDuration, runnerErrors, volumePurposeChanges)
	})
}

// RegisterHandler mounts the Prometheus handler on mux.
func RegisterHandler(mux *http.ServeMux) {
	Register()
	mux.Handle("GET /metrics", promhttp.Handler())
}

func InstallStarted(platform string) {
	installsStarted.WithLabelValues(platform).Inc()
}

func InstallFinished(platform, outcome string) {
	installsFinished.WithLabelValues(platform, outcome).Inc()
}

func SetActiveInstalls(n int) {
	installsActive.Set(float64(n))
}

func ObservePoll(d time.Duration) {
	pollDuration.Observe(d.Seconds())
}

func RunnerError(op string) {
	runnerErrors.WithLabelValues(op).Inc()
}

func VolumePurposeChanged() {
	volumePurposeChanges.Inc()
}
