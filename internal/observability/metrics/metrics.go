// Package metrics exposes Prometheus instruments for studio-control.
// Helpers are no-ops until Init is called, so packages may record
// unconditionally.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/studio-control/internal/logger"
)

const (
	metricPrefix = "studio_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultStale   = "stale"

	readHeaderTimeout = 5 * time.Second
)

// Resync stages a follower walks through when updates stop arriving.
const (
	ResyncPush      = "push"
	ResyncRead      = "read"
	ResyncReconnect = "reconnect"
)

var (
	registerOnce sync.Once

	commitTotal   *prometheus.CounterVec
	commitLatency *prometheus.HistogramVec
	pushTotal     *prometheus.CounterVec
	updatesTotal  *prometheus.CounterVec
	resyncTotal   *prometheus.CounterVec
	lineEvents    *prometheus.CounterVec
	activeAlarms  *prometheus.GaugeVec
	telemetryAge  *prometheus.GaugeVec
)

// Init registers all instruments with the default registry.
func Init() {
	registerOnce.Do(func() {
		commitTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commit_total",
				Help: "Record commits by kind and result",
			},
			[]string{"kind", "result"},
		)
		commitLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "commit_latency_seconds",
				Help:    "Commit round-trip latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		)
		pushTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "push_publish_total",
				Help: "Push channel publishes by kind and result",
			},
			[]string{"kind", "result"},
		)
		updatesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "follower_updates_total",
				Help: "Updates seen by followers by source and result",
			},
			[]string{"kind", "source", "result"},
		)
		resyncTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "follower_resync_total",
				Help: "Stall resync attempts by stage",
			},
			[]string{"kind", "stage"},
		)
		lineEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "call_line_events_total",
				Help: "Call-line events by studio, event and result",
			},
			[]string{"studio", "event", "result"},
		)
		activeAlarms = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_alarms",
				Help: "Unresolved alarms by severity",
			},
			[]string{"severity"},
		)
		telemetryAge = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "telemetry_age_seconds",
				Help: "Age of the latest snapshot per transmitter",
			},
			[]string{"transmitter"},
		)

		prometheus.MustRegister(
			commitTotal,
			commitLatency,
			pushTotal,
			updatesTotal,
			resyncTotal,
			lineEvents,
			activeAlarms,
			telemetryAge,
		)
	})
}

// Serve exposes /metrics on address until ctx is done.
func Serve(ctx context.Context, address string) error {
	Init()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readHeaderTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // Best effort on exit.
	}()

	logger.Infof(ctx, "Metrics listening on %s", address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// ObserveCommit records a commit round-trip. outcome is one of the Result values.
func ObserveCommit(kind, outcome string, duration time.Duration) {
	if commitTotal != nil {
		commitTotal.WithLabelValues(kind, outcome).Inc()
	}

	if commitLatency != nil {
		commitLatency.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// IncPublish counts a push publish.
func IncPublish(kind string, err error) {
	if pushTotal != nil {
		pushTotal.WithLabelValues(kind, Result(err)).Inc()
	}
}

// IncUpdate counts an update a follower applied or discarded.
func IncUpdate(kind, source, outcome string) {
	if updatesTotal != nil {
		updatesTotal.WithLabelValues(kind, source, outcome).Inc()
	}
}

// IncResync counts a stall resync stage.
func IncResync(kind, stage string) {
	if resyncTotal != nil {
		resyncTotal.WithLabelValues(kind, stage).Inc()
	}
}

// IncLineEvent counts a call-line command.
func IncLineEvent(studio, event string, err error) {
	if lineEvents != nil {
		lineEvents.WithLabelValues(studio, event, Result(err)).Inc()
	}
}

// SetActiveAlarms publishes unresolved alarm counts per severity.
func SetActiveAlarms(counts map[string]int) {
	if activeAlarms == nil {
		return
	}

	for severity, n := range counts {
		activeAlarms.WithLabelValues(severity).Set(float64(n))
	}
}

// SetTelemetryAge records how old the latest snapshot of transmitter is.
func SetTelemetryAge(transmitter string, age time.Duration) {
	if age < 0 {
		age = 0
	}

	if telemetryAge != nil {
		telemetryAge.WithLabelValues(transmitter).Set(age.Seconds())
	}
}

// Result maps err to ResultError or ResultSuccess.
func Result(err error) string {
	if err != nil {
		return ResultError
	}

	return ResultSuccess
}
