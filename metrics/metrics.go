// Package metrics holds the Prometheus collectors of the scheduler and the
// HTTP endpoint exposing them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "recurpay"

var (
	// Dispatched counts firings handed to the worker pool, by job.
	Dispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatched_total",
			Help:      "Job firings dispatched by the scheduler.",
		},
		[]string{"job"},
	)

	// NextRun is the unix time of each job's next activation, 0 when exhausted.
	NextRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "next_run_timestamp_seconds",
			Help:      "Next scheduled activation of a job.",
		},
		[]string{"job"},
	)

	// Firings counts finished firings by job and result
	// (succeeded, failed, in_flight, error).
	Firings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "firings_total",
			Help:      "Finished job firings by result.",
		},
		[]string{"job", "result"},
	)

	// FiringDuration observes how long a firing took end to end.
	FiringDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "firing_duration_seconds",
			Help:      "Duration of a job firing from negotiation to the end of the payment stream.",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"job"},
	)

	// PaymentUpdates counts payment stream entries by classified status.
	PaymentUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_updates_total",
			Help:      "Payment status updates received from the payment node.",
		},
		[]string{"status"},
	)
)

// SetNextRun records a job's next activation.
func SetNextRun(job string, next time.Time) {
	if next.IsZero() {
		NextRun.WithLabelValues(job).Set(0)
		return
	}
	NextRun.WithLabelValues(job).Set(float64(next.Unix()))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("[Metrics] shutdown", zap.Error(err))
		}
	}()

	logger.Info("[Metrics] serving", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "serve metrics on %s", addr)
	}
	return nil
}
