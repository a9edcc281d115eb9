// Package metrics exposes Prometheus collectors for the analysis engines.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Sessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodscan_sessions_total",
			Help: "Completed analysis sessions by modality and primary emotion",
		},
		[]string{"modality", "primary"},
	)

	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moodscan_active_sessions",
			Help: "Sessions currently recording or analyzing",
		},
		[]string{"modality"},
	)

	Ticks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodscan_ticks_total",
			Help: "Extraction ticks executed",
		},
		[]string{"modality"},
	)

	PermissionDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodscan_permission_denials_total",
			Help: "Capture permission requests that failed",
		},
		[]string{"modality"},
	)

	DetectFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodscan_detect_failures_total",
			Help: "Face detection ticks that returned an error",
		},
	)

	DetectLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moodscan_detect_latency_seconds",
			Help:    "Face detection call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	RecognizerRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodscan_recognizer_restarts_total",
			Help: "Speech recognizer sessions restarted during recording",
		},
		[]string{"reason"},
	)

	ModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodscan_model_loads_total",
			Help: "Face model load attempts by source and outcome",
		},
		[]string{"source", "outcome"},
	)
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
