// Package metrics holds the Prometheus collectors for the subscription gate.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "subgate"

// Metrics groups the gate collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gateDecisions *prometheus.CounterVec
	probeOutcomes *prometheus.CounterVec
	probeDuration prometheus.Histogram
	rechecks      *prometheus.CounterVec
}

// New registers the gate collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Inbound events by terminal gate state",
		}, []string{"state"}),
		probeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "membership_probes_total",
			Help:      "Membership probes by outcome",
		}, []string{"outcome"}),
		probeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "membership_probe_duration_seconds",
			Help:      "Latency of a single membership probe",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		rechecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rechecks_total",
			Help:      "Recheck button presses by result",
		}, []string{"result"}),
	}
}

// GateDecision counts one event reaching a terminal gate state
func (m *Metrics) GateDecision(state string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(state).Inc()
}

// ProbeObserved records the outcome and latency of one membership probe
func (m *Metrics) ProbeObserved(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.probeOutcomes.WithLabelValues(outcome).Inc()
	m.probeDuration.Observe(d.Seconds())
}

// Recheck counts one recheck by result
func (m *Metrics) Recheck(result string) {
	if m == nil {
		return
	}
	m.rechecks.WithLabelValues(result).Inc()
}

// Serve exposes gatherer on addr under /metrics until ctx is cancelled
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving prometheus metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
