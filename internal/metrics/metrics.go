// Package metrics exposes Prometheus counters for chain reads, submissions
// and confirmations. A nil *Registry is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Registry struct {
	registry      *prometheus.Registry
	readsTotal    *prometheus.CounterVec
	cacheTotal    *prometheus.CounterVec
	submitsTotal  *prometheus.CounterVec
	confirmsTotal *prometheus.CounterVec
	watchErrors   prometheus.Counter
	stallsTotal   prometheus.Counter
	confirmTime   prometheus.Histogram
	workflowState *prometheus.GaugeVec
}

func New() *Registry {
	reads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "academy_chain_reads_total",
		Help: "Contract reads by method and result",
	}, []string{"method", "result"})

	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "academy_read_cache_total",
		Help: "Read cache lookups by outcome",
	}, []string{"outcome"})

	submits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "academy_submissions_total",
		Help: "Transaction submissions by action and result",
	}, []string{"action", "result"})

	confirms := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "academy_confirmations_total",
		Help: "Terminal confirmation outcomes by action",
	}, []string{"action", "status"})

	watchErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "academy_watch_errors_total",
		Help: "RPC failures while polling for receipts",
	})

	stalls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "academy_watch_stalls_total",
		Help: "Watches that exhausted their poll attempts",
	})

	confirmTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "academy_confirmation_seconds",
		Help:    "Time from broadcast to a terminal receipt",
		Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
	})

	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "academy_workflow_state",
		Help: "Current state of each workflow (1 for the active state)",
	}, []string{"workflow", "state"})

	r := prometheus.NewRegistry()
	r.MustRegister(reads, cache, submits, confirms, watchErrs, stalls, confirmTime, state)

	return &Registry{
		registry:      r,
		readsTotal:    reads,
		cacheTotal:    cache,
		submitsTotal:  submits,
		confirmsTotal: confirms,
		watchErrors:   watchErrs,
		stallsTotal:   stalls,
		confirmTime:   confirmTime,
		workflowState: state,
	}
}

// Gatherer exposes the underlying registry for tests and custom handlers.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.registry }

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Registry) Read(method, result string) {
	if m == nil {
		return
	}
	m.readsTotal.WithLabelValues(method, result).Inc()
}

func (m *Registry) Cache(outcome string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(outcome).Inc()
}

func (m *Registry) Submit(action, result string) {
	if m == nil {
		return
	}
	m.submitsTotal.WithLabelValues(action, result).Inc()
}

func (m *Registry) Confirm(action, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.confirmsTotal.WithLabelValues(action, status).Inc()
	m.confirmTime.Observe(elapsed.Seconds())
}

func (m *Registry) WatchError() {
	if m == nil {
		return
	}
	m.watchErrors.Inc()
}

func (m *Registry) Stall() {
	if m == nil {
		return
	}
	m.stallsTotal.Inc()
}

// State marks state as the active one for workflow, clearing prev.
func (m *Registry) State(workflow, prev, state string) {
	if m == nil {
		return
	}
	if prev != "" {
		m.workflowState.WithLabelValues(workflow, prev).Set(0)
	}
	m.workflowState.WithLabelValues(workflow, state).Set(1)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Registry) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
