// Package monitoring exposes the Prometheus metrics surface and health
// endpoint shared by every component.
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthStatus represents aggregate system health.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is a single named liveness probe (RPC pool reachable, KV
// substrate reachable, relay reachable, ...).
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) HealthResult
}

// HealthResult is the outcome of one HealthCheck.
type HealthResult struct {
	Status  HealthStatus
	Message string
	Latency time.Duration
}

// Metrics holds every Prometheus collector named by the exposed surface:
// opportunities_detected_total, executions_total, mev_protection_triggered_total,
// backend_request_failures_total, active_workflows, inflight_executions,
// kv_keys_estimate, plan_duration_seconds, submission_to_inclusion_seconds.
type Metrics struct {
	OpportunitiesDetectedTotal  *prometheus.CounterVec
	ExecutionsTotal             *prometheus.CounterVec
	MEVProtectionTriggeredTotal *prometheus.CounterVec
	BackendRequestFailuresTotal *prometheus.CounterVec

	ActiveWorkflows    prometheus.Gauge
	InflightExecutions prometheus.Gauge
	KVKeysEstimate     prometheus.Gauge

	PlanDurationSeconds             *prometheus.HistogramVec
	SubmissionToInclusionSeconds    *prometheus.HistogramVec
}

// NewMetrics builds and registers every collector against registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		OpportunitiesDetectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opportunities_detected_total",
				Help: "Candidate arbitrage opportunities surfaced by discovery.",
			},
			[]string{"chain", "kind"},
		),
		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "executions_total",
				Help: "Executions attempted, by terminal status.",
			},
			[]string{"status"},
		),
		MEVProtectionTriggeredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mev_protection_triggered_total",
				Help: "MEV protection strategy selections, by threat type.",
			},
			[]string{"type", "network"},
		),
		BackendRequestFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_request_failures_total",
				Help: "Failed calls to the backend control plane.",
			},
			[]string{"endpoint"},
		),
		ActiveWorkflows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_workflows",
			Help: "Workflows currently in a non-terminal state.",
		}),
		InflightExecutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inflight_executions",
			Help: "Executions submitted but not yet confirmed or failed.",
		}),
		KVKeysEstimate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kv_keys_estimate",
			Help: "Estimated number of live keys in the coordinator's KV substrate.",
		}),
		PlanDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plan_duration_seconds",
				Help:    "Time to plan and simulate a route for a candidate opportunity.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"chain"},
		),
		SubmissionToInclusionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "submission_to_inclusion_seconds",
				Help:    "Time from transaction submission to on-chain inclusion.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"chain", "strategy"},
		),
	}

	registry.MustRegister(
		m.OpportunitiesDetectedTotal,
		m.ExecutionsTotal,
		m.MEVProtectionTriggeredTotal,
		m.BackendRequestFailuresTotal,
		m.ActiveWorkflows,
		m.InflightExecutions,
		m.KVKeysEstimate,
		m.PlanDurationSeconds,
		m.SubmissionToInclusionSeconds,
	)

	return m
}

// HealthChecker aggregates named HealthChecks into one overall status,
// re-evaluated on a fixed interval.
type HealthChecker struct {
	logger    *zap.Logger
	checks    map[string]HealthCheck
	status    HealthStatus
	lastCheck time.Time
	interval  time.Duration
	mutex     sync.RWMutex
}

// NewHealthChecker creates a health checker that re-runs its checks every interval.
func NewHealthChecker(logger *zap.Logger, interval time.Duration) *HealthChecker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HealthChecker{
		logger:   logger,
		checks:   make(map[string]HealthCheck),
		status:   HealthStatusHealthy,
		interval: interval,
	}
}

// AddCheck registers a named health check.
func (hc *HealthChecker) AddCheck(check HealthCheck) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()
	hc.checks[check.Name()] = check
}

// Start runs checks immediately then on every interval until ctx is canceled.
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.performChecks(ctx)
	go func() {
		ticker := time.NewTicker(hc.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hc.performChecks(ctx)
			}
		}
	}()
}

func (hc *HealthChecker) performChecks(ctx context.Context) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()

	overall := HealthStatusHealthy
	for name, check := range hc.checks {
		result := check.Check(ctx)
		hc.logger.Debug("health check completed",
			zap.String("check", name),
			zap.String("status", string(result.Status)),
			zap.Duration("latency", result.Latency))

		if result.Status == HealthStatusUnhealthy {
			overall = HealthStatusUnhealthy
		} else if result.Status == HealthStatusDegraded && overall == HealthStatusHealthy {
			overall = HealthStatusDegraded
		}
	}

	hc.status = overall
	hc.lastCheck = time.Now()
}

// Status returns the most recently computed overall health.
func (hc *HealthChecker) Status() HealthResult {
	hc.mutex.RLock()
	defer hc.mutex.RUnlock()
	return HealthResult{
		Status:  hc.status,
		Message: fmt.Sprintf("overall system status: %s", hc.status),
	}
}

// Server serves /metrics and /health on its own listener, separate from the
// gin-routed API surface, matching the teacher's practice of isolating the
// metrics port from request traffic.
type Server struct {
	logger        *zap.Logger
	httpServer    *http.Server
	healthChecker *HealthChecker
}

// NewServer wires the metrics registry and health checker onto an HTTP mux.
func NewServer(logger *zap.Logger, registry *prometheus.Registry, healthChecker *HealthChecker, port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := healthChecker.Status()
		w.Header().Set("Content-Type", "application/json")
		if status.Status == HealthStatusHealthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"status":"%s"}`, status.Status)
	})

	return &Server{
		logger:        logger,
		healthChecker: healthChecker,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}
}

// Start begins serving and starts the health checker's background loop.
func (s *Server) Start(ctx context.Context) {
	s.healthChecker.Start(ctx)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
	s.logger.Info("metrics server started", zap.String("addr", s.httpServer.Addr))
}

// Stop gracefully shuts down the metrics HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
