// Package metrics exposes the Prometheus metrics and health surface of the
// indicator/backtest services on one HTTP listener.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indicator engine and
// backtester.
type Metrics struct {
	// Backtest runs
	RunsStarted   prometheus.Counter
	RunsCompleted prometheus.Counter
	RunsAborted   prometheus.Counter
	BarsProcessed prometheus.Counter
	RunDur        prometheus.Histogram

	// Indicator recomputation
	IndicatorsComputed *prometheus.CounterVec // labels: frequency
	RecomputeDur       prometheus.Histogram
	RecomputeFailures  prometheus.Counter

	// Storage and publication
	SQLiteCommitDur prometheus.Histogram
	PublishFailures prometheus.Counter
	BreakerState    prometheus.Gauge // 0=closed, 1=open, 2=half-open

	// Gateway
	ConnectedClients prometheus.Gauge

	// Recompute queue overflow (ring buffer drops)
	QueueOverflow prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantdb_runs_started_total",
			Help: "Backtest runs started",
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantdb_runs_completed_total",
			Help: "Backtest runs that reached Completed",
		}),
		RunsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantdb_runs_aborted_total",
			Help: "Backtest runs that aborted",
		}),
		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantdb_bars_processed_total",
			Help: "Bars stepped through by the simulation engine",
		}),
		RunDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantdb_run_duration_seconds",
			Help:    "Wall-clock duration of one backtest run",
			Buckets: prometheus.DefBuckets,
		}),

		IndicatorsComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantdb_indicators_computed_total",
			Help: "Indicator values computed (by frequency)",
		}, []string{"frequency"}),
		RecomputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantdb_recompute_duration_seconds",
			Help:    "Duration of one scheduled indicator recompute pass",
			Buckets: prometheus.DefBuckets,
		}),
		RecomputeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantdb_recompute_failures_total",
			Help: "Scheduled recompute passes that failed",
		}),

		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantdb_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantdb_publish_failures_total",
			Help: "Redis publish pipelines that failed",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantdb_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),

		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantdb_gateway_clients",
			Help: "Connected WebSocket clients",
		}),

		QueueOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantdb_recompute_queue_overflow_total",
			Help: "Indicator values dropped because the publish queue was full",
		}),
	}

	prometheus.MustRegister(
		m.RunsStarted,
		m.RunsCompleted,
		m.RunsAborted,
		m.BarsProcessed,
		m.RunDur,
		m.IndicatorsComputed,
		m.RecomputeDur,
		m.RecomputeFailures,
		m.SQLiteCommitDur,
		m.PublishFailures,
		m.BreakerState,
		m.ConnectedClients,
		m.QueueOverflow,
	)

	return m
}

// HealthStatus represents the service health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool `json:"redis_connected"`
	SQLiteOK       bool `json:"sqlite_ok"`

	LastRecomputeAt time.Time `json:"last_recompute_at"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetLastRecompute(t time.Time) {
	h.mu.Lock()
	h.LastRecomputeAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency and connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency and health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx ends.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastRecomputeAt string  `json:"last_recompute_at"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastRecomputeAt: h.LastRecomputeAt.Format(time.RFC3339),
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz, plus any extra
// handlers the caller mounts (the indengine mounts /ws here).
type Server struct {
	health *HealthStatus
	addr   string
	mux    *http.ServeMux
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		mux:    mux,
		srv:    &http.Server{Addr: addr, Handler: mux},
	}
}

// Handle mounts an extra handler on the server's mux. Call before Start.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
