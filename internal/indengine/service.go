// Package indengine is the scheduled indicator recompute service. On each
// cron trigger it reads new bars from SQLite, steps the warm incremental
// engines, persists the resulting values, and fans them out to Redis and
// WebSocket subscribers. Engine state is checkpointed so a restart resumes
// warm instead of replaying history.
package indengine

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"

	"quantdb/internal/gateway"
	"quantdb/internal/indicator"
	"quantdb/internal/metrics"
	"quantdb/internal/model"
	"quantdb/internal/ringbuf"
	redisstore "quantdb/internal/store/redis"
	sqlitestore "quantdb/internal/store/sqlite"
)

// Service is the top-level orchestrator for the indicator engine.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg Config

	registry *indicator.Registry
	engines  map[model.Frequency]*indicator.Engine

	// lastSeen[freq][symbol] → timestamp of the last bar fed to the engine
	lastSeen map[model.Frequency]map[string]time.Time

	// fundSeen[symbol] → timestamp of the last fundamental snapshot turned
	// into ratio values
	fundSeen map[string]time.Time

	sqlReader *sqlitestore.Reader
	sqlWriter *sqlitestore.Writer
	publisher *redisstore.Publisher
	hub       *gateway.Hub
	ring      *ringbuf.Ring
	prom      *metrics.Metrics
	health    *metrics.HealthStatus
	sched     *cron.Cron
}

// New creates a new Service from the given Config.
// It opens SQLite and connects to Redis; a dead Redis degrades publishing
// but never prevents startup.
func New(cfg Config) (*Service, error) {
	svc := &Service{
		cfg:      cfg,
		registry: indicator.NewRegistry(),
		engines:  make(map[model.Frequency]*indicator.Engine, len(cfg.Frequencies)),
		lastSeen: make(map[model.Frequency]map[string]time.Time, len(cfg.Frequencies)),
		fundSeen: make(map[string]time.Time),
		ring:     ringbuf.New(cfg.RingCapacity),
		prom:     metrics.NewMetrics(),
		health:   metrics.NewHealthStatus(),
	}

	svc.hub = gateway.NewHub()
	svc.hub.OnClientCountChange = func(n int) {
		svc.prom.ConnectedClients.Set(float64(n))
	}

	// ---- Open SQLite ----
	os.MkdirAll(filepath.Dir(cfg.Infra.SQLitePath), 0o755)
	var err error
	svc.sqlWriter, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.Infra.SQLitePath})
	if err != nil {
		return nil, err
	}
	svc.sqlReader, err = sqlitestore.NewReader(cfg.Infra.SQLitePath)
	if err != nil {
		svc.sqlWriter.Close()
		return nil, err
	}

	// ---- Connect to Redis ----
	svc.publisher, err = redisstore.New(redisstore.PublisherConfig{
		Addr:     cfg.Infra.RedisAddr,
		Password: cfg.Infra.RedisPassword,
		DB:       cfg.Infra.RedisDB,
	})
	if err != nil {
		log.Printf("[indengine] WARNING: redis connect failed: %v (continuing without Redis publishing)", err)
		svc.publisher = nil
	}

	return svc, nil
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	log.Println("[indengine] starting indicator engine service...")

	// ---- Restore engines from checkpoint ----
	if err := svc.restoreEngines(ctx); err != nil {
		return err
	}

	// ---- Catch up on anything written while we were down ----
	svc.recomputeAll(ctx)

	// ---- Start subsystems ----
	go svc.publishLoop(ctx)
	go svc.checkpointLoop(ctx)

	svc.sched = cron.New()
	if _, err := svc.sched.AddFunc(cfg.CronSpec, func() { svc.recomputeAll(ctx) }); err != nil {
		return err
	}
	svc.sched.Start()

	srv := metrics.NewServer(cfg.Infra.HTTPAddr, svc.health)
	srv.Handle("/ws", http.HandlerFunc(svc.hub.HandleWS))
	srv.Start()

	var rdb *goredis.Client
	if svc.publisher != nil {
		rdb = svc.publisher.Client()
	}
	svc.health.StartLivenessChecker(ctx, rdb, svc.sqlWriter.DB(), 15*time.Second)

	log.Printf("[indengine] recompute cron %q, frequencies %v, %d indicator configs",
		cfg.CronSpec, cfg.Frequencies, len(cfg.Indicators))
	log.Printf("[indengine] http on %s (/metrics, /healthz, /ws)", cfg.Infra.HTTPAddr)
	log.Println("[indengine] all systems running. Press Ctrl+C to stop.")

	// Block until context cancelled
	<-ctx.Done()

	svc.shutdown(srv)
	return nil
}

// shutdown saves a final checkpoint and closes connections.
func (svc *Service) shutdown(srv *metrics.Server) {
	log.Println("[indengine] shutdown signal received, saving final checkpoint...")

	// Wait out any recompute the scheduler is mid-way through.
	<-svc.sched.Stop().Done()

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	svc.saveCheckpoints(shutCtx)
	srv.Stop(shutCtx)

	if svc.publisher != nil {
		svc.publisher.Close()
	}
	svc.sqlReader.Close()
	svc.sqlWriter.Close()

	log.Println("[indengine] shutdown complete.")
}
