package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"quantdb/internal/indengine"
	"quantdb/internal/logger"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	slogger := logger.Init("indengine", slog.LevelInfo)

	cfg := indengine.LoadConfig()
	slogger.Info("configuration loaded",
		slog.String("cron", cfg.CronSpec),
		slog.Int("indicators", len(cfg.Indicators)),
		slog.String("sqlite", cfg.Infra.SQLitePath),
		slog.String("redis", cfg.Infra.RedisAddr),
	)

	svc, err := indengine.New(cfg)
	if err != nil {
		log.Fatalf("[indengine] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[indengine] fatal: %v", err)
	}
}
