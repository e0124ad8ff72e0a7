// cmd/backtest loads historical bars from SQLite, runs a strategy through the
// simulation engine, and prints the performance summary. Finished runs are
// persisted back to SQLite and can be exported as Parquet or announced over
// Redis for live dashboards.
//
// Usage:
//
//	go run ./cmd/backtest --config=run.yaml --db=data/quantdb.db
//	go run ./cmd/backtest --sweep=sweep.yaml --workers=8
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quantdb/internal/backtest"
	"quantdb/internal/logger"
	"quantdb/internal/model"
	"quantdb/internal/notification"
	parquetstore "quantdb/internal/store/parquet"
	redisstore "quantdb/internal/store/redis"
	sqlitestore "quantdb/internal/store/sqlite"
	"quantdb/internal/strategy"
	"quantdb/internal/timeseries"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("backtest", slog.LevelInfo)

	cfgPath := flag.String("config", "", "YAML run configuration (defaults apply when empty)")
	sweepPath := flag.String("sweep", "", "YAML list of run configurations for a parameter sweep")
	dbPath := flag.String("db", "data/quantdb.db", "Path to SQLite database")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbol override")
	stratFlag := flag.String("strategy", "", "Strategy name override")
	workers := flag.Int("workers", 4, "Parallel runs during a sweep")
	save := flag.Bool("save", true, "Persist the finished run to SQLite")
	exportDir := flag.String("export", "", "Export trades/equity/indicators as Parquet under this directory")
	publish := flag.Bool("publish", false, "Publish run lifecycle events to Redis (REDIS_ADDR)")
	webhook := flag.String("webhook", "", "POST a completion alert to this URL")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	reg := strategy.NewRegistry()

	if *sweepPath != "" {
		runSweep(ctx, reader, reg, *sweepPath, *workers)
		return
	}

	cfg := backtest.DefaultConfig()
	if *cfgPath != "" {
		cfg, err = backtest.LoadConfig(*cfgPath)
		if err != nil {
			log.Fatalf("[backtest] %v", err)
		}
	}
	if *symbolsFlag != "" {
		cfg.Symbols = splitList(*symbolsFlag)
	}
	if *stratFlag != "" {
		cfg.Strategy = *stratFlag
	}

	store, err := loadStore(reader, cfg.Symbols)
	if err != nil {
		log.Fatalf("[backtest] load bars: %v", err)
	}

	strat, err := reg.New(cfg.Strategy, cfg.StrategyParams)
	if err != nil {
		log.Fatalf("[backtest] strategy: %v (registered: %v)", err, reg.Names())
	}

	runID := logger.GenerateTraceID("run", time.Now())
	ctx = logger.WithTraceID(ctx, runID)

	var pub *redisstore.Publisher
	if *publish {
		pub, err = redisstore.New(redisstore.PublisherConfig{
			Addr:     envOr("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err != nil {
			log.Printf("[backtest] WARNING: redis connect failed: %v (run events will not be published)", err)
			pub = nil
		} else {
			defer pub.Close()
		}
	}
	emit := func(ev model.RunEvent) {
		if pub == nil {
			return
		}
		ev.RunID = runID
		if err := pub.PublishRunEvent(ctx, ev); err != nil {
			log.Printf("[backtest] publish run event: %v", err)
		}
	}

	emit(model.RunEvent{Type: model.RunEventStarted, TS: time.Now().UTC(), Message: cfg.Strategy})
	started := time.Now()
	res, runErr := backtest.Run(ctx, cfg, store, strat)
	if res == nil {
		log.Fatalf("[backtest] %v", runErr)
	}
	slog.Info("run finished", append(logger.LogWithTrace(ctx),
		slog.String("state", string(res.State)),
		slog.Int("bars", res.BarCount),
		slog.Duration("took", time.Since(started)))...)

	for _, w := range res.Warnings {
		emit(w)
	}
	if res.State == backtest.StateCompleted {
		emit(model.RunEvent{Type: model.RunEventCompleted, TS: time.Now().UTC()})
	} else {
		emit(model.RunEvent{Type: model.RunEventAborted, TS: time.Now().UTC(), Message: runErr.Error()})
	}

	printSummary(runID, res)

	if *save {
		if err := saveRun(ctx, *dbPath, runID, cfg, store, res); err != nil {
			log.Printf("[backtest] save run: %v", err)
		}
	}
	if *exportDir != "" {
		exp := parquetstore.NewExporter(*exportDir)
		if err := exp.ExportRun(runID, res.Trades, res.Equity, res.Indicators); err != nil {
			log.Printf("[backtest] parquet export: %v", err)
		} else {
			log.Printf("[backtest] exported run %s to %s", runID, *exportDir)
		}
	}

	var notifier notification.Notifier = notification.NewLogNotifier()
	if *webhook != "" {
		notifier = notification.NewWebhookNotifier(*webhook)
	}
	detail := fmt.Sprintf("total return %.2f%%, max drawdown %.2f%%, %d trades",
		res.Summary.TotalReturn*100, res.Summary.MaxDrawdown*100, res.Summary.TradeCount)
	if err := notifier.Send(ctx, notification.ForRun(runID, string(res.State), detail)); err != nil {
		log.Printf("[backtest] notify: %v", err)
	}

	if res.State == backtest.StateAborted {
		os.Exit(1)
	}
}

// barSource is what loadStore needs from storage.
type barSource interface {
	model.BarReader
	model.FundamentalReader
}

// loadStore reads bars and fundamentals for the symbols (all symbols when
// empty) into an in-memory validated store.
func loadStore(reader barSource, symbols []string) (*timeseries.Store, error) {
	if len(symbols) == 0 {
		var err error
		symbols, err = reader.Symbols()
		if err != nil {
			return nil, err
		}
	}

	store := timeseries.New()
	loaded := 0
	for _, sym := range symbols {
		bars, err := reader.ReadBars(sym, time.Time{}, time.Time{})
		if err != nil {
			return nil, fmt.Errorf("read bars for %s: %w", sym, err)
		}
		if len(bars) == 0 {
			log.Printf("[backtest] no bars for %s, skipping", sym)
			continue
		}
		if err := store.Load(sym, bars); err != nil {
			return nil, err
		}
		loaded++

		funds, err := reader.ReadFundamentals(sym)
		if err != nil {
			return nil, fmt.Errorf("read fundamentals for %s: %w", sym, err)
		}
		if len(funds) > 0 {
			if err := store.LoadFundamentals(sym, funds); err != nil {
				return nil, err
			}
		}
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no bar data found for symbols %v", symbols)
	}
	log.Printf("[backtest] loaded %d symbols", loaded)
	return store, nil
}

func saveRun(ctx context.Context, dbPath, runID string, cfg backtest.RunConfig, store *timeseries.Store, res *backtest.RunResult) error {
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: dbPath})
	if err != nil {
		return err
	}
	defer writer.Close()

	symbols := cfg.Symbols
	if len(symbols) == 0 {
		symbols = store.Symbols()
	}
	final := cfg.StartingCash
	if len(res.Equity) > 0 {
		final = res.Equity[len(res.Equity)-1].Equity
	}
	rec := model.RunRecord{
		ID:           runID,
		Strategy:     cfg.Strategy,
		Symbols:      symbols,
		State:        string(res.State),
		StartingCash: cfg.StartingCash,
		FinalEquity:  final,
		BarCount:     res.BarCount,
		CreatedAt:    time.Now().UTC(),
	}
	return writer.SaveRun(ctx, rec, res.Trades, res.Equity)
}

func runSweep(ctx context.Context, reader barSource, reg *strategy.Registry, path string, workers int) {
	cfgs, err := backtest.LoadSweep(path)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	if len(cfgs) == 0 {
		log.Fatalf("[backtest] sweep %s holds no configurations", path)
	}

	// One shared store covering every symbol any entry touches.
	var union []string
	seen := map[string]bool{}
	for _, c := range cfgs {
		for _, s := range c.Symbols {
			if !seen[s] {
				seen[s] = true
				union = append(union, s)
			}
		}
	}
	// An entry with no symbols means "everything", so load everything.
	for _, c := range cfgs {
		if len(c.Symbols) == 0 {
			union = nil
			break
		}
	}
	store, err := loadStore(reader, union)
	if err != nil {
		log.Fatalf("[backtest] load bars: %v", err)
	}

	log.Printf("[backtest] sweeping %d configurations with %d workers", len(cfgs), workers)
	results := backtest.Sweep(ctx, cfgs, store, reg, workers)

	fmt.Println()
	fmt.Printf("%-4s %-16s %-10s %10s %10s %10s %7s\n",
		"#", "STRATEGY", "STATE", "RETURN%", "SHARPE", "MAXDD%", "TRADES")
	for _, r := range results {
		if r.Err != nil && r.Result == nil {
			fmt.Printf("%-4d %-16s %-10s %s\n", r.Index, r.Config.Strategy, "ERROR", r.Err)
			continue
		}
		s := r.Result.Summary
		sharpe := "n/a"
		if s.SharpeDefined {
			sharpe = fmt.Sprintf("%.2f", s.Sharpe)
		}
		fmt.Printf("%-4d %-16s %-10s %10.2f %10s %10.2f %7d\n",
			r.Index, r.Config.Strategy, string(r.Result.State),
			s.TotalReturn*100, sharpe, s.MaxDrawdown*100, s.TradeCount)
	}
}

func printSummary(runID string, res *backtest.RunResult) {
	s := res.Summary
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Printf("║  BACKTEST %-34s ║\n", string(res.State))
	fmt.Println("╠══════════════════════════════════════════════╣")
	fmt.Printf("║  Run:               %-24s ║\n", runID)
	fmt.Printf("║  Bars processed:    %-24d ║\n", res.BarCount)
	fmt.Printf("║  Trades:            %-24d ║\n", s.TradeCount)
	fmt.Printf("║  Total return:      %-23.2f%% ║\n", s.TotalReturn*100)
	fmt.Printf("║  Annualized return: %-23.2f%% ║\n", s.AnnualizedReturn*100)
	fmt.Printf("║  Max drawdown:      %-23.2f%% ║\n", s.MaxDrawdown*100)
	if s.SharpeDefined {
		fmt.Printf("║  Sharpe:            %-24.2f ║\n", s.Sharpe)
	} else {
		fmt.Printf("║  Sharpe:            %-24s ║\n", "undefined")
	}
	fmt.Printf("║  Win rate:          %-23.2f%% ║\n", s.WinRate*100)
	fmt.Printf("║  Avg win / loss:    %-11.2f/ %-11.2f ║\n", s.AvgWin, s.AvgLoss)
	if len(res.Warnings) > 0 {
		fmt.Printf("║  Warnings:          %-24d ║\n", len(res.Warnings))
	}
	fmt.Println("╚══════════════════════════════════════════════╝")
	for _, w := range res.Warnings {
		fmt.Printf("  warning @ %s: %s\n", w.TS.Format("2006-01-02"), w.Message)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
