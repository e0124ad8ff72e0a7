package backtest

import (
	"context"
	"sync"

	"quantdb/internal/strategy"
	"quantdb/internal/timeseries"
)

// SweepResult pairs one sweep configuration with its run outcome. Index is
// the configuration's position in the input slice, so results keep a stable
// order regardless of which worker finished first.
type SweepResult struct {
	Index  int
	Config RunConfig
	Result *RunResult
	Err    error
}

// Sweep runs every configuration against the shared store, at most workers
// at a time. Each run gets its own strategy instance built from the shared
// registry, so no run observes another's state; the store's series are
// immutable and shared read-only. Results come back indexed in input order.
func Sweep(ctx context.Context, cfgs []RunConfig, store *timeseries.Store, reg *strategy.Registry, workers int) []SweepResult {
	if workers <= 0 {
		workers = 4
	}
	if workers > len(cfgs) {
		workers = len(cfgs)
	}

	results := make([]SweepResult, len(cfgs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				cfg := cfgs[i]
				res := SweepResult{Index: i, Config: cfg}

				strat, err := reg.New(cfg.Strategy, cfg.StrategyParams)
				if err != nil {
					res.Err = err
				} else {
					res.Result, res.Err = Run(ctx, cfg, store, strat)
				}
				results[i] = res
			}
		}()
	}

	for i := range cfgs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
