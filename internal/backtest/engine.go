// Package backtest replays a strategy's decisions over historical bars and
// produces a reproducible trade log, equity curve, and performance summary.
//
// One run is one sequential pass over the merged timeline of every traded
// symbol; the pass is never parallelized, because the no-lookahead and
// deterministic-fill guarantees depend on strict ordering. Independent runs
// (parameter sweeps) may execute concurrently when each owns its own
// strategy instance and portfolio; see Sweep.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"quantdb/internal/indicator"
	"quantdb/internal/model"
	"quantdb/internal/report"
	"quantdb/internal/strategy"
	"quantdb/internal/timeseries"
)

// State is the lifecycle state of a run.
type State string

const (
	StateInitialized State = "INITIALIZED"
	StateRunning     State = "RUNNING"
	StateCompleted   State = "COMPLETED"
	StateAborted     State = "ABORTED"
)

// RunResult is everything a finished (or aborted) run produced. On abort the
// logs hold everything accumulated up to the abort point and Err carries the
// cause; nothing is discarded.
type RunResult struct {
	State      State
	Trades     []model.Trade
	Equity     []model.EquityPoint
	Indicators []model.IndicatorValue
	Warnings   []model.RunEvent
	Summary    report.Summary
	BarCount   int
	Err        error
}

// pendingIntent is an intent waiting for its symbol's next bar under the
// nextOpen lag policy.
type pendingIntent struct {
	intent   model.OrderIntent
	issuedAt time.Time
}

// runner holds the mutable state of one executing run.
type runner struct {
	cfg      RunConfig
	store    *timeseries.Store
	strat    strategy.Strategy
	indBatch *indicator.Engine

	pf      *portfolio
	sctx    *simContext
	pending map[string][]pendingIntent
	symbols map[string]bool

	result *RunResult
}

// Run executes one backtest of strat over the store's bars and returns the
// result. The returned error is non-nil exactly when the run aborted or the
// configuration was invalid; on abort the result still carries the partial
// logs. Cancellation of ctx is honored between timeline steps.
func Run(ctx context.Context, cfg RunConfig, store *timeseries.Store, strat strategy.Strategy) (*RunResult, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	symbols := cfg.Symbols
	if len(symbols) == 0 {
		symbols = store.Symbols()
	}
	timeline, err := store.Timeline(symbols...)
	if err != nil {
		return nil, err
	}

	configs := unionIndicatorConfigs(cfg.Indicators, strat)
	indEng, err := indicator.NewEngine(indicator.NewRegistry(), model.FreqDaily, configs)
	if err != nil {
		return nil, err
	}

	r := &runner{
		cfg:      cfg,
		store:    store,
		strat:    strat,
		indBatch: indEng,
		pf:       newPortfolio(cfg.StartingCash),
		pending:  make(map[string][]pendingIntent),
		symbols:  make(map[string]bool, len(symbols)),
		result:   &RunResult{State: StateInitialized, BarCount: timeline.BarCount()},
	}
	for _, s := range symbols {
		r.symbols[s] = true
	}
	r.sctx = &simContext{
		store:  store,
		pf:     r.pf,
		hist:   make(map[string][]model.Bar),
		latest: make(map[string]model.IndicatorValue),
	}

	return r.run(ctx, timeline)
}

func (r *runner) run(ctx context.Context, timeline *timeseries.Timeline) (*RunResult, error) {
	res := r.result
	res.State = StateRunning
	r.strat.OnStart(r.sctx)

	// An empty timeline completes immediately: one equity point worth the
	// starting cash, no trades.
	if timeline.Len() == 0 {
		res.Equity = append(res.Equity, model.EquityPoint{Equity: r.pf.cash})
		r.strat.OnEnd(r.sctx)
		res.State = StateCompleted
		res.Summary = report.Compute(res.Equity, res.Trades, r.cfg.PeriodsPerYear, r.cfg.RiskFreeRate)
		return res, nil
	}

	for i := 0; i < timeline.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return r.abort(fmt.Errorf("run canceled before step %d: %w", i, err))
		}

		step := timeline.Step(i)
		r.sctx.now = step.TS

		// Fills due at this step's opens happen before anything else: the
		// strategy sees its pending orders already executed when OnBar runs.
		for _, bar := range step.Bars {
			if err := r.fillPending(bar); err != nil {
				return r.abort(err)
			}
		}

		for _, bar := range step.Bars {
			r.sctx.hist[bar.Symbol] = append(r.sctx.hist[bar.Symbol], bar)
			r.pf.markClose(bar)
		}

		// Indicator values due at this timestamp, delivered before OnBar.
		for _, bar := range step.Bars {
			for _, v := range r.indBatch.Process(bar) {
				res.Indicators = append(res.Indicators, v)
				r.sctx.latest[v.Name+":"+v.Symbol] = v
				r.strat.OnIndicator(r.sctx, v)
			}
		}

		for _, bar := range step.Bars {
			for _, intent := range r.strat.OnBar(r.sctx, bar) {
				if err := r.acceptIntent(intent, bar); err != nil {
					return r.abort(err)
				}
			}
		}

		res.Equity = append(res.Equity, model.EquityPoint{TS: step.TS, Equity: r.pf.equity()})
	}

	lastTS := timeline.Step(timeline.Len() - 1).TS
	r.dropPending(lastTS)
	if r.cfg.CloseOnEnd {
		r.pf.closeAll(lastTS)
		// The close-out changes final equity; restate the last point.
		res.Equity[len(res.Equity)-1] = model.EquityPoint{TS: lastTS, Equity: r.pf.equity()}
	}

	r.strat.OnEnd(r.sctx)
	res.State = StateCompleted
	res.Trades = r.pf.trades()
	res.Summary = report.Compute(res.Equity, res.Trades, r.cfg.PeriodsPerYear, r.cfg.RiskFreeRate)
	return res, nil
}

// acceptIntent validates an intent issued by the strategy and either queues
// it (nextOpen) or fills it at the current bar's close (sameClose).
func (r *runner) acceptIntent(intent model.OrderIntent, bar model.Bar) error {
	if !r.symbols[intent.Symbol] {
		return &UnknownSymbolError{Symbol: intent.Symbol, TS: bar.TS}
	}
	if intent.Qty <= 0 {
		r.warn(bar.TS, fmt.Sprintf("dropping %s intent for %s with non-positive qty %d",
			intent.Side, intent.Symbol, intent.Qty))
		return nil
	}

	if r.cfg.ExecutionLag == LagSameClose {
		return r.fill(intent, bar.Close, bar.TS)
	}
	r.pending[intent.Symbol] = append(r.pending[intent.Symbol], pendingIntent{intent: intent, issuedAt: bar.TS})
	return nil
}

// fillPending executes every queued intent for the bar's symbol at its open.
func (r *runner) fillPending(bar model.Bar) error {
	queue := r.pending[bar.Symbol]
	if len(queue) == 0 {
		return nil
	}
	delete(r.pending, bar.Symbol)
	for _, p := range queue {
		if err := r.fill(p.intent, bar.Open, bar.TS); err != nil {
			return err
		}
	}
	return nil
}

// fill resolves one intent into a portfolio change at the given raw price,
// applying slippage and commission. Funds and shorting constraints are
// checked first; a violating fill aborts unless reject-and-continue is
// configured, in which case the intent is dropped with a warning.
func (r *runner) fill(intent model.OrderIntent, rawPrice float64, ts time.Time) error {
	price := fillPrice(intent.Side, rawPrice, r.cfg.SlippageBps)
	commission := r.cfg.Commission.Charge(intent.Qty)
	pos := r.pf.position(intent.Symbol)

	if reason, ok := r.checkConstraints(intent, pos, price, commission); !ok {
		if r.cfg.RejectAndContinue {
			r.warn(ts, fmt.Sprintf("rejected %s %d %s at %.4f: %s",
				intent.Side, intent.Qty, intent.Symbol, price, reason))
			return nil
		}
		required := price*float64(intent.Qty) + commission
		return &InsufficientFundsError{
			Symbol: intent.Symbol, TS: ts,
			Required: required, Available: r.pf.cash,
		}
	}

	r.pf.applyFill(intent.Symbol, intent.Side, intent.Qty, price, commission, ts)
	return nil
}

// checkConstraints verifies an intended fill against cash and shorting rules.
func (r *runner) checkConstraints(intent model.OrderIntent, pos model.Position, price, commission float64) (reason string, ok bool) {
	if intent.Side == model.SideBuy {
		required := price*float64(intent.Qty) + commission
		if required > r.pf.cash {
			return fmt.Sprintf("insufficient cash: required %.2f, available %.2f", required, r.pf.cash), false
		}
		return "", true
	}
	if !r.cfg.AllowShort && intent.Qty > pos.Qty {
		return fmt.Sprintf("sell of %d exceeds held %d with shorting disabled", intent.Qty, pos.Qty), false
	}
	return "", true
}

// dropPending discards intents still queued when the timeline ends, with a
// warning each so the caller can see what never executed.
func (r *runner) dropPending(ts time.Time) {
	for _, sym := range sortedKeys(r.pending) {
		for _, p := range r.pending[sym] {
			r.warn(ts, fmt.Sprintf("timeline ended with pending %s %d %s issued at %s",
				p.intent.Side, p.intent.Qty, sym, p.issuedAt.Format(time.RFC3339)))
		}
	}
	r.pending = make(map[string][]pendingIntent)
}

// abort freezes the run: the logs keep everything accumulated so far, the
// state becomes Aborted, and the cause is recorded on the result and
// returned. No equity point is appended for the step that failed.
func (r *runner) abort(cause error) (*RunResult, error) {
	res := r.result
	r.strat.OnEnd(r.sctx)
	res.State = StateAborted
	res.Err = cause
	res.Trades = r.pf.trades()
	res.Summary = report.Compute(res.Equity, res.Trades, r.cfg.PeriodsPerYear, r.cfg.RiskFreeRate)
	return res, cause
}

func (r *runner) warn(ts time.Time, msg string) {
	r.result.Warnings = append(r.result.Warnings, model.RunEvent{
		Type: model.RunEventWarning, TS: ts, Message: msg,
	})
}

// unionIndicatorConfigs merges the run configuration's indicator list with
// whatever the strategy declares it requires, deduplicated.
func unionIndicatorConfigs(configured []indicator.Config, strat strategy.Strategy) []indicator.Config {
	out := make([]indicator.Config, 0, len(configured))
	seen := make(map[indicator.Config]bool)
	add := func(cfgs []indicator.Config) {
		for _, c := range cfgs {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	add(configured)
	if req, ok := strat.(strategy.IndicatorRequirer); ok {
		add(req.RequiredIndicators())
	}
	return out
}

func sortedKeys(m map[string][]pendingIntent) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
