package indengine

import (
	"context"
	"log"
	"sort"
	"time"

	"quantdb/internal/indicator"
	"quantdb/internal/model"
	"quantdb/internal/timeseries"
)

// recomputeAll runs one recompute pass: for every symbol and frequency, feed
// the bars written since the last pass through the warm incremental engine,
// persist the new values, and queue them for publishing.
func (svc *Service) recomputeAll(ctx context.Context) {
	start := time.Now()

	symbols := svc.cfg.Symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = svc.sqlReader.Symbols()
		if err != nil {
			log.Printf("[indengine] recompute: symbol discovery failed: %v", err)
			svc.prom.RecomputeFailures.Inc()
			return
		}
	}
	sort.Strings(symbols)

	total := 0
	failed := false
	for _, symbol := range symbols {
		bars, err := svc.sqlReader.ReadBars(symbol, time.Time{}, time.Time{})
		if err != nil {
			log.Printf("[indengine] recompute: read bars for %s: %v", symbol, err)
			failed = true
			continue
		}

		for _, freq := range svc.cfg.Frequencies {
			series := bars
			if freq == model.FreqWeekly {
				series = timeseries.ResampleWeekly(bars)
				// The last week may still be accruing daily bars; hold it
				// back so a half-formed close never enters engine state.
				if len(series) > 0 {
					series = series[:len(series)-1]
				}
			}

			cutoff := svc.lastSeen[freq][symbol]
			values := svc.processNew(freq, symbol, series)
			values = append(values, returnValues(freq, symbol, series, cutoff)...)
			if len(values) == 0 {
				continue
			}

			if err := svc.sqlWriter.WriteIndicators(ctx, values); err != nil {
				log.Printf("[indengine] recompute: persist %d values for %s/%s: %v",
					len(values), symbol, freq, err)
				failed = true
			}
			svc.queueForPublish(values)
			svc.prom.IndicatorsComputed.WithLabelValues(string(freq)).Add(float64(len(values)))
			total += len(values)
		}

		snaps, err := svc.sqlReader.ReadFundamentals(symbol)
		if err != nil {
			log.Printf("[indengine] recompute: read fundamentals for %s: %v", symbol, err)
			failed = true
			continue
		}
		if values := svc.newFundamentalRatios(symbol, snaps); len(values) > 0 {
			if err := svc.sqlWriter.WriteIndicators(ctx, values); err != nil {
				log.Printf("[indengine] recompute: persist %d ratio values for %s: %v",
					len(values), symbol, err)
				failed = true
			}
			svc.queueForPublish(values)
			svc.prom.IndicatorsComputed.WithLabelValues(string(model.FreqDaily)).Add(float64(len(values)))
			total += len(values)
		}
	}

	if failed {
		svc.prom.RecomputeFailures.Inc()
	}
	svc.prom.RecomputeDur.Observe(time.Since(start).Seconds())
	svc.health.SetLastRecompute(time.Now())
	log.Printf("[indengine] recompute pass: %d symbols, %d new values in %v",
		len(symbols), total, time.Since(start))
}

// processNew steps the engine for freq with every bar after the symbol's
// last-seen timestamp and returns the emitted values.
func (svc *Service) processNew(freq model.Frequency, symbol string, bars []model.Bar) []model.IndicatorValue {
	eng := svc.engines[freq]
	seen := svc.lastSeen[freq]
	cutoff := seen[symbol]

	var out []model.IndicatorValue
	for _, b := range bars {
		if !b.TS.After(cutoff) {
			continue
		}
		out = append(out, eng.Process(b)...)
		cutoff = b.TS
	}
	seen[symbol] = cutoff
	return out
}

// newFundamentalRatios derives ratio values from snapshots newer than the
// symbol's fundamental high-water mark and advances the mark.
func (svc *Service) newFundamentalRatios(symbol string, snaps []model.FundamentalSnapshot) []model.IndicatorValue {
	cutoff := svc.fundSeen[symbol]
	var fresh []model.FundamentalSnapshot
	for _, sn := range snaps {
		if sn.TS.After(cutoff) {
			fresh = append(fresh, sn)
			cutoff = sn.TS
		}
	}
	svc.fundSeen[symbol] = cutoff
	return indicator.ComputeFundamentalRatios(fresh)
}

// returnValues derives the RETURN series for bars after cutoff. The previous
// close comes from the full series, so the first bar after a warm restart
// still gets its return.
func returnValues(freq model.Frequency, symbol string, series []model.Bar, cutoff time.Time) []model.IndicatorValue {
	rets := timeseries.Returns(series)
	var out []model.IndicatorValue
	for i, r := range rets {
		b := series[i+1]
		if !b.TS.After(cutoff) {
			continue
		}
		out = append(out, model.IndicatorValue{
			Name:   "RETURN",
			Symbol: symbol,
			TS:     b.TS,
			Freq:   freq,
			Value:  r,
		})
	}
	return out
}

// queueForPublish hands values to the publish loop via the ring buffer.
func (svc *Service) queueForPublish(values []model.IndicatorValue) {
	for _, v := range values {
		if !svc.ring.Push(v) {
			svc.prom.QueueOverflow.Inc()
		}
	}
}

// publishLoop drains the ring buffer and pushes values to Redis and the
// WebSocket hub. It is the single consumer of the ring.
func (svc *Service) publishLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	batch := make([]model.IndicatorValue, 0, 512)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch = batch[:0]
			for len(batch) < cap(batch) {
				v, ok := svc.ring.Pop()
				if !ok {
					break
				}
				batch = append(batch, v)
			}
			if len(batch) == 0 {
				continue
			}

			for _, v := range batch {
				svc.hub.BroadcastIndicator(v)
			}

			if svc.publisher != nil {
				if err := svc.publisher.PublishIndicators(ctx, batch); err != nil {
					svc.prom.PublishFailures.Inc()
					log.Printf("[indengine] publish %d values: %v", len(batch), err)
				}
				svc.prom.BreakerState.Set(float64(svc.publisher.BreakerState()))
			}
		}
	}
}
