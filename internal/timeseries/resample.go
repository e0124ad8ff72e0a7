package timeseries

import "quantdb/internal/model"

// ResampleWeekly aggregates daily bars into weekly bars grouped by ISO week:
// open of the first bar, max high, min low, close and timestamp of the last
// bar, summed volume. Labelling with the last bar's timestamp keeps the
// weekly bar fully knowable at its own stamp, so weekly indicators stay free
// of lookahead.
func ResampleWeekly(bars []model.Bar) []model.Bar {
	var out []model.Bar
	var cur model.Bar
	var curYear, curWeek int
	started := false

	for _, b := range bars {
		y, w := b.TS.ISOWeek()
		if !started || y != curYear || w != curWeek {
			if started {
				out = append(out, cur)
			}
			cur = b
			curYear, curWeek = y, w
			started = true
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
		cur.TS = b.TS
	}
	if started {
		out = append(out, cur)
	}
	return out
}

// Returns computes simple close-over-close returns; the output has one
// fewer element than the input.
func Returns(bars []model.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		out = append(out, bars[i].Close/bars[i-1].Close-1)
	}
	return out
}
