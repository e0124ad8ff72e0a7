// Package report computes summary performance metrics from a finished run's
// equity curve and trade log. Everything here is a pure function over those
// two sequences; nothing reaches back into the engine.
package report

import (
	"math"

	"quantdb/internal/model"
)

// Summary holds the derived performance metrics of one run.
//
// Sharpe is only meaningful when SharpeDefined is true: a curve with fewer
// than two points, or one with zero return volatility, has no defined Sharpe
// ratio and is flagged rather than reported as zero.
type Summary struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	MaxDrawdown      float64 `json:"max_drawdown"` // peak-to-trough fraction, >= 0
	Sharpe           float64 `json:"sharpe"`
	SharpeDefined    bool    `json:"sharpe_defined"`
	WinRate          float64 `json:"win_rate"`
	AvgWin           float64 `json:"avg_win"`
	AvgLoss          float64 `json:"avg_loss"` // mean losing P&L, <= 0
	TradeCount       int     `json:"trade_count"`
	Wins             int     `json:"wins"`
	Losses           int     `json:"losses"`
}

// Compute derives the summary from an equity curve and trade log.
// periodsPerYear annualizes returns and Sharpe (252 for daily bars);
// riskFreeRate is the annual risk-free rate used for the Sharpe excess.
func Compute(equity []model.EquityPoint, trades []model.Trade, periodsPerYear int, riskFreeRate float64) Summary {
	s := Summary{}

	if len(equity) > 0 && equity[0].Equity != 0 {
		s.TotalReturn = equity[len(equity)-1].Equity/equity[0].Equity - 1
	}
	s.AnnualizedReturn = annualize(s.TotalReturn, len(equity)-1, periodsPerYear)
	s.MaxDrawdown = MaxDrawdown(equity)

	rets := periodReturns(equity)
	s.Sharpe, s.SharpeDefined = sharpe(rets, periodsPerYear, riskFreeRate)

	var winSum, lossSum float64
	for _, t := range trades {
		if t.Open() {
			continue
		}
		s.TradeCount++
		switch {
		case t.RealizedPnL > 0:
			s.Wins++
			winSum += t.RealizedPnL
		case t.RealizedPnL < 0:
			s.Losses++
			lossSum += t.RealizedPnL
		}
	}
	if s.TradeCount > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TradeCount)
	}
	if s.Wins > 0 {
		s.AvgWin = winSum / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = lossSum / float64(s.Losses)
	}
	return s
}

// MaxDrawdown returns the largest peak-to-trough decline as a fraction of the
// peak. A curve with at most one point, or one that never declines, yields 0.
func MaxDrawdown(equity []model.EquityPoint) float64 {
	var peak, maxDD float64
	for i, p := range equity {
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// annualize compounds a total return observed over `periods` periods to a
// full year of periodsPerYear. Fewer than one period yields 0.
func annualize(total float64, periods, periodsPerYear int) float64 {
	if periods <= 0 || periodsPerYear <= 0 {
		return 0
	}
	return math.Pow(1+total, float64(periodsPerYear)/float64(periods)) - 1
}

// periodReturns converts the equity curve to simple per-period returns.
func periodReturns(equity []model.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, equity[i].Equity/prev-1)
	}
	return rets
}

// sharpe computes the annualized Sharpe ratio over per-period returns.
// ok is false when the ratio is undefined: fewer than two returns, or zero
// volatility.
func sharpe(rets []float64, periodsPerYear int, riskFreeRate float64) (value float64, ok bool) {
	if len(rets) < 2 || periodsPerYear <= 0 {
		return 0, false
	}

	rfPeriod := riskFreeRate / float64(periodsPerYear)
	var sum float64
	for _, r := range rets {
		sum += r - rfPeriod
	}
	mean := sum / float64(len(rets))

	var variance float64
	for _, r := range rets {
		d := r - rfPeriod - mean
		variance += d * d
	}
	variance /= float64(len(rets))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0, false
	}
	return mean / std * math.Sqrt(float64(periodsPerYear)), true
}
