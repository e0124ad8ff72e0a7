package indicator

import (
	"errors"
	"fmt"

	"quantdb/internal/model"
)

// ErrZeroDenominator reports a ratio whose denominator is zero. Ratio
// indicators surface this explicitly instead of returning ±Inf.
var ErrZeroDenominator = errors.New("zero denominator")

// PriceToEarnings returns price divided by earnings per share.
func PriceToEarnings(price, earningsPerShare float64) (float64, error) {
	if earningsPerShare == 0 {
		return 0, fmt.Errorf("price_to_earnings: %w", ErrZeroDenominator)
	}
	return price / earningsPerShare, nil
}

// PriceToBook returns price divided by book value per share.
func PriceToBook(price, bookValuePerShare float64) (float64, error) {
	if bookValuePerShare == 0 {
		return 0, fmt.Errorf("price_to_book: %w", ErrZeroDenominator)
	}
	return price / bookValuePerShare, nil
}

// DividendYield returns the annual dividend as a fraction of price.
func DividendYield(annualDividend, price float64) (float64, error) {
	if price == 0 {
		return 0, fmt.Errorf("dividend_yield: %w", ErrZeroDenominator)
	}
	return annualDividend / price, nil
}

// DebtToEquity returns total debt divided by total equity.
func DebtToEquity(totalDebt, totalEquity float64) (float64, error) {
	if totalEquity == 0 {
		return 0, fmt.Errorf("debt_to_equity: %w", ErrZeroDenominator)
	}
	return totalDebt / totalEquity, nil
}

// ReturnOnEquity returns net income divided by total equity.
func ReturnOnEquity(netIncome, totalEquity float64) (float64, error) {
	if totalEquity == 0 {
		return 0, fmt.Errorf("return_on_equity: %w", ErrZeroDenominator)
	}
	return netIncome / totalEquity, nil
}

// ReturnOnAssets returns net income divided by total assets.
func ReturnOnAssets(netIncome, totalAssets float64) (float64, error) {
	if totalAssets == 0 {
		return 0, fmt.Errorf("return_on_assets: %w", ErrZeroDenominator)
	}
	return netIncome / totalAssets, nil
}

// ComputeFundamentalRatios derives ratio indicator values from fundamental
// snapshots, stamped at each snapshot's timestamp. A ratio whose inputs are
// absent or whose denominator is zero is simply not emitted: absence means
// "indicator undefined", never zero.
func ComputeFundamentalRatios(snaps []model.FundamentalSnapshot) []model.IndicatorValue {
	var out []model.IndicatorValue
	emit := func(sn model.FundamentalSnapshot, name string, v float64) {
		out = append(out, model.IndicatorValue{
			Name:   name,
			Symbol: sn.Symbol,
			TS:     sn.TS,
			Freq:   model.FreqDaily,
			Value:  v,
		})
	}

	for _, sn := range snaps {
		debt, okD := sn.Metric(model.MetricTotalDebt)
		equity, okE := sn.Metric(model.MetricTotalEquity)
		income, okI := sn.Metric(model.MetricNetIncome)
		assets, okA := sn.Metric(model.MetricTotalAssets)
		mcap, okC := sn.Metric(model.MetricMarketCap)

		// Reported price ratios win; otherwise derive them from the
		// aggregates. Price over EPS reduces to market cap over net income,
		// price over book value per share to market cap over total equity.
		if pe, ok := sn.Metric(model.MetricPERatio); ok {
			emit(sn, "PE_RATIO", pe)
		} else if okC && okI {
			if v, err := PriceToEarnings(mcap, income); err == nil {
				emit(sn, "PE_RATIO", v)
			}
		}
		if pb, ok := sn.Metric(model.MetricPBRatio); ok {
			emit(sn, "PB_RATIO", pb)
		} else if okC && okE {
			if v, err := PriceToBook(mcap, equity); err == nil {
				emit(sn, "PB_RATIO", v)
			}
		}
		if dy, ok := sn.Metric(model.MetricDividendYield); ok {
			emit(sn, "DIVIDEND_YIELD", dy)
		}

		if okD && okE {
			if v, err := DebtToEquity(debt, equity); err == nil {
				emit(sn, "DEBT_TO_EQUITY", v)
			}
		}
		if okI && okE {
			if v, err := ReturnOnEquity(income, equity); err == nil {
				emit(sn, "ROE", v)
			}
		}
		if okI && okA {
			if v, err := ReturnOnAssets(income, assets); err == nil {
				emit(sn, "ROA", v)
			}
		}
	}
	return out
}
