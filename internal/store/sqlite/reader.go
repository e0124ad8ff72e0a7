package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"quantdb/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to stored bars and fundamentals. It opens
// its own connections so concurrent backtests never contend with the writer.
type Reader struct {
	db *sql.DB
}

var (
	_ model.BarReader         = (*Reader)(nil)
	_ model.FundamentalReader = (*Reader)(nil)
)

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars returns the bars for one symbol within [start, end], ascending by
// timestamp. A zero start or end leaves that bound open.
func (r *Reader) ReadBars(symbol string, start, end time.Time) ([]model.Bar, error) {
	startTS := int64(0)
	if !start.IsZero() {
		startTS = start.Unix()
	}
	endTS := int64(1<<62 - 1)
	if !end.IsZero() {
		endTS = end.Unix()
	}

	rows, err := r.db.Query(`
		SELECT symbol, ts, open, high, low, close, volume
		FROM stock_data
		WHERE symbol = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, symbol, startTS, endTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query stock_data: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&b.Symbol, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan stock_data: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Symbols lists every symbol with stored bars, ascending.
func (r *Reader) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM stock_data ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// ReadFundamentals returns every fundamental snapshot for a symbol,
// ascending by timestamp. NULL columns are absent from the metric map, so
// as-of lookups see "undefined" rather than zero.
func (r *Reader) ReadFundamentals(symbol string) ([]model.FundamentalSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT ts, pe_ratio, pb_ratio, dividend_yield, market_cap,
		       total_debt, total_equity, net_income, total_assets
		FROM fundamental_data
		WHERE symbol = ?
		ORDER BY ts ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite query fundamental_data: %w", err)
	}
	defer rows.Close()

	cols := []string{
		model.MetricPERatio, model.MetricPBRatio, model.MetricDividendYield,
		model.MetricMarketCap, model.MetricTotalDebt, model.MetricTotalEquity,
		model.MetricNetIncome, model.MetricTotalAssets,
	}

	var snaps []model.FundamentalSnapshot
	for rows.Next() {
		var tsUnix int64
		vals := make([]sql.NullFloat64, len(cols))
		dest := make([]interface{}, 0, len(cols)+1)
		dest = append(dest, &tsUnix)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("sqlite scan fundamental_data: %w", err)
		}

		sn := model.FundamentalSnapshot{
			Symbol:  symbol,
			TS:      time.Unix(tsUnix, 0).UTC(),
			Metrics: make(map[string]float64, len(cols)),
		}
		for i, v := range vals {
			if v.Valid {
				sn.Metrics[cols[i]] = v.Float64
			}
		}
		snaps = append(snaps, sn)
	}
	return snaps, rows.Err()
}

// ReadIndicators returns the stored values of one indicator series,
// ascending by timestamp.
func (r *Reader) ReadIndicators(name, symbol string, freq model.Frequency) ([]model.IndicatorValue, error) {
	rows, err := r.db.Query(`
		SELECT name, symbol, value, ts, frequency
		FROM indicators
		WHERE name = ? AND symbol = ? AND frequency = ?
		ORDER BY ts ASC
	`, name, symbol, string(freq))
	if err != nil {
		return nil, fmt.Errorf("sqlite query indicators: %w", err)
	}
	defer rows.Close()

	var values []model.IndicatorValue
	for rows.Next() {
		var v model.IndicatorValue
		var tsUnix int64
		var freqStr string
		if err := rows.Scan(&v.Name, &v.Symbol, &v.Value, &tsUnix, &freqStr); err != nil {
			return nil, fmt.Errorf("sqlite scan indicators: %w", err)
		}
		v.TS = time.Unix(tsUnix, 0).UTC()
		v.Freq = model.Frequency(freqStr)
		values = append(values, v)
	}
	return values, rows.Err()
}

// LastBarTimestamp returns the newest stored bar timestamp for a symbol, or
// zero when none exist.
func (r *Reader) LastBarTimestamp(symbol string) (time.Time, error) {
	var ts sql.NullInt64
	err := r.db.QueryRow(`SELECT MAX(ts) FROM stock_data WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
