// Package sqlite persists bars, indicator values, fundamentals, and finished
// backtest runs. One writer owns the database; readers open their own
// connections. All writes go through batched transactions with upsert
// semantics, so re-running a computation overwrites rather than duplicates.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"quantdb/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to the database file, e.g. "data/quantdb.db"
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB
}

var (
	_ model.BarWriter       = (*Writer)(nil)
	_ model.IndicatorWriter = (*Writer)(nil)
	_ model.RunWriter       = (*Writer)(nil)
)

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database in WAL mode, creates the schema, and returns a
// writer.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stock_data (
			symbol  TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  INTEGER NOT NULL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS indicators (
			name      TEXT    NOT NULL,
			symbol    TEXT    NOT NULL,
			value     REAL    NOT NULL,
			ts        INTEGER NOT NULL,
			frequency TEXT    NOT NULL,
			PRIMARY KEY (name, symbol, ts, frequency)
		);

		CREATE TABLE IF NOT EXISTS fundamental_data (
			symbol         TEXT    NOT NULL,
			ts             INTEGER NOT NULL,
			pe_ratio       REAL,
			pb_ratio       REAL,
			dividend_yield REAL,
			market_cap     REAL,
			total_debt     REAL,
			total_equity   REAL,
			net_income     REAL,
			total_assets   REAL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS runs (
			id            TEXT PRIMARY KEY,
			strategy      TEXT    NOT NULL,
			symbols       TEXT    NOT NULL,
			state         TEXT    NOT NULL,
			starting_cash REAL    NOT NULL,
			final_equity  REAL    NOT NULL,
			bar_count     INTEGER NOT NULL,
			created_at    INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS run_trades (
			run_id       TEXT    NOT NULL,
			seq          INTEGER NOT NULL,
			symbol       TEXT    NOT NULL,
			entry_ts     INTEGER NOT NULL,
			exit_ts      INTEGER,
			entry_price  REAL    NOT NULL,
			exit_price   REAL,
			qty          INTEGER NOT NULL,
			realized_pnl REAL,
			PRIMARY KEY (run_id, seq)
		);

		CREATE TABLE IF NOT EXISTS run_equity (
			run_id TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			equity REAL    NOT NULL,
			PRIMARY KEY (run_id, ts)
		);
	`)
	return err
}

// WriteBars upserts a batch of bars in one transaction.
func (w *Writer) WriteBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO stock_data (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(b.Symbol, b.TS.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar %s@%s: %w", b.Symbol, b.TS, err)
		}
	}
	return tx.Commit()
}

// WriteIndicators upserts indicator values keyed by
// (name, symbol, timestamp, frequency) in one transaction.
func (w *Writer) WriteIndicators(ctx context.Context, values []model.IndicatorValue) error {
	if len(values) == 0 {
		return nil
	}
	start := time.Now()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO indicators (name, symbol, value, ts, frequency)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, v := range values {
		if _, err := stmt.Exec(v.Name, v.Symbol, v.Value, v.TS.Unix(), string(v.Freq)); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert indicator %s: %w", v.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[sqlite] committed %d indicator values in %v", len(values), time.Since(start))
	return nil
}

// WriteFundamentals upserts fundamental snapshots. Metrics map onto the
// fixed column set; unknown metric names are ignored.
func (w *Writer) WriteFundamentals(ctx context.Context, snaps []model.FundamentalSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO fundamental_data
			(symbol, ts, pe_ratio, pb_ratio, dividend_yield, market_cap,
			 total_debt, total_equity, net_income, total_assets)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, sn := range snaps {
		if _, err := stmt.Exec(sn.Symbol, sn.TS.Unix(),
			nullMetric(sn, model.MetricPERatio),
			nullMetric(sn, model.MetricPBRatio),
			nullMetric(sn, model.MetricDividendYield),
			nullMetric(sn, model.MetricMarketCap),
			nullMetric(sn, model.MetricTotalDebt),
			nullMetric(sn, model.MetricTotalEquity),
			nullMetric(sn, model.MetricNetIncome),
			nullMetric(sn, model.MetricTotalAssets),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert fundamental %s@%s: %w", sn.Symbol, sn.TS, err)
		}
	}
	return tx.Commit()
}

// SaveRun persists a run header with its full trade log and equity curve in
// one transaction.
func (w *Writer) SaveRun(ctx context.Context, run model.RunRecord, trades []model.Trade, equity []model.EquityPoint) error {
	symbols, err := json.Marshal(run.Symbols)
	if err != nil {
		return fmt.Errorf("marshal run symbols: %w", err)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO runs
			(id, strategy, symbols, state, starting_cash, final_equity, bar_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Strategy, string(symbols), run.State,
		run.StartingCash, run.FinalEquity, run.BarCount, run.CreatedAt.Unix()); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite insert run %s: %w", run.ID, err)
	}

	tstmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO run_trades
			(run_id, seq, symbol, entry_ts, exit_ts, entry_price, exit_price, qty, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer tstmt.Close()
	for i, t := range trades {
		var exitTS interface{}
		if !t.ExitTS.IsZero() {
			exitTS = t.ExitTS.Unix()
		}
		if _, err := tstmt.Exec(run.ID, i, t.Symbol, t.EntryTS.Unix(), exitTS,
			t.EntryPrice, t.ExitPrice, t.Qty, t.RealizedPnL); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert trade %d of run %s: %w", i, run.ID, err)
		}
	}

	estmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO run_equity (run_id, ts, equity) VALUES (?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer estmt.Close()
	for _, p := range equity {
		if _, err := estmt.Exec(run.ID, p.TS.Unix(), p.Equity); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert equity point of run %s: %w", run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[sqlite] saved run %s: %d trades, %d equity points", run.ID, len(trades), len(equity))
	return nil
}

func nullMetric(sn model.FundamentalSnapshot, name string) interface{} {
	if v, ok := sn.Metric(name); ok {
		return v
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
