package storage

// sqlite.go — engine persistence.
//
// The engine's writes here are its liveness surface: fills, merges, and
// risk events as they happen, one position snapshot per poll reconcile,
// and one summary row per day. Old rows are pruned on startup.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polymaker/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fills (
    trade_id   TEXT PRIMARY KEY,
    order_id   TEXT NOT NULL,
    token_id   TEXT NOT NULL,
    side       TEXT NOT NULL,
    price      REAL NOT NULL,
    size       REAL NOT NULL,
    filled_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS merges (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    condition_id  TEXT NOT NULL,
    amount        REAL NOT NULL,
    tx_hash       TEXT,
    gas_cost_usd  REAL NOT NULL DEFAULT 0,
    usdc_received REAL NOT NULL DEFAULT 0,
    success       INTEGER NOT NULL DEFAULT 0,
    error         TEXT,
    executed_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    type         TEXT NOT NULL,
    condition_id TEXT,
    token_id     TEXT,
    detail       TEXT,
    occurred_at  DATETIME NOT NULL
);

-- One row per token per poll reconcile; the latest snapshot_at wins.
CREATE TABLE IF NOT EXISTS position_snapshots (
    snapshot_at DATETIME NOT NULL,
    token_id    TEXT NOT NULL,
    size        REAL NOT NULL,
    avg_price   REAL NOT NULL,
    PRIMARY KEY (snapshot_at, token_id)
);

CREATE TABLE IF NOT EXISTS daily_summaries (
    date             TEXT PRIMARY KEY,
    orders_placed    INTEGER NOT NULL DEFAULT 0,
    orders_cancelled INTEGER NOT NULL DEFAULT 0,
    fills            INTEGER NOT NULL DEFAULT 0,
    merges           INTEGER NOT NULL DEFAULT 0,
    merge_volume     REAL NOT NULL DEFAULT 0,
    stop_losses      INTEGER NOT NULL DEFAULT 0,
    realized_pnl     REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_fills_at      ON fills(filled_at DESC);
CREATE INDEX IF NOT EXISTS idx_merges_at     ON merges(executed_at DESC);
CREATE INDEX IF NOT EXISTS idx_risk_at       ON risk_events(occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_at  ON position_snapshots(snapshot_at DESC);
`

const (
	retentionFills     = 90 * 24 * time.Hour
	retentionSnapshots = 14 * 24 * time.Hour
)

// SQLiteStorage implements ports.EngineStorage using SQLite (pure Go, no CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at the given path,
// applies the schema, and prunes old rows.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db}
	if err := s.ApplySchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	s.pruneOld(context.Background())
	return s, nil
}

// ApplySchema creates the tables if missing.
func (s *SQLiteStorage) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage.ApplySchema: %w", err)
	}
	return nil
}

// SaveFill inserts a fill. Re-delivered trades are no-ops.
func (s *SQLiteStorage) SaveFill(ctx context.Context, fill domain.Fill) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fills (trade_id, order_id, token_id, side, price, size, filled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trade_id) DO NOTHING`,
		fill.TradeID, fill.OrderID, fill.TokenID, string(fill.Side),
		fill.Price, fill.Size, fill.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveFill: %w", err)
	}
	return nil
}

// GetFills returns fills in [from, to), newest first.
func (s *SQLiteStorage) GetFills(ctx context.Context, from, to time.Time) ([]domain.Fill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trade_id, order_id, token_id, side, price, size, filled_at
		FROM fills
		WHERE filled_at >= ? AND filled_at < ?
		ORDER BY filled_at DESC`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.GetFills: %w", err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var side string
		if err := rows.Scan(&f.TradeID, &f.OrderID, &f.TokenID, &side, &f.Price, &f.Size, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("storage.GetFills: scan: %w", err)
		}
		f.Side = domain.Side(side)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// SaveMergeResult records one merge attempt, successful or not.
func (s *SQLiteStorage) SaveMergeResult(ctx context.Context, result domain.MergeResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merges (condition_id, amount, tx_hash, gas_cost_usd, usdc_received, success, error, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ConditionID, result.Amount, result.TxHash, result.GasCostUSD,
		result.USDCReceived, boolToInt(result.Success), result.Error, result.ExecutedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveMergeResult: %w", err)
	}
	return nil
}

// GetMergeResults returns all merge attempts, newest first.
func (s *SQLiteStorage) GetMergeResults(ctx context.Context) ([]domain.MergeResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT condition_id, amount, tx_hash, gas_cost_usd, usdc_received, success, error, executed_at
		FROM merges
		ORDER BY executed_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.GetMergeResults: %w", err)
	}
	defer rows.Close()

	var results []domain.MergeResult
	for rows.Next() {
		var r domain.MergeResult
		var success int
		var txHash, errMsg sql.NullString
		if err := rows.Scan(&r.ConditionID, &r.Amount, &txHash, &r.GasCostUSD, &r.USDCReceived, &success, &errMsg, &r.ExecutedAt); err != nil {
			return nil, fmt.Errorf("storage.GetMergeResults: scan: %w", err)
		}
		r.TxHash = txHash.String
		r.Error = errMsg.String
		r.Success = success != 0
		results = append(results, r)
	}
	return results, rows.Err()
}

// SaveRiskEvent records a stop-loss or an expired lease.
func (s *SQLiteStorage) SaveRiskEvent(ctx context.Context, ev domain.RiskEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_events (type, condition_id, token_id, detail, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(ev.Type), ev.ConditionID, ev.TokenID, ev.Detail, ev.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRiskEvent: %w", err)
	}
	return nil
}

// GetRiskEvents returns risk events in [from, to), newest first.
func (s *SQLiteStorage) GetRiskEvents(ctx context.Context, from, to time.Time) ([]domain.RiskEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, condition_id, token_id, detail, occurred_at
		FROM risk_events
		WHERE occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at DESC`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRiskEvents: %w", err)
	}
	defer rows.Close()

	var events []domain.RiskEvent
	for rows.Next() {
		var ev domain.RiskEvent
		var typ string
		var cond, token, detail sql.NullString
		if err := rows.Scan(&ev.ID, &typ, &cond, &token, &detail, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("storage.GetRiskEvents: scan: %w", err)
		}
		ev.Type = domain.RiskEventType(typ)
		ev.ConditionID = cond.String
		ev.TokenID = token.String
		ev.Detail = detail.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// SavePositionSnapshot writes the reconciled positions for one poll.
func (s *SQLiteStorage) SavePositionSnapshot(ctx context.Context, at time.Time, positions []domain.Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SavePositionSnapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO position_snapshots (snapshot_at, token_id, size, avg_price)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(snapshot_at, token_id) DO UPDATE SET
			size      = excluded.size,
			avg_price = excluded.avg_price`,
	)
	if err != nil {
		return fmt.Errorf("storage.SavePositionSnapshot: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range positions {
		if _, err := stmt.ExecContext(ctx, at.UTC(), p.TokenID, p.Size, p.AvgPrice); err != nil {
			return fmt.Errorf("storage.SavePositionSnapshot: insert %s: %w", p.TokenID, err)
		}
	}
	return tx.Commit()
}

// GetLatestPositions returns the most recent snapshot and its timestamp.
func (s *SQLiteStorage) GetLatestPositions(ctx context.Context) ([]domain.Position, time.Time, error) {
	var at sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(snapshot_at) FROM position_snapshots`,
	).Scan(&at)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("storage.GetLatestPositions: %w", err)
	}
	if !at.Valid {
		return nil, time.Time{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id, size, avg_price
		FROM position_snapshots
		WHERE snapshot_at = ?
		ORDER BY token_id`,
		at.Time,
	)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("storage.GetLatestPositions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.TokenID, &p.Size, &p.AvgPrice); err != nil {
			return nil, time.Time{}, fmt.Errorf("storage.GetLatestPositions: scan: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, at.Time, rows.Err()
}

// SaveDailySummary upserts the summary row for one day, accumulating the
// counters of a restart within the same day.
func (s *SQLiteStorage) SaveDailySummary(ctx context.Context, d domain.DailySummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_summaries
			(date, orders_placed, orders_cancelled, fills, merges, merge_volume, stop_losses, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			orders_placed    = orders_placed + excluded.orders_placed,
			orders_cancelled = orders_cancelled + excluded.orders_cancelled,
			fills            = fills + excluded.fills,
			merges           = merges + excluded.merges,
			merge_volume     = merge_volume + excluded.merge_volume,
			stop_losses      = stop_losses + excluded.stop_losses,
			realized_pnl     = realized_pnl + excluded.realized_pnl`,
		d.Date.UTC().Format("2006-01-02"),
		d.OrdersPlaced, d.OrdersCancelled, d.Fills,
		d.Merges, d.MergeVolume, d.StopLosses, d.RealizedPnL,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveDailySummary: %w", err)
	}
	return nil
}

// GetDailySummaries returns all daily rows, newest first.
func (s *SQLiteStorage) GetDailySummaries(ctx context.Context) ([]domain.DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, orders_placed, orders_cancelled, fills, merges, merge_volume, stop_losses, realized_pnl
		FROM daily_summaries
		ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.GetDailySummaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.DailySummary
	for rows.Next() {
		var d domain.DailySummary
		var date string
		if err := rows.Scan(&date, &d.OrdersPlaced, &d.OrdersCancelled, &d.Fills, &d.Merges, &d.MergeVolume, &d.StopLosses, &d.RealizedPnL); err != nil {
			return nil, fmt.Errorf("storage.GetDailySummaries: scan: %w", err)
		}
		d.Date, _ = time.ParseInLocation("2006-01-02", date, time.UTC)
		summaries = append(summaries, d)
	}
	return summaries, rows.Err()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld deletes rows past the retention windows. Best effort.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutFills := time.Now().Add(-retentionFills).UTC()
	cutSnaps := time.Now().Add(-retentionSnapshots).UTC()

	s.db.ExecContext(ctx, `DELETE FROM fills WHERE filled_at < ?`, cutFills)
	s.db.ExecContext(ctx, `DELETE FROM position_snapshots WHERE snapshot_at < ?`, cutSnaps)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
