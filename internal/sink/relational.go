package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/oficvd/internal/signal"
)

// RelationalSink is the indexed-store side of the Dual Sink (spec section
// 4.5), grounded on internal/persistence/postgres/trades_repo.go: the
// same sqlx.DB + context-timeout + pq.Error-dispatch shape, generalized
// from trades to signals and from append-only insert to a Top-1
// conflict-aware upsert keyed on (symbol, ts_ms).
type RelationalSink struct {
	db            *sqlx.DB
	commitTimeout time.Duration
}

// NewRelationalSink opens a Postgres connection pool against dsn and sets
// busyTimeout as the session's lock_timeout — Postgres's equivalent of a
// SQLite busy_timeout pragma, bounding how long a batch insert will wait
// on a contended row lock before giving up rather than stalling the
// sink's retry loop indefinitely. The caller owns the lifecycle (Close).
func NewRelationalSink(dsn string, commitTimeout, busyTimeout time.Duration) (*RelationalSink, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrSinkWriteFailed, err)
	}
	if busyTimeout > 0 {
		if _, err := db.Exec(fmt.Sprintf("SET lock_timeout = %d", busyTimeout.Milliseconds())); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: set lock_timeout: %v", ErrSinkWriteFailed, err)
		}
	}
	return &RelationalSink{db: db, commitTimeout: commitTimeout}, nil
}

// EnsureSchema creates the signals table if it does not already exist.
// Idempotent; safe to call at the start of every run.
func (r *RelationalSink) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.commitTimeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS signals (
			symbol          TEXT NOT NULL,
			ts_ms           BIGINT NOT NULL,
			signal_id       TEXT NOT NULL,
			run_id          TEXT NOT NULL,
			seq             BIGINT NOT NULL,
			side_hint       TEXT NOT NULL,
			score           DOUBLE PRECISION NOT NULL,
			regime          TEXT NOT NULL,
			div_type        TEXT NOT NULL,
			gating          INTEGER NOT NULL,
			confirm         BOOLEAN NOT NULL,
			cooldown_ms     BIGINT NOT NULL,
			expiry_ms       BIGINT NOT NULL,
			decision_code   TEXT NOT NULL,
			decision_reason TEXT NOT NULL,
			config_hash     TEXT NOT NULL,
			meta            JSONB,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (symbol, ts_ms)
		);
		CREATE INDEX IF NOT EXISTS signals_run_id_idx ON signals (run_id);
	`)
	if err != nil {
		return fmt.Errorf("%w: ensure schema: %v", ErrSinkWriteFailed, err)
	}
	return nil
}

// Insert upserts one signal, enforcing the Top-1 rule at the database
// level: the incoming row replaces the stored one only if its |score| is
// larger, or equal with a smaller seq (spec section 4.5).
func (r *RelationalSink) Insert(ctx context.Context, sig signal.Signal) error {
	return r.InsertBatch(ctx, []signal.Signal{sig})
}

// InsertBatch upserts signals atomically in one transaction, following
// the teacher's InsertBatch prepared-statement-in-a-tx pattern.
func (r *RelationalSink) InsertBatch(ctx context.Context, signals []signal.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.commitTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrSinkWriteFailed, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO signals (symbol, ts_ms, signal_id, run_id, seq, side_hint,
			score, regime, div_type, gating, confirm, cooldown_ms, expiry_ms,
			decision_code, decision_reason, config_hash, meta)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (symbol, ts_ms) DO UPDATE SET
			signal_id = EXCLUDED.signal_id, run_id = EXCLUDED.run_id,
			seq = EXCLUDED.seq, side_hint = EXCLUDED.side_hint,
			score = EXCLUDED.score, regime = EXCLUDED.regime,
			div_type = EXCLUDED.div_type, gating = EXCLUDED.gating,
			confirm = EXCLUDED.confirm, cooldown_ms = EXCLUDED.cooldown_ms,
			expiry_ms = EXCLUDED.expiry_ms, decision_code = EXCLUDED.decision_code,
			decision_reason = EXCLUDED.decision_reason, config_hash = EXCLUDED.config_hash,
			meta = EXCLUDED.meta
		WHERE abs(EXCLUDED.score) > abs(signals.score)
			OR (abs(EXCLUDED.score) = abs(signals.score) AND EXCLUDED.seq < signals.seq)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", ErrSinkWriteFailed, err)
	}
	defer stmt.Close()

	for _, sig := range signals {
		metaJSON, err := json.Marshal(sig.Meta)
		if err != nil {
			return fmt.Errorf("%w: marshal meta for %s: %v", ErrSinkWriteFailed, sig.SignalID, err)
		}
		_, err = stmt.ExecContext(ctx, sig.Symbol, sig.TsMs, sig.SignalID, sig.RunID, sig.Seq,
			string(sig.SideHint), sig.Score, sig.Regime, sig.DivType, sig.Gating, sig.Confirm,
			sig.CooldownMs, sig.ExpiryMs, string(sig.DecisionCode), sig.DecisionReason,
			sig.ConfigHash, metaJSON)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok {
				return fmt.Errorf("%w: pq code=%s: %v", ErrSinkWriteFailed, pqErr.Code, pqErr)
			}
			return fmt.Errorf("%w: exec %s: %v", ErrSinkWriteFailed, sig.SignalID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrSinkWriteFailed, err)
	}
	return nil
}

// GetBySymbolAndTs is the read-side counterpart used by the equivalence
// harness and operator tooling to verify Top-1 enforcement.
func (r *RelationalSink) GetBySymbolAndTs(ctx context.Context, symbol string, tsMs int64) (*signal.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commitTimeout)
	defer cancel()

	var row struct {
		Symbol         string          `db:"symbol"`
		TsMs           int64           `db:"ts_ms"`
		SignalID       string          `db:"signal_id"`
		RunID          string          `db:"run_id"`
		Seq            int64           `db:"seq"`
		SideHint       string          `db:"side_hint"`
		Score          float64         `db:"score"`
		Regime         string          `db:"regime"`
		DivType        string          `db:"div_type"`
		Gating         int             `db:"gating"`
		Confirm        bool            `db:"confirm"`
		CooldownMs     int64           `db:"cooldown_ms"`
		ExpiryMs       int64           `db:"expiry_ms"`
		DecisionCode   string          `db:"decision_code"`
		DecisionReason string          `db:"decision_reason"`
		ConfigHash     string          `db:"config_hash"`
		Meta           json.RawMessage `db:"meta"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT symbol, ts_ms, signal_id, run_id, seq, side_hint, score, regime,
			div_type, gating, confirm, cooldown_ms, expiry_ms, decision_code,
			decision_reason, config_hash, meta
		FROM signals WHERE symbol = $1 AND ts_ms = $2`, symbol, tsMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s@%d: %v", ErrSinkWriteFailed, symbol, tsMs, err)
	}

	sig := &signal.Signal{
		SchemaVersion: signal.SchemaVersion, Symbol: row.Symbol, TsMs: row.TsMs,
		SignalID: row.SignalID, RunID: row.RunID, Seq: row.Seq,
		SideHint: signal.SideHint(row.SideHint), Score: row.Score, Regime: row.Regime,
		DivType: row.DivType, Gating: row.Gating, Confirm: row.Confirm,
		CooldownMs: row.CooldownMs, ExpiryMs: row.ExpiryMs,
		DecisionCode: signal.DecisionCode(row.DecisionCode), DecisionReason: row.DecisionReason,
		ConfigHash: row.ConfigHash,
	}
	if len(row.Meta) > 0 {
		if err := json.Unmarshal(row.Meta, &sig.Meta); err != nil {
			return nil, fmt.Errorf("%w: unmarshal meta: %v", ErrSinkWriteFailed, err)
		}
	}
	return sig, nil
}

// Close releases the underlying connection pool.
func (r *RelationalSink) Close() error {
	return r.db.Close()
}
