package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/internal/alerting"
	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Postgres store for the alert registry and cycle history. Strictly a
// downstream consumer: the pipeline itself is stateless and runs fine
// with no database at all.

type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(ctx context.Context, connStr string, log zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	s := &PostgresStore{pool: pool, log: log.With().Str("component", "db").Logger()}
	s.log.Info().Msg("connected to PostgreSQL alert registry")
	return s, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the tables when they do not exist yet.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS gem_alerts (
    alert_id      UUID PRIMARY KEY,
    emitted_at    TIMESTAMPTZ NOT NULL,
    address       TEXT NOT NULL,
    symbol        TEXT,
    source        TEXT,
    final_score   DOUBLE PRECISION NOT NULL,
    conviction    TEXT NOT NULL,
    breakdown     JSONB,
    candidate     JSONB
);
CREATE INDEX IF NOT EXISTS idx_gem_alerts_address ON gem_alerts (address);
CREATE INDEX IF NOT EXISTS idx_gem_alerts_emitted ON gem_alerts (emitted_at DESC);

CREATE TABLE IF NOT EXISTS detection_cycles (
    cycle_id         UUID PRIMARY KEY,
    started_at       TIMESTAMPTZ NOT NULL,
    completed_at     TIMESTAMPTZ NOT NULL,
    total_candidates INT NOT NULL,
    finalist_count   INT NOT NULL,
    degraded         BOOLEAN NOT NULL,
    cost_savings_pct DOUBLE PRECISION,
    report           JSONB
);
`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema init: %w", err)
	}
	s.log.Info().Msg("gem finder schema initialized")
	return nil
}

// SaveAlert persists one emitted alert. Implements alerting.AlertStore.
func (s *PostgresStore) SaveAlert(ctx context.Context, a alerting.Alert) error {
	breakdown, err := json.Marshal(a.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	candidate, err := json.Marshal(a.Candidate)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO gem_alerts (alert_id, emitted_at, address, symbol, source, final_score, conviction, breakdown, candidate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (alert_id) DO NOTHING`,
		a.ID, a.Timestamp, a.Candidate.Address, a.Candidate.Symbol, a.Candidate.Source,
		a.FinalScore, a.Conviction, breakdown, candidate,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// SaveCycle persists one cycle report summary.
func (s *PostgresStore) SaveCycle(ctx context.Context, r models.CycleReport) error {
	report, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO detection_cycles (cycle_id, started_at, completed_at, total_candidates, finalist_count, degraded, cost_savings_pct, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cycle_id) DO NOTHING`,
		r.CycleID, r.StartedAt, r.CompletedAt, r.TotalCandidates, len(r.Finalists),
		r.Degraded, r.LedgerDelta.CostSavingsPct, report,
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// RecentAlerts reads back the latest persisted alerts.
func (s *PostgresStore) RecentAlerts(ctx context.Context, limit int) ([]alerting.Alert, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT alert_id, emitted_at, final_score, conviction, candidate, breakdown
		FROM gem_alerts ORDER BY emitted_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alerting.Alert
	for rows.Next() {
		var (
			a             alerting.Alert
			emittedAt     time.Time
			candidateJSON []byte
			breakdownJSON []byte
		)
		if err := rows.Scan(&a.ID, &emittedAt, &a.FinalScore, &a.Conviction, &candidateJSON, &breakdownJSON); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Timestamp = emittedAt
		if err := json.Unmarshal(candidateJSON, &a.Candidate); err != nil {
			s.log.Warn().Err(err).Str("alert_id", a.ID).Msg("candidate decode failed")
		}
		if err := json.Unmarshal(breakdownJSON, &a.Breakdown); err != nil {
			s.log.Warn().Err(err).Str("alert_id", a.ID).Msg("breakdown decode failed")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
