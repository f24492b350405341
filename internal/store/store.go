// Package store is the Postgres persistence gateway: player records, stat
// line upserts, and read-only alert rules. Built on a pgxpool with prepared
// statement registration and health checking.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtwatch/courtwatch/internal/config"
	"github.com/courtwatch/courtwatch/internal/model"
)

// Store wraps pgxpool.Pool with application-specific helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New bootstraps the schema, creates and validates a connection pool.
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	// Schema bootstrap runs on a dedicated connection so prepared statements
	// registered on pool connections always see existing tables.
	if err := migrate(ctx, cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	var n int
	return s.pool.QueryRow(ctx, "health_check").Scan(&n)
}

// --------------------------------------------------------------------------
// Gateway operations
// --------------------------------------------------------------------------

// GetOrCreatePlayer looks a player up by name, inserting a new record with
// the team hint when absent. Falls back to "Unknown" when no hint is
// available. Returns the storage identifier.
func (s *Store) GetOrCreatePlayer(ctx context.Context, name, teamHint string) (int64, error) {
	if teamHint == "" {
		teamHint = "Unknown"
	}
	var id int64
	err := s.pool.QueryRow(ctx, "get_or_create_player", name, teamHint).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get or create player %q: %w", name, err)
	}
	return id, nil
}

// UpsertStats inserts-or-replaces stat lines keyed by (player_id, date) as
// one transaction. Re-running with identical lines leaves one row per date
// with the latest values retained.
func (s *Store) UpsertStats(ctx context.Context, playerID int64, lines []model.StatLine) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin stats upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, l := range lines {
		_, err := tx.Exec(ctx, "upsert_stat_line",
			playerID, l.Date, l.Points, l.Rebounds, l.Assists, l.Steals, l.Blocks, l.Minutes)
		if err != nil {
			return fmt.Errorf("upsert stat line player=%d date=%s: %w",
				playerID, l.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit stats upsert: %w", err)
	}
	return nil
}

// ListAlerts returns all stored threshold rules. Alerts are configured
// externally and read-only from this service's perspective.
func (s *Store) ListAlerts(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.pool.Query(ctx, "list_alerts")
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.PlayerID, &a.StatType, &a.Threshold); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// --------------------------------------------------------------------------
// Schema & prepared statements
// --------------------------------------------------------------------------

// migrate creates the tables if they do not exist. No deletion or
// migration-versioning logic in scope.
func migrate(ctx context.Context, dbURL string) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id   BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			team TEXT NOT NULL DEFAULT 'Unknown'
		)`,
		`CREATE TABLE IF NOT EXISTS stats (
			player_id BIGINT NOT NULL REFERENCES players(id),
			date      DATE NOT NULL,
			points    DOUBLE PRECISION NOT NULL DEFAULT 0,
			rebounds  DOUBLE PRECISION NOT NULL DEFAULT 0,
			assists   DOUBLE PRECISION NOT NULL DEFAULT 0,
			steals    DOUBLE PRECISION NOT NULL DEFAULT 0,
			blocks    DOUBLE PRECISION NOT NULL DEFAULT 0,
			minutes   DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (player_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id        BIGSERIAL PRIMARY KEY,
			player_id BIGINT NOT NULL REFERENCES players(id),
			stat_type TEXT NOT NULL,
			threshold DOUBLE PRECISION NOT NULL
		)`,
	}
	for _, sql := range stmts {
		if _, err := conn.Exec(ctx, sql); err != nil {
			return fmt.Errorf("exec bootstrap statement: %w", err)
		}
	}
	return nil
}

// registerPreparedStatements registers all statements the gateway uses.
// Prepared statements eliminate parse overhead on every refresh cycle.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Players: the no-op DO UPDATE makes RETURNING yield the existing id
		// on conflict.
		"get_or_create_player": `
			INSERT INTO players (name, team) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET team = players.team
			RETURNING id`,

		// Stats: last-write-wins per (player_id, date)
		"upsert_stat_line": `
			INSERT INTO stats (player_id, date, points, rebounds, assists, steals, blocks, minutes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (player_id, date) DO UPDATE SET
				points   = EXCLUDED.points,
				rebounds = EXCLUDED.rebounds,
				assists  = EXCLUDED.assists,
				steals   = EXCLUDED.steals,
				blocks   = EXCLUDED.blocks,
				minutes  = EXCLUDED.minutes`,

		// Alerts (read-only)
		"list_alerts": "SELECT id, player_id, stat_type, threshold FROM alerts",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
