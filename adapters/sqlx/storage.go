// Package sqlx implements engine.Storage on a relational database via
// jmoiron/sqlx, for Postgres (lib/pq) and MySQL (go-sql-driver/mysql).
//
// Expected schema (migrations are managed outside this module):
//
//	CREATE TABLE user_progress (
//	    user_id    VARCHAR(128) PRIMARY KEY,
//	    xp         BIGINT  NOT NULL DEFAULT 0,
//	    level      INT     NOT NULL DEFAULT 1,
//	    created_at TIMESTAMP NOT NULL,
//	    updated_at TIMESTAMP NOT NULL
//	);
//
//	CREATE TABLE reward_markers (
//	    scope_kind VARCHAR(64)  NOT NULL,
//	    user_id    VARCHAR(128) NOT NULL,
//	    scope_id   VARCHAR(128) NOT NULL,
//	    created_at TIMESTAMP    NOT NULL,
//	    PRIMARY KEY (scope_kind, user_id, scope_id)
//	);
//
// The reward_markers primary key is the uniqueness constraint that
// serializes concurrent duplicate idempotent grants.
package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	// database/sql drivers for the supported dialects
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"rewardkit/core"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver        `json:"driver"`
	DSN             string        `json:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// DefaultConfig returns sensible defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		DSN:             "",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements engine.Storage on SQL.
type Store struct {
	db     *sqlx.DB
	driver Driver

	addXPQuery      string
	createUserQuery string
	putMarkerQuery  string
}

// New opens a connection pool per the configuration and pings it.
func New(cfg Config) (*Store, error) {
	if cfg.Driver != DriverPostgres && cfg.Driver != DriverMySQL {
		return nil, fmt.Errorf("unsupported sql driver: %q", cfg.Driver)
	}
	db, err := sqlx.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewWithDB(db, cfg.Driver), nil
}

// NewWithDB wraps an existing sqlx.DB (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	s := &Store{db: db, driver: driver}
	s.buildQueries()
	return s
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// buildQueries renders the dialect-specific statements once. The level
// CASE expression is generated from the core threshold bands so the
// stored level always matches core.LevelForXP of the fresh total.
func (s *Store) buildQueries() {
	ths := core.LevelThresholds()

	switch s.driver {
	case DriverMySQL:
		// Assignments in a MySQL UPDATE apply left to right, so the
		// CASE below already sees the incremented xp.
		var b strings.Builder
		b.WriteString("UPDATE user_progress SET xp = LAST_INSERT_ID(xp + ?), level = CASE")
		for lvl := len(ths); lvl >= 2; lvl-- {
			fmt.Fprintf(&b, " WHEN xp >= %d THEN %d", ths[lvl-1], lvl)
		}
		b.WriteString(" ELSE 1 END, updated_at = ? WHERE user_id = ?")
		s.addXPQuery = b.String()
		s.createUserQuery = "INSERT IGNORE INTO user_progress (user_id, xp, level, created_at, updated_at) VALUES (?, 0, 1, ?, ?)"
		s.putMarkerQuery = "INSERT IGNORE INTO reward_markers (scope_kind, user_id, scope_id, created_at) VALUES (?, ?, ?, ?)"
	default:
		var b strings.Builder
		b.WriteString("UPDATE user_progress SET xp = xp + $1, level = CASE")
		for lvl := len(ths); lvl >= 2; lvl-- {
			fmt.Fprintf(&b, " WHEN xp + $1 >= %d THEN %d", ths[lvl-1], lvl)
		}
		b.WriteString(" ELSE 1 END, updated_at = $2 WHERE user_id = $3 RETURNING xp, level")
		s.addXPQuery = b.String()
		s.createUserQuery = "INSERT INTO user_progress (user_id, xp, level, created_at, updated_at) VALUES ($1, 0, 1, $2, $3) ON CONFLICT (user_id) DO NOTHING"
		s.putMarkerQuery = "INSERT INTO reward_markers (scope_kind, user_id, scope_id, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING"
	}
}

func (s *Store) CreateUser(ctx context.Context, user core.UserID) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, s.createUserQuery, user, now, now); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) GetProgress(ctx context.Context, user core.UserID) (core.Progress, error) {
	query := s.db.Rebind("SELECT xp, level, updated_at FROM user_progress WHERE user_id = ?")
	var row struct {
		XP      int64     `db:"xp"`
		Level   int       `db:"level"`
		Updated time.Time `db:"updated_at"`
	}
	if err := s.db.GetContext(ctx, &row, query, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Progress{}, core.ErrUserNotFound
		}
		return core.Progress{}, fmt.Errorf("failed to get progress: %w", err)
	}
	return core.Progress{UserID: user, XP: row.XP, Level: row.Level, Updated: row.Updated}, nil
}

// AddXP increments xp and re-derives level in a single UPDATE, so
// concurrent grants to one user serialize at the row and cannot lose
// updates or persist a stale level.
func (s *Store) AddXP(ctx context.Context, user core.UserID, delta int64) (core.Progress, error) {
	now := time.Now().UTC()

	if s.driver == DriverMySQL {
		// LAST_INSERT_ID() is per-connection, so the UPDATE and the
		// follow-up SELECT must not be split across the pool.
		conn, err := s.db.Conn(ctx)
		if err != nil {
			return core.Progress{}, fmt.Errorf("failed to acquire connection: %w", err)
		}
		defer conn.Close()

		res, err := conn.ExecContext(ctx, s.addXPQuery, delta, now, user)
		if err != nil {
			return core.Progress{}, fmt.Errorf("failed to add xp: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return core.Progress{}, fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return core.Progress{}, core.ErrUserNotFound
		}
		var total int64
		if err := conn.QueryRowContext(ctx, "SELECT LAST_INSERT_ID()").Scan(&total); err != nil {
			return core.Progress{}, fmt.Errorf("failed to read new total: %w", err)
		}
		return core.Progress{UserID: user, XP: total, Level: core.LevelForXP(total), Updated: now}, nil
	}

	var row struct {
		XP    int64 `db:"xp"`
		Level int   `db:"level"`
	}
	if err := s.db.GetContext(ctx, &row, s.addXPQuery, delta, now, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Progress{}, core.ErrUserNotFound
		}
		return core.Progress{}, fmt.Errorf("failed to add xp: %w", err)
	}
	return core.Progress{UserID: user, XP: row.XP, Level: row.Level, Updated: now}, nil
}

// PutIfAbsent inserts the marker row; the primary key turns a concurrent
// duplicate into an affected-rows count of zero rather than an error.
func (s *Store) PutIfAbsent(ctx context.Context, kind core.ScopeKind, user core.UserID, scope core.ScopeID) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.putMarkerQuery, kind, user, scope, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to put marker: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}
