package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ecorewards/core"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Driver names the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds database connection configuration
type Config struct {
	Driver          Driver        `json:"driver" yaml:"driver" env:"ECOREWARDS_SQL_DRIVER"`
	DSN             string        `json:"dsn" yaml:"dsn" env:"ECOREWARDS_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	// AutoMigrate creates the profile table on start when missing.
	AutoMigrate bool `json:"auto_migrate" yaml:"auto_migrate" env:"ECOREWARDS_SQL_AUTO_MIGRATE"`
}

// DefaultConfig returns sensible defaults for a local Postgres
func DefaultConfig() Config {
	return Config{
		Driver:          DriverPostgres,
		DSN:             "postgres://localhost:5432/ecorewards?sslmode=disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// Store keeps one row per profile. Summary columns are queryable, the full profile lives in data as JSON.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

type profileRow struct {
	UserID        string    `db:"user_id"`
	Points        int64     `db:"points"`
	Level         int64     `db:"level"`
	Streak        int64     `db:"streak"`
	TotalRecycled int64     `db:"total_recycled"`
	Data          []byte    `db:"data"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// New opens the database, verifies connectivity and optionally migrates.
func New(config Config) (*Store, error) {
	db, err := sqlx.Open(string(config.Driver), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", config.Driver, err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Driver, err)
	}

	s := NewWithDB(db, config.Driver)
	if config.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing)
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate creates the profile table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS user_profiles (
	user_id VARCHAR(128) PRIMARY KEY,
	points BIGINT NOT NULL,
	level BIGINT NOT NULL,
	streak BIGINT NOT NULL,
	total_recycled BIGINT NOT NULL,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`
	if s.driver == DriverMySQL {
		ddl = `CREATE TABLE IF NOT EXISTS user_profiles (
	user_id VARCHAR(128) PRIMARY KEY,
	points BIGINT NOT NULL,
	level BIGINT NOT NULL,
	streak BIGINT NOT NULL,
	total_recycled BIGINT NOT NULL,
	data JSON NOT NULL,
	updated_at DATETIME(6) NOT NULL
)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to migrate user_profiles: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, user core.UserID) (core.UserProfile, error) {
	var row profileRow
	q := s.db.Rebind(`SELECT user_id, points, level, streak, total_recycled, data, updated_at FROM user_profiles WHERE user_id = ?`)
	if err := s.db.GetContext(ctx, &row, q, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.UserProfile{}, core.ErrNotFound
		}
		return core.UserProfile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	var profile core.UserProfile
	if err := json.Unmarshal(row.Data, &profile); err != nil {
		return core.UserProfile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return profile, nil
}

// Save inserts or updates the profile row inside a transaction.
func (s *Store) Save(ctx context.Context, profile core.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	updated := profile.Updated.UTC()
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM user_profiles WHERE user_id = ?)`), profile.UserID); err != nil {
		return fmt.Errorf("failed to check profile: %w", err)
	}
	if exists {
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE user_profiles SET points = ?, level = ?, streak = ?, total_recycled = ?, data = ?, updated_at = ? WHERE user_id = ?`),
			profile.Points, profile.Level, profile.Streak, profile.TotalRecycled, data, updated, profile.UserID)
	} else {
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO user_profiles (user_id, points, level, streak, total_recycled, data, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
			profile.UserID, profile.Points, profile.Level, profile.Streak, profile.TotalRecycled, data, updated)
	}
	if err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profile: %w", err)
	}
	return nil
}

func (s *Store) Users(ctx context.Context) ([]core.UserID, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT user_id FROM user_profiles ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]core.UserID, len(ids))
	for i, id := range ids {
		out[i] = core.UserID(id)
	}
	return out, nil
}
