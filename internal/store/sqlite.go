package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/leadintel/internal/domain"
	"github.com/ashureev/leadintel/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	saveMaxRetries    = 3
	saveRetryBaseWait = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS devices (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS credentials (
		user_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		token TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, provider)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetDevice retrieves a device by its user ID.
func (s *SQLiteStore) GetDevice(ctx context.Context, userID string) (*domain.Device, error) {
	query := `SELECT user_id, username, last_seen_at, created_at FROM devices WHERE user_id = ?`

	var device domain.Device
	var lastSeen, createdAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&device.UserID, &device.Username, &lastSeen, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan device row: %w", err)
	}

	device.LastSeenAt = time.Unix(lastSeen, 0)
	device.CreatedAt = time.Unix(createdAt, 0)
	return &device, nil
}

// UpsertDevice creates or updates a device record.
func (s *SQLiteStore) UpsertDevice(ctx context.Context, device *domain.Device) error {
	query := `
	INSERT INTO devices (user_id, username, last_seen_at, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at`

	_, err := s.db.ExecContext(ctx, query,
		device.UserID, device.Username,
		device.LastSeenAt.Unix(), device.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

// TouchDevice updates the last_seen_at timestamp for a device.
func (s *SQLiteStore) TouchDevice(ctx context.Context, userID string, lastSeen time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE devices SET last_seen_at = ? WHERE user_id = ?`, lastSeen.Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("TouchDevice affected 0 rows", "user_id", userID)
	}
	return nil
}

// Load returns the stored token for a device and provider, or "" if none.
func (s *SQLiteStore) Load(ctx context.Context, owner string, provider domain.Provider) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM credentials WHERE user_id = ? AND provider = ?`,
		owner, string(provider),
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return token, nil
}

// Save overwrites the stored token for a device and provider.
// SQLITE_BUSY errors are retried with exponential backoff.
func (s *SQLiteStore) Save(ctx context.Context, owner string, provider domain.Provider, token string) error {
	attempts, err := shared.RetryOnConflict(ctx, saveMaxRetries, saveRetryBaseWait, func() error {
		return s.saveOnce(ctx, owner, provider, token)
	})
	if err != nil {
		return fmt.Errorf("save %s credential for %s after %d attempts: %w", provider, owner, attempts, err)
	}
	if attempts > 1 {
		slog.Debug("Credential save succeeded after retry", "user_id", owner, "provider", provider, "attempts", attempts)
	}
	return nil
}

func (s *SQLiteStore) saveOnce(ctx context.Context, owner string, provider domain.Provider, token string) error {
	query := `
	INSERT INTO credentials (user_id, provider, token, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id, provider) DO UPDATE SET
		token = excluded.token,
		updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, owner, string(provider), token, time.Now().Unix()); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

var _ Repository = (*SQLiteStore)(nil)
