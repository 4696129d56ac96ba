package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/codeladder/internal/models"
)

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresPool opens a connection pool and checks it answers
func NewPostgresPool(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 10
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 1
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// SessionRepository stores gateway sessions in the sessions table
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a repository over db
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save inserts or replaces a session
func (r *SessionRepository) Save(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, username, token, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			token = EXCLUDED.token,
			expires_at = EXCLUDED.expires_at
	`

	_, err := r.db.Exec(ctx, query,
		s.ID,
		s.Username,
		s.Token,
		s.CreatedAt,
		nullTime(s.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, username, token, created_at, expires_at
		FROM sessions
		WHERE id = $1
	`

	var s models.Session
	var expiresAt sql.NullTime

	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.Username,
		&s.Token,
		&s.CreatedAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if expiresAt.Valid {
		s.ExpiresAt = expiresAt.Time
	}

	return &s, nil
}

// Delete removes a session by ID
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions that expired before now
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query := `DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at < $1`

	result, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// Ping checks database connectivity
func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Helper functions

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
