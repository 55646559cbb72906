package status

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/raaihank/incident-sentinel/internal/config"
	"github.com/raaihank/incident-sentinel/internal/logger"
	"go.uber.org/zap"
)

const createTableQuery = `
	CREATE TABLE IF NOT EXISTS status_updates (
		id         BIGSERIAL PRIMARY KEY,
		ts         TEXT NOT NULL,
		draft      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// PostgresStore keeps the update log in PostgreSQL, pruned to the newest rows
type PostgresStore struct {
	db         *sqlx.DB
	maxUpdates int
	logger     *logger.Logger
}

// NewPostgresStore connects to the database and ensures the schema exists
func NewPostgresStore(cfg config.PostgresConfig, maxUpdates int, log *logger.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &PostgresStore{
		db:         db,
		maxUpdates: maxUpdates,
		logger:     log,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	log.Info("Postgres status store initialized",
		zap.String("database_url", maskURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_updates", maxUpdates),
	)

	return store, nil
}

func (s *PostgresStore) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, createTableQuery); err != nil {
		return fmt.Errorf("failed to create status_updates table: %w", err)
	}

	return nil
}

// Append inserts update and prunes rows beyond the retention bound
func (s *PostgresStore) Append(ctx context.Context, update Update) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO status_updates (ts, draft) VALUES ($1, $2)`,
		update.Timestamp, update.Draft,
	); err != nil {
		return fmt.Errorf("failed to insert update: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM status_updates
		WHERE id NOT IN (SELECT id FROM status_updates ORDER BY id DESC LIMIT $1)`,
		s.maxUpdates,
	)
	if err != nil {
		return fmt.Errorf("failed to prune updates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}

	if pruned, err := res.RowsAffected(); err == nil && pruned > 0 {
		s.logger.Debug("Pruned old status updates", zap.Int64("pruned", pruned))
	}

	return nil
}

// List returns the retained updates, newest first
func (s *PostgresStore) List(ctx context.Context) ([]Update, error) {
	updates := make([]Update, 0, s.maxUpdates)
	err := s.db.SelectContext(ctx, &updates,
		`SELECT ts, draft FROM status_updates ORDER BY id DESC LIMIT $1`,
		s.maxUpdates,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list updates: %w", err)
	}
	return updates, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
