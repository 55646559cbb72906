package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/incident-sentinel/internal/config"
	"github.com/raaihank/incident-sentinel/internal/logger"
	"go.uber.org/zap"
)

// RedisStore keeps the update log in a Redis list, newest at the head
type RedisStore struct {
	client     *redis.Client
	key        string
	maxUpdates int
	logger     *logger.Logger
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg config.RedisConfig, maxUpdates int, log *logger.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.MaxConnections > 0 {
		opts.PoolSize = cfg.MaxConnections
	}
	opts.MinIdleConns = cfg.MinIdleConns

	store := &RedisStore{
		client:     redis.NewClient(opts),
		key:        cfg.Key,
		maxUpdates: maxUpdates,
		logger:     log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.client.Ping(ctx).Err(); err != nil {
		store.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Redis status store initialized",
		zap.String("redis_url", maskURL(cfg.URL)),
		zap.String("key", cfg.Key),
		zap.Int("max_updates", maxUpdates),
	)

	return store, nil
}

// Append pushes update and trims the list in a single transaction
func (s *RedisStore) Append(ctx context.Context, update Update) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, 0, int64(s.maxUpdates-1))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append update: %w", err)
	}

	return nil
}

// List returns the retained updates, newest first
func (s *RedisStore) List(ctx context.Context) ([]Update, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, int64(s.maxUpdates-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list updates: %w", err)
	}

	updates := make([]Update, 0, len(raw))
	for _, item := range raw {
		var update Update
		if err := json.Unmarshal([]byte(item), &update); err != nil {
			s.logger.Warn("Skipping corrupt status update entry", zap.String("key", s.key), zap.Error(err))
			continue
		}
		updates = append(updates, update)
	}

	return updates, nil
}

// Close closes the Redis connection pool
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// maskURL hides the password component of a connection URL
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
