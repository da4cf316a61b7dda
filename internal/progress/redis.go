package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exam-allocation/internal/config"
	"exam-allocation/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const keyPrefix = "exam-allocation:progress:"

func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisTracker stores the latest update per run as JSON with a TTL, so any
// API replica can answer progress queries.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisTracker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTracker{client: client, ttl: ttl, logger: logger}
}

// Report stores p. Failures are logged and dropped.
func (r *RedisTracker) Report(ctx context.Context, p models.Progress) {
	data, err := json.Marshal(p)
	if err != nil {
		r.logger.Warn("failed to encode progress", zap.String("run_id", p.RunID), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, keyPrefix+p.RunID, data, r.ttl).Err(); err != nil {
		r.logger.Warn("failed to store progress", zap.String("run_id", p.RunID), zap.Error(err))
	}
}

func (r *RedisTracker) Get(ctx context.Context, runID string) (*models.Progress, error) {
	val, err := r.client.Get(ctx, keyPrefix+runID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress %s: %w", runID, err)
	}
	var p models.Progress
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("decode progress %s: %w", runID, err)
	}
	return &p, nil
}
