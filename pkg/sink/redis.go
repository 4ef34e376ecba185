package sink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	sferrors "github.com/vnykmshr/stageflow/pkg/common/errors"
	"github.com/vnykmshr/stageflow/pkg/task"
)

// RedisConfig configures a Redis sink.
type RedisConfig struct {
	// Redis is the client. Required.
	Redis redis.UniversalClient

	// Key prefixes every key the sink writes. Required.
	Key string

	// Timeout bounds each Redis round trip (defaults to 500ms).
	Timeout time.Duration

	// KeyTTL is how long a run's keys live (defaults to 24 hours).
	KeyTTL time.Duration
}

// DefaultRedisConfig returns a configuration with the default prefix and
// timeouts. Redis must still be set.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Key:     "stageflow",
		Timeout: 500 * time.Millisecond,
		KeyTTL:  24 * time.Hour,
	}
}

// Redis appends each delivered item to the list <key>:<runID> and stores
// the run summary in the hash <key>:<runID>:summary.
type Redis struct {
	config RedisConfig
}

// NewRedis creates a Redis sink.
func NewRedis(config RedisConfig) (*Redis, error) {
	if config.Redis == nil {
		return nil, sferrors.NewValidationError("sink", "Redis", nil, "redis client is required")
	}
	if config.Key == "" {
		return nil, sferrors.NewValidationError("sink", "Key", "", "key is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 500 * time.Millisecond
	}
	if config.KeyTTL <= 0 {
		config.KeyTTL = 24 * time.Hour
	}
	return &Redis{config: config}, nil
}

func (r *Redis) itemsKey(runID string) string {
	return r.config.Key + ":" + runID
}

func (r *Redis) summaryKey(runID string) string {
	return r.config.Key + ":" + runID + ":summary"
}

// Accept implements Sink.
func (r *Redis) Accept(ctx context.Context, runID string, item task.Item) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	key := r.itemsKey(runID)
	pipe := r.config.Redis.Pipeline()
	pipe.RPush(ctx, key, item.String())
	pipe.Expire(ctx, key, r.config.KeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return &RedisError{"accept", err}
	}
	return nil
}

// Summarize implements Summarizer.
func (r *Redis) Summarize(ctx context.Context, runID string, s Summary) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	key := r.summaryKey(runID)
	pipe := r.config.Redis.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"emitted":           s.Emitted,
		"delivered":         s.Delivered,
		"faults":            s.Faults,
		"average_idle_ms":   strconv.FormatFloat(s.AverageIdleMs, 'f', 2, 64),
		"max_queue_lengths": s.MaxQueueLengths,
	})
	pipe.Expire(ctx, key, r.config.KeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return &RedisError{"summarize", err}
	}
	return nil
}

// Items returns the item names stored for runID, in arrival order.
func (r *Redis) Items(ctx context.Context, runID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	items, err := r.config.Redis.LRange(ctx, r.itemsKey(runID), 0, -1).Result()
	if err != nil {
		return nil, &RedisError{"items", err}
	}
	return items, nil
}

// Summary reads back the summary stored for runID. ok is false when there
// is none.
func (r *Redis) Summary(ctx context.Context, runID string) (s Summary, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	fields, err := r.config.Redis.HGetAll(ctx, r.summaryKey(runID)).Result()
	if err != nil {
		return Summary{}, false, &RedisError{"summary", err}
	}
	if len(fields) == 0 {
		return Summary{}, false, nil
	}

	s.MaxQueueLengths = fields["max_queue_lengths"]
	for name, dst := range map[string]*int{
		"emitted":   &s.Emitted,
		"delivered": &s.Delivered,
		"faults":    &s.Faults,
	} {
		if *dst, err = strconv.Atoi(fields[name]); err != nil {
			return Summary{}, false, &RedisError{"summary", fmt.Errorf("field %s: %w", name, err)}
		}
	}
	if s.AverageIdleMs, err = strconv.ParseFloat(fields["average_idle_ms"], 64); err != nil {
		return Summary{}, false, &RedisError{"summary", fmt.Errorf("field average_idle_ms: %w", err)}
	}
	return s, true, nil
}

// Clear deletes everything stored for runID.
func (r *Redis) Clear(ctx context.Context, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	if err := r.config.Redis.Del(ctx, r.itemsKey(runID), r.summaryKey(runID)).Err(); err != nil {
		return &RedisError{"clear", err}
	}
	return nil
}

// RedisError represents a Redis operation error.
type RedisError struct {
	Operation string
	Err       error
}

func (e *RedisError) Error() string {
	return "redis error in " + e.Operation + ": " + e.Err.Error()
}

func (e *RedisError) Unwrap() error {
	return e.Err
}
