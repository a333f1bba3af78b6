package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ratekit/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" yaml:"addr"`
	Password     string        `json:"password" yaml:"password"`
	DB           int           `json:"db" yaml:"db"`
	KeyPrefix    string        `json:"key_prefix" yaml:"key_prefix"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		KeyPrefix:    "ratekit:",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements engine.Store on plain Redis string keys.
// Data structure:
// - {prefix}{key} -> int64 for counters and timestamps
// - {prefix}{key} -> "true" / "false" for flags
type Store struct {
	client *redis.Client
	prefix string
}

// New creates a new Redis-backed store with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, prefix: config.KeyPrefix}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) key(k string) string { return s.prefix + k }

// GetInt64 reads an integer key; a missing key is not an error.
func (s *Store) GetInt64(ctx context.Context, key string) (int64, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, true, nil
}

// GetBool reads a flag key; a missing key is not an error.
func (s *Store) GetBool(ctx context.Context, key string) (bool, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bool()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, true, nil
}

// Commit applies the batch inside MULTI/EXEC.
func (s *Store) Commit(ctx context.Context, batch *core.Batch) error {
	muts := batch.Mutations()
	if len(muts) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range muts {
			if m.Remove {
				pipe.Del(ctx, s.key(m.Key))
				continue
			}
			switch v := m.Value.(type) {
			case int64:
				pipe.Set(ctx, s.key(m.Key), v, 0)
			case bool:
				pipe.Set(ctx, s.key(m.Key), formatBool(v), 0)
			default:
				return fmt.Errorf("unsupported value type %T for key %q", m.Value, m.Key)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Lua script recording a session start atomically: install date is written
// only when missing or zero, launch counter is incremented with overflow check.
var recordSessionScript = redis.NewScript(`
	local install = tonumber(redis.call('GET', KEYS[1]) or '0')
	if install == 0 then
		redis.call('SET', KEYS[1], ARGV[1])
	end
	local launches = tonumber(redis.call('GET', KEYS[2]) or '0')
	if launches >= 9223372036854775807 then
		return redis.error_reply('launch counter overflow')
	end
	return redis.call('INCR', KEYS[2])
`)

// RecordSession implements engine.SessionRecorder.
func (s *Store) RecordSession(ctx context.Context, installKey, launchKey string, nowMillis int64) error {
	keys := []string{s.key(installKey), s.key(launchKey)}
	if err := recordSessionScript.Run(ctx, s.client, keys, nowMillis).Err(); err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

func formatBool(v bool) string {
	return strconv.FormatBool(v)
}
