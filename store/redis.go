package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/countermap/countermap/ontology"
)

// RedisOptions configures the Redis connection for a RedisStore.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// KeyPrefix namespaces all index keys. Default: "countermap"
	KeyPrefix string

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisStore persists the index in Redis using go-redis/v9.
//
// Key schema:
//   - <prefix>:attacks - list of ATT&CK IDs in index order
//   - <prefix>:attack:<id> - JSON-encoded technique record, countermeasures
//     in the dedup/sort order fixed at build time
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store with the given options.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "countermap"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: opts.KeyPrefix}, nil
}

func (s *RedisStore) orderKey() string {
	return s.prefix + ":attacks"
}

func (s *RedisStore) attackKey(id string) string {
	return s.prefix + ":attack:" + id
}

// Save replaces the persisted index. The previous ID list and records are
// dropped and rewritten in one pipeline.
func (s *RedisStore) Save(ctx context.Context, techniques []ontology.Technique) error {
	prev, err := s.client.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read previous index: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, id := range prev {
		pipe.Del(ctx, s.attackKey(id))
	}
	pipe.Del(ctx, s.orderKey())

	for _, t := range techniques {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to encode technique %s: %w", t.AttackID, err)
		}
		pipe.Set(ctx, s.attackKey(t.AttackID), data, 0)
		pipe.RPush(ctx, s.orderKey(), t.AttackID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// Load reads the records back in saved order.
func (s *RedisStore) Load(ctx context.Context) ([]ontology.Technique, error) {
	ids, err := s.client.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read index order: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.attackKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index records: %w", err)
	}

	techniques := make([]ontology.Technique, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Record missing for a listed ID; skip rather than fail the load.
			continue
		}
		var t ontology.Technique
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("failed to decode record for %s: %w", ids[i], err)
		}
		techniques = append(techniques, t)
	}
	return techniques, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
