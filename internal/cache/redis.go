package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/quiztab/internal/instance"
)

const keyPrefix = "quiztab:instance:"

// Redis stores instances as JSON with a TTL.
type Redis struct {
	Client *redis.Client
	ttl    time.Duration
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// NewRedis connects and pings.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Redis{Client: client, ttl: ttl}, nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

// HealthCheck verifies the cache connection is alive.
func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, questionID string, seed int64) (instance.Instance, bool, error) {
	b, err := r.Client.Get(ctx, keyPrefix+instance.ID(questionID, seed)).Bytes()
	if errors.Is(err, redis.Nil) {
		return instance.Instance{}, false, nil
	}
	if err != nil {
		return instance.Instance{}, false, err
	}
	var inst instance.Instance
	if err := json.Unmarshal(b, &inst); err != nil {
		return instance.Instance{}, false, fmt.Errorf("decode cached instance: %w", err)
	}
	return inst, true, nil
}

func (r *Redis) Put(ctx context.Context, questionID string, inst instance.Instance) error {
	b, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, keyPrefix+instance.ID(questionID, inst.Seed), b, r.ttl).Err()
}

func (r *Redis) Drop(ctx context.Context, questionID string, seed int64) error {
	return r.Client.Del(ctx, keyPrefix+instance.ID(questionID, seed)).Err()
}
