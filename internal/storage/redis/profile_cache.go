// Package redis caches symbol profiles for fast point lookups. The cache
// is written through after each successful refresh and is never a source
// of truth: a miss or failure falls back to the in-memory snapshot.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/observability"
	"trade-intel-lab/internal/storage"
)

// Options configures the profile cache.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ProfileCache stores SymbolProfile JSON blobs keyed by symbol.
type ProfileCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a ProfileCache and verifies connectivity.
func New(ctx context.Context, opts Options) (*ProfileCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ProfileCache{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (c *ProfileCache) Close() error {
	return c.rdb.Close()
}

func profileKey(symbol string) string {
	return fmt.Sprintf("intel:symbol:%s:profile", symbol)
}

// StoreProfiles writes every profile with the configured TTL.
func (c *ProfileCache) StoreProfiles(ctx context.Context, profiles []domain.SymbolProfile) error {
	pipe := c.rdb.Pipeline()
	for _, p := range profiles {
		data, err := json.Marshal(p)
		if err != nil {
			observability.RecordProfileCacheWrite("marshal_error")
			return fmt.Errorf("marshal profile %s: %w", p.Symbol, err)
		}
		pipe.Set(ctx, profileKey(p.Symbol), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RecordProfileCacheWrite("error")
		return fmt.Errorf("cache profiles: %w", err)
	}
	observability.RecordProfileCacheWrite("ok")
	return nil
}

// GetProfile reads one cached profile. Returns storage.ErrNotFound on a miss.
func (c *ProfileCache) GetProfile(ctx context.Context, symbol string) (*domain.SymbolProfile, error) {
	data, err := c.rdb.Get(ctx, profileKey(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get cached profile: %w", err)
	}

	var p domain.SymbolProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal cached profile: %w", err)
	}
	return &p, nil
}
