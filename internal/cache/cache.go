// Package cache stores generated tracks in Redis, keyed by a design hash
// that covers the resolved timeline options and by the seed. The TTL only
// bounds memory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Conceptual-Machines/magda-groove/internal/groove/pipeline"
)

const keyPrefix = "groove:track:"

// TrackCache is a Redis-backed track cache. It is safe for concurrent use.
type TrackCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a cache from a redis URL such as redis://localhost:6379/0
func New(redisURL string, ttl time.Duration) (*TrackCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewWithOptions(opts, ttl), nil
}

// NewWithOptions creates a cache from explicit connection options
func NewWithOptions(opts *redis.Options, ttl time.Duration) *TrackCache {
	return &TrackCache{rdb: redis.NewClient(opts), ttl: ttl}
}

// Close closes the Redis connection
func (c *TrackCache) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity
func (c *TrackCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key returns the Redis key of a track
func Key(designHash string, seed uint64) string {
	return keyPrefix + designHash + ":" + strconv.FormatUint(seed, 10)
}

// Get returns the cached track. A miss returns (nil, redis.Nil); use
// IsMiss to check.
func (c *TrackCache) Get(ctx context.Context, designHash string, seed uint64) (*pipeline.Track, error) {
	data, err := c.rdb.Get(ctx, Key(designHash, seed)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read track from Redis: %w", err)
	}

	var track pipeline.Track
	if err := json.Unmarshal(data, &track); err != nil {
		return nil, fmt.Errorf("failed to decode cached track: %w", err)
	}
	return &track, nil
}

// Put stores a track under its design hash and seed
func (c *TrackCache) Put(ctx context.Context, designHash string, track *pipeline.Track) error {
	data, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("failed to encode track: %w", err)
	}
	if err := c.rdb.Set(ctx, Key(designHash, track.Seed), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write track to Redis: %w", err)
	}
	return nil
}

// IsMiss reports whether err is a cache miss
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
