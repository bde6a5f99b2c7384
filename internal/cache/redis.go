// Package cache holds the redis backed availability cache shared by every
// instance of the booking service.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

const (
	defaultPrefix = "roombooking:availability"
	defaultTTL    = 30 * time.Second
	pingTimeout   = 2 * time.Second
)

// Options configures the redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewClient connects to redis and pings it. It returns nil when the server is
// unreachable so callers can fall back to the in-process cache.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

// RedisAvailabilityCache implements application.AvailabilityCache. Each
// resource has a generation counter; invalidation bumps it so stale ranges
// are never read again and simply expire.
type RedisAvailabilityCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

var _ application.AvailabilityCache = (*RedisAvailabilityCache)(nil)

func NewRedisAvailabilityCache(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisAvailabilityCache {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisAvailabilityCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "availability_cache")),
	}
}

func (c *RedisAvailabilityCache) Get(ctx context.Context, key application.AvailabilityKey) ([]scheduler.DayAvailability, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	gen, err := c.generation(ctx, key.ResourceID)
	if err != nil {
		c.logger.Warn("cache generation lookup failed", zap.String("resource_id", key.ResourceID), zap.Error(err))
		return nil, false
	}

	raw, err := c.client.Get(ctx, c.entryKey(key, gen)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", zap.String("resource_id", key.ResourceID), zap.Error(err))
		}
		return nil, false
	}

	days, err := decodeDays(raw)
	if err != nil {
		c.logger.Warn("cache entry is corrupt", zap.String("resource_id", key.ResourceID), zap.Error(err))
		return nil, false
	}
	return days, true
}

func (c *RedisAvailabilityCache) Generation(ctx context.Context, resourceID string) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	gen, err := c.generation(ctx, resourceID)
	if err != nil {
		c.logger.Warn("cache generation lookup failed", zap.String("resource_id", resourceID), zap.Error(err))
		return 0, false
	}
	return gen, true
}

// Store writes days under gen. An entry written after gen was bumped lands
// under a generation Get no longer reads.
func (c *RedisAvailabilityCache) Store(ctx context.Context, key application.AvailabilityKey, gen int64, days []scheduler.DayAvailability) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := encodeDays(days)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.entryKey(key, gen), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("resource_id", key.ResourceID), zap.Error(err))
	}
}

// InvalidateResource bumps the resource generation.
func (c *RedisAvailabilityCache) InvalidateResource(ctx context.Context, resourceID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, c.generationKey(resourceID)).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func (c *RedisAvailabilityCache) generation(ctx context.Context, resourceID string) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(resourceID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisAvailabilityCache) generationKey(resourceID string) string {
	return c.prefix + ":gen:" + resourceID
}

func (c *RedisAvailabilityCache) entryKey(key application.AvailabilityKey, gen int64) string {
	sum := sha1.Sum([]byte(key.Suffix()))
	return fmt.Sprintf("%s:%s:%d:%x", c.prefix, key.ResourceID, gen, sum[:])
}

type dayPayload struct {
	Date          time.Time `json:"date"`
	Availability  string    `json:"availability"`
	BookedMinutes int       `json:"booked_minutes"`
}

func encodeDays(days []scheduler.DayAvailability) ([]byte, error) {
	out := make([]dayPayload, 0, len(days))
	for _, day := range days {
		out = append(out, dayPayload{
			Date:          day.Date,
			Availability:  string(day.Availability),
			BookedMinutes: day.BookedMinutes,
		})
	}
	return json.Marshal(out)
}

func decodeDays(raw []byte) ([]scheduler.DayAvailability, error) {
	var payload []dayPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	days := make([]scheduler.DayAvailability, 0, len(payload))
	for _, day := range payload {
		availability := scheduler.Availability(day.Availability)
		switch availability {
		case scheduler.Available, scheduler.Partial, scheduler.Booked:
		default:
			return nil, fmt.Errorf("unknown availability %q", day.Availability)
		}
		days = append(days, scheduler.DayAvailability{
			Date:          day.Date,
			Availability:  availability,
			BookedMinutes: day.BookedMinutes,
		})
	}
	return days, nil
}
