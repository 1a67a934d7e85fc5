// Package cache puts a Redis read-through cache in front of the room inventory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"roombooking/internal/metrics"
	"roombooking/internal/models"
	"roombooking/internal/repository"
)

const (
	versionKey    = "roombooking:rooms:version"
	retryInterval = time.Minute
)

// RoomCache caches room reads in Redis and invalidates on every write.
// While Redis is unreachable it serves straight from the repository and
// probes Redis again once per retry interval.
type RoomCache struct {
	source repository.RoomAdminRepository
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

// NewRoomCache wraps source. A nil client or non-positive ttl disables caching.
func NewRoomCache(source repository.RoomAdminRepository, client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *RoomCache {
	l := logger.With().Str("component", "room_cache").Logger()
	return &RoomCache{source: source, redis: client, ttl: ttl, logger: &l}
}

// Rooms returns the rooms visible under scope.
func (c *RoomCache) Rooms(ctx context.Context, scope models.VisibilityScope) ([]models.Room, error) {
	var rooms []models.Room
	key, ok := c.key(ctx, "rooms:"+scope.Key())
	if ok && c.read(ctx, key, &rooms) {
		return rooms, nil
	}

	rooms, err := c.source.Rooms(ctx, scope)
	if err != nil {
		return nil, err
	}
	if ok {
		c.write(ctx, key, rooms)
	}
	return rooms, nil
}

// GetRoom returns a room by code.
func (c *RoomCache) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	key, ok := c.key(ctx, "room:"+code)
	if ok && c.read(ctx, key, &room) {
		return &room, nil
	}

	got, err := c.source.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if ok {
		c.write(ctx, key, got)
	}
	return got, nil
}

func (c *RoomCache) CreateRoom(ctx context.Context, room *models.Room) error {
	return c.invalidateAfter(ctx, c.source.CreateRoom(ctx, room))
}

func (c *RoomCache) UpdateRoom(ctx context.Context, room *models.Room) error {
	return c.invalidateAfter(ctx, c.source.UpdateRoom(ctx, room))
}

func (c *RoomCache) DeleteRoom(ctx context.Context, code string) error {
	return c.invalidateAfter(ctx, c.source.DeleteRoom(ctx, code))
}

func (c *RoomCache) UpsertRooms(ctx context.Context, rooms []models.Room) error {
	return c.invalidateAfter(ctx, c.source.UpsertRooms(ctx, rooms))
}

// Invalidate drops every cached room entry by bumping the version key.
func (c *RoomCache) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	if err := c.redis.Incr(ctx, versionKey).Err(); err != nil {
		c.markDown(err)
		return fmt.Errorf("invalidating room cache: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity for readiness probes.
func (c *RoomCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

func (c *RoomCache) invalidateAfter(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	if err := c.Invalidate(ctx); err != nil {
		// Entries written before the outage may outlive this write.
		c.logger.Warn().Err(err).Msg("Room cache may be stale until TTL expiry")
	}
	return nil
}

func (c *RoomCache) enabled() bool {
	return c.redis != nil && c.ttl > 0
}

// available reports whether Redis should be tried, probing again after
// the retry interval once it has been marked down.
func (c *RoomCache) available() bool {
	if !c.enabled() {
		return false
	}
	if !c.isDown.Load() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.lastCheck) < retryInterval {
		return false
	}
	c.lastCheck = time.Now()
	return true
}

func (c *RoomCache) markDown(err error) {
	c.mu.Lock()
	c.lastCheck = time.Now()
	c.mu.Unlock()
	if !c.isDown.Swap(true) {
		c.logger.Error().Err(err).Msg("Redis unavailable, serving rooms without cache")
	}
}

func (c *RoomCache) markUp() {
	if c.isDown.Swap(false) {
		c.logger.Info().Msg("Redis recovered, room cache re-enabled")
	}
}

// key builds a versioned key. ok is false when the cache must be bypassed.
func (c *RoomCache) key(ctx context.Context, suffix string) (string, bool) {
	if !c.available() {
		metrics.IncRoomCache("bypass")
		return "", false
	}
	version, err := c.redis.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.markDown(err)
		metrics.IncRoomCache("error")
		return "", false
	}
	c.markUp()
	return fmt.Sprintf("roombooking:v%d:%s", version, suffix), true
}

func (c *RoomCache) read(ctx context.Context, key string, out any) bool {
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.markDown(err)
		}
		metrics.IncRoomCache("miss")
		return false
	}
	if err := json.Unmarshal(val, out); err != nil {
		metrics.IncRoomCache("miss")
		return false
	}
	metrics.IncRoomCache("hit")
	return true
}

func (c *RoomCache) write(ctx context.Context, key string, val any) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.markDown(err)
	}
}

var _ repository.RoomAdminRepository = (*RoomCache)(nil)
