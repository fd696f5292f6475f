package spotify

import (
	"context"
	"encoding/json"
	"time"

	"toptrack/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// TrackCache caches catalog lookups so repeated adds of the same track do not
// burn upstream quota. Misses and cache failures fall through to the API.
type TrackCache interface {
	GetTrack(ctx context.Context, trackID string) (*Track, bool)
	SetTrack(ctx context.Context, trackID string, track *Track)
}

const trackCacheTTL = time.Hour

type RedisTrackCache struct {
	client *redis.Client
}

// NewRedisTrackCache connects to redis and returns nil if the server is not
// reachable; callers degrade gracefully by skipping the cache.
func NewRedisTrackCache(addr, password string) *RedisTrackCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis not reachable at %s, track cache disabled: %v", addr, err)
		return nil
	}
	return &RedisTrackCache{client: client}
}

func (c *RedisTrackCache) GetTrack(ctx context.Context, trackID string) (*Track, bool) {
	data, err := c.client.Get(ctx, trackKey(trackID)).Bytes()
	if err != nil {
		return nil, false
	}

	var track Track
	if err := json.Unmarshal(data, &track); err != nil {
		logger.Warn("Corrupt cache entry for track %s: %v", trackID, err)
		return nil, false
	}
	return &track, true
}

func (c *RedisTrackCache) SetTrack(ctx context.Context, trackID string, track *Track) {
	data, err := json.Marshal(track)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, trackKey(trackID), data, trackCacheTTL).Err(); err != nil {
		logger.Warn("Failed to cache track %s: %v", trackID, err)
	}
}

func trackKey(trackID string) string {
	return "track:" + trackID
}
