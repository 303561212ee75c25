package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 2 * time.Second

// RedisStore keeps the last session end per visitor in Redis so returning users are
// recognised across processes.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore connects to addr and pings it. ttl bounds how long a visitor is
// remembered; zero means 90 days.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisStore(client, ttl), nil
}

func newRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 90 * 24 * time.Hour
	}
	return &RedisStore{client: client, keyPrefix: "learntrack:last_session:", ttl: ttl}
}

func (s *RedisStore) LastSessionEnd(ctx context.Context, visitor string) (time.Time, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	v, err := s.client.Get(ctx, s.keyPrefix+visitor).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false
	}
	if err != nil {
		log.Printf("[session] redis get last session: %v", err)
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (s *RedisStore) SaveSessionEnd(ctx context.Context, visitor string, t time.Time) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.keyPrefix+visitor, strconv.FormatInt(t.UnixMilli(), 10), s.ttl).Err(); err != nil {
		log.Printf("[session] redis save last session: %v", err)
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
