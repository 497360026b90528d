// Package idempotency provides short-lived exclusive claims keyed by string,
// used to serialize concurrent commits of the same gateway payment.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "turf:claim:"

// ErrInvalidClaim reports an empty key or a non-positive ttl.
var ErrInvalidClaim = errors.New("invalid claim")

// releaseScript deletes a claim only while it still holds this owner's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClaimer holds claims as SET NX keys with a ttl.
type RedisClaimer struct {
	client    redis.UniversalClient
	keyPrefix string
	owner     string
}

// NewRedisClaimer wraps client. Every claimer instance has its own owner token,
// so it can only release claims it took itself.
func NewRedisClaimer(client redis.UniversalClient, keyPrefix string) (*RedisClaimer, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is nil", ErrInvalidClaim)
	}
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisClaimer{client: client, keyPrefix: keyPrefix, owner: uuid.NewString()}, nil
}

// NewRedisClaimerFromURL parses a redis:// URL and checks the connection.
func NewRedisClaimerFromURL(ctx context.Context, rawURL string) (*RedisClaimer, error) {
	options, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisClaimer(client, "")
}

// Claim sets key if it is absent. It reports false while another owner holds it.
func (claimer *RedisClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := validate(key, ttl); err != nil {
		return false, err
	}
	claimed, err := claimer.client.SetNX(ctx, claimer.keyPrefix+key, claimer.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return claimed, nil
}

// Release drops key when this claimer still owns it.
func (claimer *RedisClaimer) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, claimer.client, []string{claimer.keyPrefix + key}, claimer.owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (claimer *RedisClaimer) Close() error {
	return claimer.client.Close()
}

// MemoryClaimer holds claims in process memory. It serializes commits within
// one instance only.
type MemoryClaimer struct {
	mu     sync.Mutex
	claims map[string]time.Time
	nowFn  func() time.Time
}

// NewMemoryClaimer builds a MemoryClaimer. A nil clock uses time.Now.
func NewMemoryClaimer(now func() time.Time) *MemoryClaimer {
	if now == nil {
		now = time.Now
	}
	return &MemoryClaimer{claims: make(map[string]time.Time), nowFn: now}
}

// Claim records key until ttl elapses.
func (claimer *MemoryClaimer) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if err := validate(key, ttl); err != nil {
		return false, err
	}
	claimer.mu.Lock()
	defer claimer.mu.Unlock()
	now := claimer.nowFn()
	claimer.pruneLocked(now)
	if _, held := claimer.claims[key]; held {
		return false, nil
	}
	claimer.claims[key] = now.Add(ttl)
	return true, nil
}

// Release drops key.
func (claimer *MemoryClaimer) Release(_ context.Context, key string) error {
	claimer.mu.Lock()
	defer claimer.mu.Unlock()
	delete(claimer.claims, key)
	return nil
}

// Len reports how many unexpired claims are held.
func (claimer *MemoryClaimer) Len() int {
	claimer.mu.Lock()
	defer claimer.mu.Unlock()
	claimer.pruneLocked(claimer.nowFn())
	return len(claimer.claims)
}

func (claimer *MemoryClaimer) pruneLocked(now time.Time) {
	for key, expiresAt := range claimer.claims {
		if !now.Before(expiresAt) {
			delete(claimer.claims, key)
		}
	}
}

func validate(key string, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidClaim)
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrInvalidClaim)
	}
	return nil
}
