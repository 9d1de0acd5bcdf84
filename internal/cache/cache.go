package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Talha-Khalil/bet-you-can-t/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FeedKey holds the rendered public feed.
const FeedKey = "cache:feed"

// DashboardsKey is bumped when every dashboard may be stale at once, such as
// after a user changes the name shown on other people's challenges.
const DashboardsKey = "cache:dashboards"

// DashboardKey holds the rendered challenge list of one challenger.
func DashboardKey(email string) string {
	return "cache:dashboard:" + email
}

// Cache stores rendered views under generation-versioned keys. Bumping a
// generation retires every view stored under the old one, so a fill that
// loaded its data before the bump can never be read after it.
type Cache interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Generations returns the current generation of each key, 0 if it was
	// never bumped.
	Generations(ctx context.Context, keys ...string) ([]int64, error)
	Bump(ctx context.Context, keys ...string) error
}

// ViewKey returns the key a view depending on keys is stored under. The
// first key names the view. Callers must read it before loading the data
// they are about to store.
func ViewKey(ctx context.Context, c Cache, keys ...string) (string, error) {
	gens, err := c.Generations(ctx, keys...)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(gens))
	for i, g := range gens {
		parts[i] = strconv.FormatInt(g, 10)
	}
	return keys[0] + "#" + strings.Join(parts, "."), nil
}

func genKey(key string) string {
	return "gen:" + key
}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

func (c *RedisCache) Generations(ctx context.Context, keys ...string) ([]int64, error) {
	gk := make([]string, len(keys))
	for i, k := range keys {
		gk[i] = genKey(k)
	}
	vals, err := c.rdb.MGet(ctx, gk...).Result()
	if err != nil {
		return nil, err
	}

	gens := make([]int64, len(keys))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if gens[i], err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, fmt.Errorf("generation of %s: %w", keys[i], err)
		}
	}
	return gens, nil
}

// Bump increments each generation. Generation keys carry no TTL; an
// expired counter would restart at 0 and expose views stored under it.
func (c *RedisCache) Bump(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if err := c.rdb.Incr(ctx, genKey(k)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Bump(context.Context, ...string) error                    { return nil }

func (Nop) Generations(_ context.Context, keys ...string) ([]int64, error) {
	return make([]int64, len(keys)), nil
}

// Invalidator retires the views a change makes stale. A new challenge
// retires the public feed and the requester's dashboard. A profile change
// retires the feed and every dashboard, since the user may appear on any
// of them as the challenged party.
type Invalidator struct {
	cache Cache
	log   *zap.Logger
}

func NewInvalidator(c Cache, log *zap.Logger) *Invalidator {
	return &Invalidator{cache: c, log: log}
}

func (i *Invalidator) ChallengeCreated(ctx context.Context, ev models.ChallengeCreated) {
	if err := i.cache.Bump(ctx, FeedKey, DashboardKey(ev.RequesterEmail)); err != nil {
		i.log.Warn("Failed to invalidate cached views", zap.String("email", ev.RequesterEmail), zap.Error(err))
	}
}

func (i *Invalidator) ProfileChanged(ctx context.Context, user models.User) {
	if err := i.cache.Bump(ctx, FeedKey, DashboardsKey); err != nil {
		i.log.Warn("Failed to invalidate cached views", zap.String("email", user.Email), zap.Error(err))
	}
}
