package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Spok95/okr-tracker/internal/table"
)

// Redis — общий кэш для нескольких процессов API.
// Ключи живут внутри "поколения": сброс всего кэша — это один INCR счётчика поколения,
// старые ключи просто истекают по TTL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedis подключается по URL и проверяет соединение.
func NewRedis(redisURL string, ttl time.Duration, log *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisWithClient(client, ttl, log), nil
}

func NewRedisWithClient(client *redis.Client, ttl time.Duration, log *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{client: client, prefix: "okr:tables:", ttl: ttl, log: log}
}

func (c *Redis) genKey() string { return c.prefix + "gen" }

func (c *Redis) key(gen int64, name string) string {
	return fmt.Sprintf("%s%d:%s", c.prefix, gen, name)
}

func (c *Redis) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *Redis) Get(ctx context.Context, name string) (*table.Table, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.log.Warn("redis cache: read generation", zap.Error(err))
		return nil, false
	}
	data, err := c.client.Get(ctx, c.key(gen, name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("redis cache: get", zap.String("table", name), zap.Error(err))
		return nil, false
	}
	var t table.Table
	if err := json.Unmarshal(data, &t); err != nil {
		c.log.Warn("redis cache: decode", zap.String("table", name), zap.Error(err))
		return nil, false
	}
	return &t, true
}

func (c *Redis) Put(ctx context.Context, name string, t *table.Table) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.log.Warn("redis cache: read generation", zap.Error(err))
		return
	}
	data, err := json.Marshal(t)
	if err != nil {
		c.log.Warn("redis cache: encode", zap.String("table", name), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(gen, name), data, c.ttl).Err(); err != nil {
		c.log.Warn("redis cache: set", zap.String("table", name), zap.Error(err))
	}
}

func (c *Redis) Invalidate(ctx context.Context, name string) {
	if name == table.AllTables {
		if err := c.client.Incr(ctx, c.genKey()).Err(); err != nil {
			// до истечения TTL читатели могут видеть старые данные
			c.log.Error("redis cache: invalidate all", zap.Error(err))
		}
		return
	}
	gen, err := c.generation(ctx)
	if err != nil {
		c.log.Error("redis cache: invalidate", zap.String("table", name), zap.Error(err))
		return
	}
	if err := c.client.Del(ctx, c.key(gen, name)).Err(); err != nil {
		c.log.Error("redis cache: invalidate", zap.String("table", name), zap.Error(err))
	}
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}
