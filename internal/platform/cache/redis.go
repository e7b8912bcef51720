package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *Config) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisClient{Client: client}, nil
}

func (c *RedisClient) Close() error {
	return c.Client.Close()
}

// releaseScript deletes the lock only if it still holds our value, so an
// expired lock taken over by another worker is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (c *RedisClient) AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.Client.SetNX(ctx, key, value, ttl).Result()
}

func (c *RedisClient) ReleaseLock(ctx context.Context, key, value string) error {
	return releaseScript.Run(ctx, c.Client, []string{key}, value).Err()
}

// EventSeen is the fast-path dedup read for webhook deliveries. The database
// table stays authoritative; this only short-circuits obvious redeliveries.
func (c *RedisClient) EventSeen(ctx context.Context, eventID string) (bool, error) {
	n, err := c.Client.Exists(ctx, "gateway:event:"+eventID).Result()
	return n > 0, err
}

// MarkEventSeen is called after the event is durably recorded.
func (c *RedisClient) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) error {
	return c.Client.Set(ctx, "gateway:event:"+eventID, "1", ttl).Err()
}
