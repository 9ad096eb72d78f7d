package app

import (
	"strings"

	"github.com/fastinghub/pulse/internal/cache"
)

// RedisClientConfig maps the cache section onto the client's own config
// type. Address and username are trimmed; passwords pass through untouched.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	redis := c.Redis
	return cache.RedisConfig{
		Address:  strings.TrimSpace(redis.Address),
		Username: strings.TrimSpace(redis.Username),
		Password: redis.Password,
		DB:       redis.DB,
		TLS:      redis.TLS,
		Timeout:  redis.Timeout,
	}
}
