package lib

import (
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// GetRedisClient returns the shared client backing the availability
// snapshots and QR path cache. A bad or missing REDIS_HOST yields nil and
// callers fall back to uncached reads.
func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// NewRedisClient replaces the client instance, used by tests to inject a
// mock.
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}
