package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 5 * time.Second

// ConnectRedis builds the client backing the summary cache and the
// notification fan-out channel, verifying the server is reachable.
func ConnectRedis(url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("database: redis url is required")
	}

	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("database: parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("database: ping redis: %w", err)
	}

	return client, nil
}
