package redis

import (
	"context"
	"fmt"

	r "github.com/redis/go-redis/v9"

	"github.com/polyglotlab/sosr/pkg/middleware/logger"
)

type Redis struct {
	Host     string
	Port     int
	Password string
	DB       int
}

var redisClient *r.Client

func InitRedis(ctx context.Context, conf *Redis) {
	var err error
	redisClient, err = initRedis(ctx, conf)
	if err != nil {
		logger.Fatalf(ctx, "init redis fail err: %+v", err)
	}
}

func initRedis(ctx context.Context, conf *Redis) (*r.Client, error) {
	client := r.NewClient(&r.Options{
		Addr:     fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Password: conf.Password,
		DB:       conf.DB,
	})
	client.AddHook(&logHook{})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

func CloseRedis(_ context.Context) {
	if redisClient != nil {
		redisClient.Close()
	}
}

// GetClient returns the process-wide redis client.
func GetClient() *r.Client {
	return redisClient
}
