package initial

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"koo/internal/config"
	"koo/pkg/redis"
	"koo/pkg/zlog"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var redisMu sync.Mutex

// InitRedis 连接 Redis 并注册到 pkg/redis；未配置主机时跳过。
// 已连接时直接复用，连接失败不会被缓存，下次调用重新尝试。
func InitRedis(ctx context.Context, conf *config.Config) error {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redis.IsConnected() {
		return nil
	}
	return initRedis(ctx, conf.RedisConfig)
}

func initRedis(ctx context.Context, c config.RedisConfig) error {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		zlog.Info("redis not configured, skipped")
		return nil
	}
	if c.Port == 0 {
		c.Port = 6379
	}
	addr := c.Addr()

	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping %s: %w", addr, err)
	}

	redis.SetClient(client)
	zlog.Info("redis connected", zap.String("addr", addr))
	return nil
}
