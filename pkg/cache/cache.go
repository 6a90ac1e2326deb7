package cache

import (
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// Init 可选的 redis 连接，仅作银行 token 缓存用。
// 未启用时 Client() 返回 nil，调用方退回每次独立取 token。
func Init(cfg *config.PaymentsConfig) {
	if !cfg.Redis.Enabled {
		client = nil
		return
	}
	client = redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
}

func Client() *redis.Client {
	return client
}
