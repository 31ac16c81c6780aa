// 包 utils：PostgreSQL 与 Redis 连接工具，统一环境变量读取
package utils

import (
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"zonal-stats/internal/logger"
)

// OpenRedis：打开 Redis 客户端
// 背景：target 可为 redis:// URL 或 host:port；为空时按 REDIS_HOST/REDIS_PORT/REDIS_PASS/REDIS_DB 组装
// 约束：REDIS_DB 解析失败时忽略并回退到 0
func OpenRedis(target string) (*redis.Client, error) {
	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") {
		opt, err := redis.ParseURL(target)
		if err != nil {
			return nil, err
		}
		logger.L().Debug("redis_url", "addr", opt.Addr, "db", opt.DB)
		return redis.NewClient(opt), nil
	}
	addr := target
	if addr == "" {
		addr = envOr("REDIS_HOST", "127.0.0.1") + ":" + envOr("REDIS_PORT", "6379")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, _ := strconv.Atoi(v); n >= 0 {
			db = n
		}
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db}), nil
}
