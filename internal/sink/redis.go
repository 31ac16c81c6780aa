package sink

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"zonal-stats/internal/logger"
	"zonal-stats/internal/zonal"
)

// DefaultRedisTTL：结果键默认保留时长
const DefaultRedisTTL = 24 * time.Hour

// 文档注释：Redis 结果发布
// 背景：HSET zonal:<run-id> <feature-id> <value|"">，元数据写入 zonal:<run-id>:meta，供下游按运行读取。
// 约束：两个键在同一事务管道内写入并设置相同 TTL；TTL <= 0 时使用默认值。
type Redis struct {
	Client redis.Cmdable
	TTL    time.Duration
}

func (Redis) Name() string { return "redis" }

func (s Redis) Write(ctx context.Context, run Run, results []zonal.Result) error {
	key, meta := RedisKeys(run.ID)
	values, info := RedisPayload(run, results)
	ttl := s.TTL
	if ttl <= 0 { ttl = DefaultRedisTTL }
	_, err := s.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key, meta)
		if len(values) > 0 {
			p.HSet(ctx, key, values)
			p.Expire(ctx, key, ttl)
		}
		p.HSet(ctx, meta, info)
		p.Expire(ctx, meta, ttl)
		return nil
	})
	if err != nil {
		return err
	}
	logger.L().Debug("redis_results_published", "key", key, "fields", len(values), "ttl_s", int(ttl.Seconds()))
	return nil
}

func RedisKeys(runID string) (string, string) {
	k := "zonal:" + runID
	return k, k + ":meta"
}

// RedisPayload：结果哈希与元数据哈希；Undefined 写空串
func RedisPayload(run Run, results []zonal.Result) (map[string]any, map[string]any) {
	values := make(map[string]any, len(results))
	for _, r := range results {
		v, _ := FormatValue(r)
		values[r.FeatureID] = v
	}
	info := map[string]any{
		"raster":      run.Raster,
		"vector":      run.Vector,
		"field":       run.Field,
		"percentile":  strconv.FormatFloat(run.Percentile, 'g', -1, 64),
		"strategy":    run.Strategy,
		"started_at":  run.StartedAt.UTC().Format(time.RFC3339),
		"finished_at": run.FinishedAt.UTC().Format(time.RFC3339),
		"total":       run.Counts.Total,
		"defined":     run.Counts.Defined,
		"failed":      run.Counts.Failed,
	}
	return values, info
}
