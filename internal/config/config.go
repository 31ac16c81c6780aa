// 包 config：运行配置（默认值 < YAML 任务文件 < 环境变量 < 命令行参数）
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"zonal-stats/internal/reduce"
)

var (
	ErrMissingInput = errors.New("config: raster and vector inputs are required")
	ErrInvalid      = errors.New("config: invalid value")
)

const (
	StrategyMask    = "mask"
	StrategyCutline = "cutline"
	BackendGodal    = "godal"
	BackendExec     = "exec"

	// SinkFromEnv：sink_pg / sink_redis 取该值时按 PG_* / REDIS_* 环境变量连接
	SinkFromEnv = "env"
)

// Config：一次运行的全部参数
type Config struct {
	Raster          string  `yaml:"raster"`
	Vector          string  `yaml:"vector"`
	Output          string  `yaml:"output"`
	Field           string  `yaml:"field"`
	Percentile      float64 `yaml:"percentile"`
	Strategy        string  `yaml:"strategy"`
	Backend         string  `yaml:"clip_backend"`
	Workers         int     `yaml:"workers"`
	NoDataTolerance float64 `yaml:"nodata_tolerance"`
	VectorCRS       string  `yaml:"vector_crs"`
	RasterCRS       string  `yaml:"raster_crs"`
	TempDir         string  `yaml:"tmpdir"`
	Gdalwarp        string  `yaml:"gdalwarp"`
	GdalTranslate   string  `yaml:"gdal_translate"`
	SinkPG          string  `yaml:"sink_pg"`
	SinkRedis       string  `yaml:"sink_redis"`
	RedisTTLSeconds int     `yaml:"redis_ttl_s"`
	MetricsAddr     string  `yaml:"metrics_addr"`
}

// Default：内置默认值
func Default() Config {
	return Config{
		Field:           "p99",
		Percentile:      reduce.DefaultRank,
		Strategy:        StrategyMask,
		Backend:         BackendGodal,
		Workers:         1,
		Gdalwarp:        "gdalwarp",
		GdalTranslate:   "gdal_translate",
		RedisTTLSeconds: 86400,
	}
}

// LoadEnvFiles：加载 .env 与 data/env/.env（已存在的环境变量不被覆盖）
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// LoadYAML：读取任务文件覆盖当前值；文件中未出现的键保持原值
func (c *Config) LoadYAML(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ApplyEnv：以 ZONAL_* 环境变量覆盖；getenv 通常为 os.Getenv
// 约束：数值解析失败属于配置错误，不静默回退
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("ZONAL_RASTER", &c.Raster)
	str("ZONAL_VECTOR", &c.Vector)
	str("ZONAL_OUTPUT", &c.Output)
	str("ZONAL_FIELD", &c.Field)
	str("ZONAL_STRATEGY", &c.Strategy)
	str("ZONAL_CLIP_BACKEND", &c.Backend)
	str("ZONAL_VECTOR_CRS", &c.VectorCRS)
	str("ZONAL_RASTER_CRS", &c.RasterCRS)
	str("ZONAL_TMPDIR", &c.TempDir)
	str("ZONAL_GDALWARP", &c.Gdalwarp)
	str("ZONAL_GDAL_TRANSLATE", &c.GdalTranslate)
	str("ZONAL_SINK_PG", &c.SinkPG)
	str("ZONAL_SINK_REDIS", &c.SinkRedis)
	str("METRICS_ADDR", &c.MetricsAddr)

	if v := strings.TrimSpace(getenv("ZONAL_PERCENTILE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ZONAL_PERCENTILE=%q: %w", v, ErrInvalid)
		}
		c.Percentile = f
	}
	if v := strings.TrimSpace(getenv("ZONAL_NODATA_TOLERANCE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ZONAL_NODATA_TOLERANCE=%q: %w", v, ErrInvalid)
		}
		c.NoDataTolerance = f
	}
	if v := strings.TrimSpace(getenv("ZONAL_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ZONAL_WORKERS=%q: %w", v, ErrInvalid)
		}
		c.Workers = n
	}
	if v := strings.TrimSpace(getenv("ZONAL_REDIS_TTL_S")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ZONAL_REDIS_TTL_S=%q: %w", v, ErrInvalid)
		}
		c.RedisTTLSeconds = n
	}
	return nil
}

// Validate：在处理任何要素之前拒绝非法配置
func (c Config) Validate() error {
	if strings.TrimSpace(c.Raster) == "" || strings.TrimSpace(c.Vector) == "" {
		return ErrMissingInput
	}
	if strings.TrimSpace(c.Field) == "" {
		return fmt.Errorf("field name is empty: %w", ErrInvalid)
	}
	if err := reduce.ValidateRank(c.Percentile); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch c.Strategy {
	case StrategyMask, StrategyCutline:
	default:
		return fmt.Errorf("strategy %q: %w", c.Strategy, ErrInvalid)
	}
	switch c.Backend {
	case BackendGodal, BackendExec:
	default:
		return fmt.Errorf("clip backend %q: %w", c.Backend, ErrInvalid)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers %d: %w", c.Workers, ErrInvalid)
	}
	if math.IsNaN(c.NoDataTolerance) || c.NoDataTolerance < 0 {
		return fmt.Errorf("nodata tolerance %v: %w", c.NoDataTolerance, ErrInvalid)
	}
	if c.RedisTTLSeconds < 0 {
		return fmt.Errorf("redis ttl %d: %w", c.RedisTTLSeconds, ErrInvalid)
	}
	return nil
}

func (c Config) RedisTTL() time.Duration { return time.Duration(c.RedisTTLSeconds) * time.Second }
