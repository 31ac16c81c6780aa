package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func valid() Config {
	c := Default()
	c.Raster, c.Vector = "dem.asc", "zones.geojson"
	return c
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 99.0, c.Percentile)
	assert.Equal(t, "p99", c.Field)
	assert.Equal(t, StrategyMask, c.Strategy)
	assert.Equal(t, 1, c.Workers)
	assert.Equal(t, 24*time.Hour, c.RedisTTL())
	assert.ErrorIs(t, c.Validate(), ErrMissingInput)
	assert.NoError(t, valid().Validate())
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	require.NoError(t, c.ApplyEnv(envMap(map[string]string{
		"ZONAL_RASTER":      "a.tif",
		"ZONAL_VECTOR":      " b.shp ",
		"ZONAL_PERCENTILE":  "95",
		"ZONAL_WORKERS":     "8",
		"ZONAL_STRATEGY":    "cutline",
		"ZONAL_REDIS_TTL_S": "60",
		"ZONAL_SINK_PG":     "env",
	})))
	assert.Equal(t, "a.tif", c.Raster)
	assert.Equal(t, "b.shp", c.Vector)
	assert.Equal(t, 95.0, c.Percentile)
	assert.Equal(t, 8, c.Workers)
	assert.Equal(t, StrategyCutline, c.Strategy)
	assert.Equal(t, time.Minute, c.RedisTTL())
	assert.Equal(t, SinkFromEnv, c.SinkPG)
	assert.Equal(t, "p99", c.Field, "unset keys keep their value")
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	for _, k := range []string{"ZONAL_PERCENTILE", "ZONAL_WORKERS", "ZONAL_NODATA_TOLERANCE", "ZONAL_REDIS_TTL_S"} {
		c := Default()
		err := c.ApplyEnv(envMap(map[string]string{k: "lots"}))
		assert.ErrorIs(t, err, ErrInvalid, k)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("raster: dem.tif\nvector: zones.shp\npercentile: 90\nworkers: 2\n"), 0o600))

	c := Default()
	require.NoError(t, c.LoadYAML(path))
	assert.Equal(t, 90.0, c.Percentile)
	assert.Equal(t, 2, c.Workers)
	assert.Equal(t, "p99", c.Field, "keys absent from file keep defaults")

	require.NoError(t, c.ApplyEnv(envMap(map[string]string{"ZONAL_WORKERS": "6"})))
	assert.Equal(t, 6, c.Workers, "environment overrides file")
	assert.Equal(t, "dem.tif", c.Raster)

	require.NoError(t, os.WriteFile(path, []byte("workers: [1"), 0o600))
	assert.Error(t, c.LoadYAML(path))
	assert.Error(t, c.LoadYAML(filepath.Join(dir, "missing.yaml")))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty field":   func(c *Config) { c.Field = " " },
		"rank high":     func(c *Config) { c.Percentile = 100.5 },
		"rank negative": func(c *Config) { c.Percentile = -1 },
		"strategy":      func(c *Config) { c.Strategy = "zonal" },
		"backend":       func(c *Config) { c.Backend = "qgis" },
		"workers":       func(c *Config) { c.Workers = 0 },
		"tolerance":     func(c *Config) { c.NoDataTolerance = -0.1 },
		"redis ttl":     func(c *Config) { c.RedisTTLSeconds = -5 },
	}
	for name, mut := range cases {
		c := valid()
		mut(&c)
		assert.ErrorIs(t, c.Validate(), ErrInvalid, name)
	}

	c := valid()
	c.Strategy, c.Backend, c.Percentile = StrategyCutline, BackendExec, 0
	assert.NoError(t, c.Validate())
}
