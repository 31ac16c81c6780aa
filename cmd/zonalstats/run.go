package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"zonal-stats/internal/clip"
	"zonal-stats/internal/config"
	"zonal-stats/internal/gdal"
	"zonal-stats/internal/job"
	"zonal-stats/internal/logger"
	"zonal-stats/internal/metrics"
	"zonal-stats/internal/raster"
	"zonal-stats/internal/sink"
	"zonal-stats/internal/store"
	"zonal-stats/internal/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute a percentile of raster pixels inside every polygon",
	RunE:  runZonal,
}

func init() {
	f := runCmd.Flags()
	f.String("config", "", "YAML job file")
	f.String("raster", "", "raster path (.asc or any GDAL format)")
	f.String("vector", "", "vector path (.geojson, .json, .shp)")
	f.String("output", "", "output vector path; format from extension")
	f.String("field", "", "output field name (default p99)")
	f.Float64("percentile", 0, "percentile rank in [0, 100] (default 99)")
	f.String("strategy", "", "clip strategy: mask | cutline")
	f.String("backend", "", "cutline backend: godal | exec")
	f.Int("workers", 0, "concurrent features (default 1)")
	f.Float64("nodata-tolerance", 0, "absolute tolerance for no-data matching (default exact)")
	f.String("vector-crs", "", "override vector CRS, e.g. EPSG:27700")
	f.String("raster-crs", "", "override raster CRS")
	f.String("tmpdir", "", "scratch directory for cutline clips")
	f.String("pg", "", `PostgreSQL sink: DSN, or "env" for PG_* variables`)
	f.String("redis", "", `Redis sink: redis:// URL, host:port, or "env" for REDIS_* variables`)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("ZONAL_CONFIG")
	}
	if path != "" {
		if err := cfg.LoadYAML(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	str("raster", &cfg.Raster)
	str("vector", &cfg.Vector)
	str("output", &cfg.Output)
	str("field", &cfg.Field)
	str("strategy", &cfg.Strategy)
	str("backend", &cfg.Backend)
	str("vector-crs", &cfg.VectorCRS)
	str("raster-crs", &cfg.RasterCRS)
	str("tmpdir", &cfg.TempDir)
	str("pg", &cfg.SinkPG)
	str("redis", &cfg.SinkRedis)
	if f.Changed("percentile") {
		cfg.Percentile, _ = f.GetFloat64("percentile")
	}
	if f.Changed("nodata-tolerance") {
		cfg.NoDataTolerance, _ = f.GetFloat64("nodata-tolerance")
	}
	if f.Changed("workers") {
		cfg.Workers, _ = f.GetInt("workers")
	}
	return cfg, nil
}

func runZonal(cmd *cobra.Command, _ []string) error {
	l := logger.L()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, l)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}
	metrics.RunsTotal.Inc()

	sinks, cleanup, err := openSinks(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer cleanup()

	deps := job.Deps{
		OpenGDAL: openGDAL,
		Observer: metrics.Observer{},
		Sinks:    sinks,
		Console:  cmd.OutOrStdout(),
		Log:      l,
	}
	if cfg.Strategy == config.StrategyCutline {
		deps.Backend = backendFor(cfg)
	}
	out, err := job.Run(ctx, cfg, deps)
	if out != nil {
		l.Info("run_saved", "run", out.Run.ID, "output", cfg.Output)
	}
	return err
}

func backendFor(cfg config.Config) clip.Backend {
	if cfg.Backend == config.BackendExec {
		return clip.ExecBackend{Gdalwarp: cfg.Gdalwarp, GdalTranslate: cfg.GdalTranslate}
	}
	return gdal.WarpBackend{}
}

func openGDAL(path string) (raster.Source, io.Closer, error) {
	r, err := gdal.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return r, r, nil
}

func openSinks(ctx context.Context, cfg config.Config, l *slog.Logger) ([]sink.Sink, func(), error) {
	var sinks []sink.Sink
	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	if cfg.SinkPG != "" {
		dsn := cfg.SinkPG
		if dsn == config.SinkFromEnv {
			dsn = ""
		}
		db, err := utils.OpenPostgres(dsn)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, db)
		if err := db.PingContext(ctx); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		l.Info("db_open_ok")
		sinks = append(sinks, sink.Postgres{Store: store.AttachDB(db)})
	}
	if cfg.SinkRedis != "" {
		target := cfg.SinkRedis
		if target == config.SinkFromEnv {
			target = ""
		}
		rc, err := utils.OpenRedis(target)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, rc)
		if err := rc.Ping(ctx).Err(); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		l.Info("redis_ping_ok")
		sinks = append(sinks, sink.Redis{Client: rc, TTL: cfg.RedisTTL()})
	}
	return sinks, cleanup, nil
}

func serveMetrics(addr string, l *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", logger.ScrapeMiddleware(l)(metrics.Handler()))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics_listen_error", "addr", addr, "err", err)
		}
	}()
	l.Info("metrics_listen", "addr", addr)
	return srv
}
