// 包 job：一次分区统计运行的装配流程（读取输入、构建驱动、执行、写出结果）
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"zonal-stats/internal/clip"
	"zonal-stats/internal/config"
	"zonal-stats/internal/crs"
	"zonal-stats/internal/logger"
	"zonal-stats/internal/raster"
	"zonal-stats/internal/reduce"
	"zonal-stats/internal/reproject"
	"zonal-stats/internal/sink"
	"zonal-stats/internal/vector"
	"zonal-stats/internal/zonal"
)

// RasterOpener：打开 GDAL 栅格；返回的 io.Closer 在运行结束时关闭
type RasterOpener func(path string) (raster.Source, io.Closer, error)

// 文档注释：运行依赖
// 背景：GDAL 相关实现由入口注入，本包不直接依赖 cgo；测试只使用 ESRI ASCII 与内存后端。
// 约束：OpenGDAL 为空时仅支持 .asc 栅格；Backend 为空时按配置选择 exec 后端。
type Deps struct {
	OpenGDAL RasterOpener
	Backend  clip.Backend
	Observer zonal.Observer
	Sinks    []sink.Sink
	Console  io.Writer
	Log      *slog.Logger
}

// Outcome：运行结果
type Outcome struct {
	Run     sink.Run
	Results []zonal.Result
}

// 文档注释：执行一次运行
// 背景：配置非法、输入无法打开、输出字段冲突属于批次级错误，在处理任何要素前返回；单要素失败不影响返回值。
// 约束：控制台汇总总是输出；其余输出端失败时合并错误返回，结果仍然完整。
func Run(ctx context.Context, cfg config.Config, deps Deps) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := deps.Log
	if l == nil {
		l = logger.L()
	}

	src, closer, err := OpenRaster(cfg.Raster, deps.OpenGDAL)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer.Close()
	}
	if cfg.RasterCRS != "" {
		c, err := crs.Parse(cfg.RasterCRS)
		if err != nil {
			return nil, fmt.Errorf("raster crs: %w", err)
		}
		src = raster.WithCRS(src, c)
	}
	if src.CRS().IsZero() {
		return nil, fmt.Errorf("raster %s declares no CRS; set raster_crs", cfg.Raster)
	}

	ds, err := vector.Read(cfg.Vector)
	if err != nil {
		return nil, err
	}
	if cfg.VectorCRS != "" {
		c, err := crs.Parse(cfg.VectorCRS)
		if err != nil {
			return nil, fmt.Errorf("vector crs: %w", err)
		}
		ds.SetCRS(c)
	}
	if ds.CRS.IsZero() {
		return nil, fmt.Errorf("vector %s declares no CRS; set vector_crs", cfg.Vector)
	}

	sinks := append([]sink.Sink(nil), deps.Sinks...)
	if cfg.Output != "" {
		vs, err := sink.NewVector(cfg.Output, ds, cfg.Field)
		if err != nil {
			return nil, err
		}
		sinks = append([]sink.Sink{vs}, sinks...)
	}

	clipper, err := buildClipper(cfg, deps.Backend)
	if err != nil {
		return nil, err
	}
	d := &zonal.Driver{
		Reconciler: reproject.NewReconciler(),
		Clipper:    clipper,
		Reducer:    reduce.Reducer{Rank: cfg.Percentile, Tolerance: cfg.NoDataTolerance},
		Workers:    cfg.Workers,
		Observer:   deps.Observer,
		Log:        l,
	}
	inputs := make([]zonal.Input, len(ds.Features))
	for i, f := range ds.Features {
		inputs[i] = zonal.Input{ID: f.ID, Geometry: f.Geometry}
	}

	run := sink.Run{
		ID:         uuid.NewString(),
		StartedAt:  time.Now(),
		Raster:     cfg.Raster,
		Vector:     cfg.Vector,
		Field:      cfg.Field,
		Percentile: cfg.Percentile,
		Strategy:   cfg.Strategy,
	}
	l.Info("run_begin", "run", run.ID, "features", len(inputs), "strategy", cfg.Strategy, "percentile", cfg.Percentile,
		"workers", cfg.Workers, "vector_crs", ds.CRS.ID(), "raster_crs", src.CRS().ID())
	results, runErr := d.Run(ctx, src, inputs)
	run.FinishedAt = time.Now()
	run.Counts = zonal.Count(results)
	l.Info("run_done", "run", run.ID, "total", run.Counts.Total, "defined", run.Counts.Defined, "failed", run.Counts.Failed,
		"empty", run.Counts.By[zonal.OutcomeEmpty], "nodata", run.Counts.By[zonal.OutcomeNoData],
		"elapsed_ms", run.FinishedAt.Sub(run.StartedAt).Milliseconds())

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if deps.Console != nil {
		if err := (sink.Console{W: deps.Console}).Write(ctx, run, results); err != nil {
			errs = append(errs, err)
		}
	}
	if runErr == nil {
		if err := sink.Multi(sinks).Write(ctx, run, results); err != nil {
			errs = append(errs, err)
		}
	}
	return &Outcome{Run: run, Results: results}, errors.Join(errs...)
}

// OpenRaster：.asc 使用纯 Go 读取，其余格式交给 GDAL
func OpenRaster(path string, openGDAL RasterOpener) (raster.Source, io.Closer, error) {
	if strings.EqualFold(filepath.Ext(path), ".asc") {
		g, err := raster.ReadASCIIGrid(path)
		if err != nil {
			return nil, nil, err
		}
		return g, nil, nil
	}
	if openGDAL == nil {
		return nil, nil, fmt.Errorf("raster %s: GDAL support not available", path)
	}
	return openGDAL(path)
}

func buildClipper(cfg config.Config, backend clip.Backend) (clip.Clipper, error) {
	if cfg.Strategy == config.StrategyMask {
		return clip.MaskClipper{}, nil
	}
	if backend == nil {
		if cfg.Backend != config.BackendExec {
			return nil, fmt.Errorf("clip backend %q not available", cfg.Backend)
		}
		backend = clip.ExecBackend{Gdalwarp: cfg.Gdalwarp, GdalTranslate: cfg.GdalTranslate}
	}
	return clip.CutlineClipper{Backend: backend, TempDir: cfg.TempDir}, nil
}
