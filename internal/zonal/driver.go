// 包 zonal：逐要素分区统计驱动，编排 CRS 对齐、裁剪与归约，并容忍单要素失败
package zonal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"zonal-stats/internal/clip"
	"zonal-stats/internal/geo"
	"zonal-stats/internal/logger"
	"zonal-stats/internal/raster"
	"zonal-stats/internal/reduce"
	"zonal-stats/internal/reproject"
)

// State：要素处理状态
type State int

const (
	Pending State = iota
	Reconciling
	Clipping
	Reducing
	Done
	Failed
)

var stateNames = [...]string{"pending", "reconciling", "clipping", "reducing", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Outcome：终态细分，用于日志与指标标签
type Outcome string

const (
	OutcomeValue      Outcome = "value"
	OutcomeEmpty      Outcome = "empty"
	OutcomeNoData     Outcome = "nodata"
	OutcomeProjection Outcome = "projection_error"
	OutcomeBackend    Outcome = "backend_error"
	OutcomeError      Outcome = "error"
	OutcomeCanceled   Outcome = "canceled"
)

// Input：驱动输入要素（ID + 几何）
type Input struct {
	ID       string
	Geometry geo.Geometry
}

// 文档注释：单要素结果
// 背景：Defined=false 表示 Undefined，Value 此时无意义；Err 仅在 Failed 时非空，用于诊断。
// 约束：每个结果对应且仅对应一个输入要素，Index 为输入序号。
type Result struct {
	Index     int
	FeatureID string
	Value     float64
	Defined   bool
	State     State
	Outcome   Outcome
	Err       error
	Duration  time.Duration
}

// Observer：状态迁移与终态回调；实现需并发安全（Workers > 1 时会被并发调用）
type Observer interface {
	Transition(featureID string, from, to State)
	Finished(r Result)
}

// 文档注释：分区统计驱动
// 背景：每个要素依次经历 Reconciling → Clipping → Reducing；任一步失败只影响该要素。
// 约束：结果按输入顺序返回，数量恒等于输入数量；不做重试。
type Driver struct {
	Reconciler *reproject.Reconciler
	Clipper    clip.Clipper
	Reducer    reduce.Reducer
	Workers    int
	Observer   Observer
	Log        *slog.Logger
}

// New：按默认参数构建（掩膜裁剪、99 百分位、顺序处理）
func New() *Driver {
	return &Driver{
		Reconciler: reproject.NewReconciler(),
		Clipper:    clip.MaskClipper{},
		Reducer:    reduce.Reducer{Rank: reduce.DefaultRank},
		Workers:    1,
	}
}

// Run：对全部要素计算分区统计
// 返回：N 个结果；ctx 取消时未开始的要素记为 Failed，同时返回 ctx 错误
func (d *Driver) Run(ctx context.Context, src raster.Source, feats []Input) ([]Result, error) {
	if src == nil {
		return nil, errors.New("zonal: nil raster source")
	}
	if err := reduce.ValidateRank(d.Reducer.Rank); err != nil {
		return nil, err
	}
	if d.Reconciler == nil {
		d.Reconciler = reproject.NewReconciler()
	}
	if d.Clipper == nil {
		d.Clipper = clip.MaskClipper{}
	}
	out := make([]Result, len(feats))
	workers := d.Workers
	if workers < 1 { workers = 1 }

	if workers == 1 {
		for i, f := range feats {
			out[i] = d.one(ctx, src, i, f)
		}
		return out, ctx.Err()
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, f := range feats {
		i, f := i, f
		g.Go(func() error {
			out[i] = d.one(ctx, src, i, f)
			return nil
		})
	}
	_ = g.Wait()
	return out, ctx.Err()
}

func (d *Driver) log() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return logger.L()
}

// one：单要素边界；错误与 panic 在此降级为 Undefined
func (d *Driver) one(ctx context.Context, src raster.Source, idx int, f Input) (res Result) {
	start := time.Now()
	res = Result{Index: idx, FeatureID: f.ID, State: Pending}
	state := Pending
	move := func(to State) {
		if d.Observer != nil {
			d.Observer.Transition(f.ID, state, to)
		}
		state = to
		res.State = to
	}
	fail := func(o Outcome, err error) {
		res.Defined, res.Value = false, 0
		res.Outcome, res.Err = o, err
		move(Failed)
	}
	defer func() {
		if p := recover(); p != nil {
			fail(OutcomeError, fmt.Errorf("panic: %v", p))
			d.log().Error("feature_panic", "feature", f.ID, "panic", p, "stack", string(debug.Stack()))
		}
		res.Duration = time.Since(start)
		if d.Observer != nil {
			d.Observer.Finished(res)
		}
	}()

	if err := ctx.Err(); err != nil {
		fail(OutcomeCanceled, err)
		return res
	}

	move(Reconciling)
	g, err := d.Reconciler.Reconcile(f.Geometry, f.Geometry.CRS, src.CRS())
	if err != nil {
		fail(OutcomeProjection, err)
		d.log().Warn("feature_failed", "feature", f.ID, "step", "reconcile", "err", err)
		return res
	}

	move(Clipping)
	s, err := d.Clipper.Clip(ctx, src, g)
	switch {
	case errors.Is(err, clip.ErrEmpty):
		res.Outcome = OutcomeEmpty
		move(Done)
		d.log().Info("clip_empty", "feature", f.ID)
		return res
	case err != nil:
		var be *clip.BackendError
		o := OutcomeError
		if errors.As(err, &be) {
			o = OutcomeBackend
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			o = OutcomeCanceled
		}
		fail(o, err)
		d.log().Warn("feature_failed", "feature", f.ID, "step", "clip", "err", err)
		return res
	}

	move(Reducing)
	vals := reduce.Filter(s, d.Reducer.Tolerance)
	if l := d.log(); l.Enabled(ctx, slog.LevelDebug) {
		sum := reduce.Summarize(vals)
		l.Debug("feature_sample", "feature", f.ID, "rows", s.Rows, "cols", s.Cols, "inside", s.Inside(),
			"valid", sum.Count, "min", sum.Min, "max", sum.Max, "mean", sum.Mean)
	}
	v, ok := reduce.Of(vals, d.Reducer.Rank)
	res.Value, res.Defined = v, ok
	res.Outcome = OutcomeValue
	if !ok {
		res.Outcome = OutcomeNoData
	}
	move(Done)
	return res
}
