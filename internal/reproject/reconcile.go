// 包 reproject：矢量与栅格 CRS 对齐，必要时生成变换后的几何副本
package reproject

import (
	"fmt"
	"math"

	"zonal-stats/internal/crs"
	"zonal-stats/internal/geo"
)

// ProjectionError：源与目标 CRS 之间无有效变换路径，或有顶点变换失败
// 约束：仅作用于当前要素，由驱动层降级为 Undefined，不终止批次
type ProjectionError struct {
	Src string
	Dst string
	Err error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("projection %s -> %s: %v", e.Src, e.Dst, e.Err)
}

func (e *ProjectionError) Unwrap() error { return e.Err }

// 文档注释：CRS 协调器
// 背景：每个要素在裁剪前必须处于栅格 CRS；变换按 CRS 对缓存，批次内只解析一次定义。
// 约束：并发安全；返回的几何与输入不共享顶点存储。
type Reconciler struct {
	cache *transformCache
}

func NewReconciler() *Reconciler { return &Reconciler{cache: newTransformCache(16)} }

// Reconcile：将 g 从 src 对齐到 dst
// 返回：src 与 dst 标识一致时原样返回 g（不是副本，调用方不得假设新对象）；否则返回标记为 dst 的新几何。
func (r *Reconciler) Reconcile(g geo.Geometry, src, dst crs.CRS) (geo.Geometry, error) {
	if src.Equal(dst) {
		return g, nil
	}
	t, err := r.transformer(src, dst)
	if err != nil {
		return geo.Geometry{}, err
	}
	out, err := g.MapPoints(dst, func(x, y float64) (float64, float64, error) {
		tx, ty, err := t(x, y)
		if err != nil {
			return 0, 0, err
		}
		if math.IsNaN(tx) || math.IsNaN(ty) || math.IsInf(tx, 0) || math.IsInf(ty, 0) {
			return 0, 0, fmt.Errorf("point (%g, %g) transformed to non-finite coordinate", x, y)
		}
		return tx, ty, nil
	})
	if err != nil {
		return geo.Geometry{}, &ProjectionError{Src: src.ID(), Dst: dst.ID(), Err: err}
	}
	return out, nil
}

func (r *Reconciler) transformer(src, dst crs.CRS) (func(x, y float64) (float64, float64, error), error) {
	key := src.ID() + "->" + dst.ID()
	if t, ok := r.cache.Get(key); ok {
		return t, nil
	}
	perr := func(err error) error { return &ProjectionError{Src: src.ID(), Dst: dst.ID(), Err: err} }
	ssr, err := src.SR()
	if err != nil {
		return nil, perr(err)
	}
	dsr, err := dst.SR()
	if err != nil {
		return nil, perr(err)
	}
	t, err := ssr.NewTransform(dsr)
	if err != nil {
		return nil, perr(err)
	}
	r.cache.Set(key, t)
	return t, nil
}
