// 包 clip：把栅格源限制到单个要素多边形，产出逐要素样本
package clip

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"zonal-stats/internal/crs"
	"zonal-stats/internal/geo"
	"zonal-stats/internal/raster"
)

// ErrEmpty：要素与栅格无交集或交集不足一个像元；不属于错误，结果记为 Undefined
var ErrEmpty = errors.New("clip: empty intersection")

// 文档注释：裁剪策略
// 背景：内存掩膜与外部 cutline 两种实现可互换，驱动只依赖本接口。
// 约束：g 已处于 src 的 CRS；空交集返回 ErrEmpty，后端失败返回 *BackendError。
type Clipper interface {
	Clip(ctx context.Context, src raster.Source, g geo.Geometry) (*raster.Sample, error)
}

// BackendError：外部裁剪后端执行失败
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string { return "clip backend " + e.Backend + ": " + e.Err.Error() }

func (e *BackendError) Unwrap() error { return e.Err }

// WarpRequest：一次 cutline 裁剪的全部参数
type WarpRequest struct {
	Input      string
	Output     string
	Cutline    string
	CutlineCRS crs.CRS
	SourceCRS  crs.CRS
	XRes, YRes float64
}

// Switches：gdalwarp 参数（裁剪到 cutline、保持源分辨率、不覆盖 no-data）
// 约束：附加 alpha 波段标记 cutline 外像元，避免依赖 no-data 区分。
func (r WarpRequest) Switches() []string {
	sw := []string{"-of", "GTiff"}
	if !r.SourceCRS.IsZero() {
		sw = append(sw, "-s_srs", r.SourceCRS.String())
	}
	sw = append(sw,
		"-cutline", r.Cutline,
		"-crop_to_cutline",
		"-tr", fmtRes(r.XRes), fmtRes(r.YRes),
		"-dstalpha",
	)
	if !r.CutlineCRS.IsZero() {
		sw = append(sw, "-cutline_srs", r.CutlineCRS.String())
	}
	return sw
}

func fmtRes(v float64) string {
	if v < 0 { v = -v }
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Warped：后端读回的裁剪结果（第一波段全部像元，Valid 来自 alpha 波段，可为 nil）
type Warped struct {
	Cols, Rows int
	Values     []float64
	Valid      []bool
	NoData     float64
	HasNoData  bool
}

// Backend：外部 cutline 裁剪执行器
type Backend interface {
	Name() string
	Warp(ctx context.Context, req WarpRequest) (*Warped, error)
}

func backendErr(name string, format string, args ...any) error {
	return &BackendError{Backend: name, Err: fmt.Errorf(format, args...)}
}
