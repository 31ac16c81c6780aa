// 包 raster：单波段栅格源抽象、仿射变换与逐要素采样结构
package raster

import (
	"errors"
	"fmt"

	"zonal-stats/internal/crs"
)

var (
	// ErrRotated：仿射变换带旋转项，仅支持北向上栅格
	ErrRotated = errors.New("raster: rotated geotransform not supported")
	// ErrWindow：读取窗口越界或尺寸非法
	ErrWindow = errors.New("raster: window out of range")
)

// 文档注释：栅格源
// 背景：统一内存网格、ESRI ASCII 与 GDAL 数据集三类来源；裁剪器只依赖该接口。
// 约束：Read 返回按行优先展开的 w.W*w.H 个值；实现需允许被多个要素并发只读访问。
type Source interface {
	CRS() crs.CRS
	Transform() GeoTransform
	Size() (cols, rows int)
	NoData() (float64, bool)
	Read(w Window) ([]float64, error)
}

// FileBacked：可由外部工具直接打开的栅格源（如 gdalwarp 输入）
type FileBacked interface {
	Path() string
}

// Window：像元坐标下的读取块（列偏移、行偏移、列数、行数）
type Window struct {
	X, Y, W, H int
}

func (w Window) Empty() bool { return w.W <= 0 || w.H <= 0 }

// 文档注释：逐要素栅格样本
// 背景：裁剪结果的行优先二维块；Valid 为 nil 时全部像元有效，否则仅 true 位置参与统计。
// 约束：NoData 继承自栅格源，样本处理完即丢弃，不在要素间共享。
type Sample struct {
	Rows, Cols int
	Values     []float64
	Valid      []bool
	NoData     float64
	HasNoData  bool
}

// Inside：掩膜内像元数（未考虑 no-data）
func (s *Sample) Inside() int {
	if s.Valid == nil {
		return len(s.Values)
	}
	n := 0
	for _, ok := range s.Valid {
		if ok { n++ }
	}
	return n
}

// Grid：内存网格实现，供测试与 ASCII 读取复用
type Grid struct {
	cols, rows int
	gt         GeoTransform
	ref        crs.CRS
	data       []float64
	nodata     float64
	hasNoData  bool
}

// NewGrid：按行优先数据构建网格；数据长度必须等于 cols*rows
func NewGrid(cols, rows int, gt GeoTransform, ref crs.CRS, data []float64) (*Grid, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("grid %dx%d: %w", cols, rows, ErrWindow)
	}
	if len(data) != cols*rows {
		return nil, fmt.Errorf("grid %dx%d: got %d values", cols, rows, len(data))
	}
	if !gt.NorthUp() {
		return nil, ErrRotated
	}
	return &Grid{cols: cols, rows: rows, gt: gt, ref: ref, data: data}, nil
}

// SetNoData：声明 no-data 哨兵值
func (g *Grid) SetNoData(v float64) { g.nodata, g.hasNoData = v, true }

func (g *Grid) CRS() crs.CRS              { return g.ref }
func (g *Grid) Transform() GeoTransform   { return g.gt }
func (g *Grid) Size() (int, int)          { return g.cols, g.rows }
func (g *Grid) NoData() (float64, bool)   { return g.nodata, g.hasNoData }

// Read：复制窗口内的值，返回切片与网格存储不共享
func (g *Grid) Read(w Window) ([]float64, error) {
	if w.Empty() || w.X < 0 || w.Y < 0 || w.X+w.W > g.cols || w.Y+w.H > g.rows {
		return nil, fmt.Errorf("read %+v of %dx%d: %w", w, g.cols, g.rows, ErrWindow)
	}
	out := make([]float64, 0, w.W*w.H)
	for r := w.Y; r < w.Y+w.H; r++ {
		off := r*g.cols + w.X
		out = append(out, g.data[off:off+w.W]...)
	}
	return out, nil
}

// PathOf：返回栅格源的磁盘路径；非文件源返回 false
func PathOf(s Source) (string, bool) {
	if fb, ok := s.(FileBacked); ok && fb.Path() != "" {
		return fb.Path(), true
	}
	return "", false
}

// WithCRS：以给定 CRS 覆盖数据集声明（--raster-crs），其余行为委托原栅格源
func WithCRS(s Source, c crs.CRS) Source {
	if c.IsZero() {
		return s
	}
	return &overrideCRS{Source: s, ref: c}
}

type overrideCRS struct {
	Source
	ref crs.CRS
}

func (o *overrideCRS) CRS() crs.CRS { return o.ref }

func (o *overrideCRS) Path() string {
	p, _ := PathOf(o.Source)
	return p
}
