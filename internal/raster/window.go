package raster

import (
	"math"

	"zonal-stats/internal/geo"
)

// 文档注释：仿射变换（GDAL 六参数顺序）
// 背景：x = OriginX + col*PixelWidth + row*RotX；y = OriginY + col*RotY + row*PixelHeight。
// 约束：北向上栅格 PixelHeight 为负，旋转项为 0。
type GeoTransform struct {
	OriginX, PixelWidth, RotX   float64
	OriginY, RotY, PixelHeight float64
}

// FromGDAL：由 GDAL 六元数组构建
func FromGDAL(a [6]float64) GeoTransform {
	return GeoTransform{OriginX: a[0], PixelWidth: a[1], RotX: a[2], OriginY: a[3], RotY: a[4], PixelHeight: a[5]}
}

func (t GeoTransform) GDAL() [6]float64 {
	return [6]float64{t.OriginX, t.PixelWidth, t.RotX, t.OriginY, t.RotY, t.PixelHeight}
}

func (t GeoTransform) NorthUp() bool {
	return t.RotX == 0 && t.RotY == 0 && t.PixelWidth != 0 && t.PixelHeight != 0
}

// PixelToGeo：像元坐标（可为小数，+0.5 即中心）到地理坐标
func (t GeoTransform) PixelToGeo(col, row float64) (float64, float64) {
	return t.OriginX + col*t.PixelWidth + row*t.RotX, t.OriginY + col*t.RotY + row*t.PixelHeight
}

// GeoToPixel：仅北向上有效
func (t GeoTransform) GeoToPixel(x, y float64) (float64, float64) {
	return (x - t.OriginX) / t.PixelWidth, (y - t.OriginY) / t.PixelHeight
}

// Extent：cols x rows 网格覆盖的地理包围盒
func (t GeoTransform) Extent(cols, rows int) geo.BBox {
	x0, y0 := t.PixelToGeo(0, 0)
	x1, y1 := t.PixelToGeo(float64(cols), float64(rows))
	return geo.BBox{MinX: math.Min(x0, x1), MinY: math.Min(y0, y1), MaxX: math.Max(x0, x1), MaxY: math.Max(y0, y1)}
}

// PixelSpan：包围盒在像元单位下的尺寸（向下取整）
// 约束：任一维 <= 0 表示包围盒小于一个像元，调用方应视为空交集。
func (t GeoTransform) PixelSpan(b geo.BBox) (cols, rows int) {
	cols = int(math.Floor(b.Width() / math.Abs(t.PixelWidth)))
	rows = int(math.Floor(b.Height() / math.Abs(t.PixelHeight)))
	return cols, rows
}

// WindowFor：包围盒向外对齐到像元网格，并裁到栅格范围内
// 返回：窗口与是否非空
func (t GeoTransform) WindowFor(b geo.BBox, cols, rows int) (Window, bool) {
	c0, r0 := t.GeoToPixel(b.MinX, b.MaxY)
	c1, r1 := t.GeoToPixel(b.MaxX, b.MinY)
	cmin, cmax := math.Floor(math.Min(c0, c1)), math.Ceil(math.Max(c0, c1))
	rmin, rmax := math.Floor(math.Min(r0, r1)), math.Ceil(math.Max(r0, r1))
	if math.IsNaN(cmin) || math.IsNaN(rmin) || math.IsInf(cmin, 0) || math.IsInf(rmin, 0) {
		return Window{}, false
	}
	cmin, cmax = math.Max(cmin, 0), math.Min(cmax, float64(cols))
	rmin, rmax = math.Max(rmin, 0), math.Min(rmax, float64(rows))
	w := Window{X: int(cmin), Y: int(rmin), W: int(cmax - cmin), H: int(rmax - rmin)}
	if w.Empty() {
		return Window{}, false
	}
	return w, true
}
