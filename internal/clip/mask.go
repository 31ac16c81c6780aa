package clip

import (
	"context"

	"zonal-stats/internal/geo"
	"zonal-stats/internal/raster"
)

// 文档注释：包围盒 + 点入面掩膜裁剪（纯内存）
// 背景：按包围盒读取最小像元块，再以像元中心逐点判定是否落在多边形内，面外像元置为无效。
// 约束：包围盒任一维不足一个像元即为空交集；读取块向外对齐像元网格并裁到栅格范围。
type MaskClipper struct{}

func (MaskClipper) Clip(ctx context.Context, src raster.Source, g geo.Geometry) (*raster.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, ok := g.Bounds()
	if !ok {
		return nil, ErrEmpty
	}
	gt := src.Transform()
	if !gt.NorthUp() {
		return nil, raster.ErrRotated
	}
	if c, r := gt.PixelSpan(b); c <= 0 || r <= 0 {
		return nil, ErrEmpty
	}
	cols, rows := src.Size()
	w, ok := gt.WindowFor(b, cols, rows)
	if !ok {
		return nil, ErrEmpty
	}
	vals, err := src.Read(w)
	if err != nil {
		return nil, err
	}

	valid := make([]bool, len(vals))
	inside := 0
	for r := 0; r < w.H; r++ {
		for c := 0; c < w.W; c++ {
			x, y := gt.PixelToGeo(float64(w.X+c)+0.5, float64(w.Y+r)+0.5)
			if b.Contains(x, y) && g.Contains(x, y) {
				valid[r*w.W+c] = true
				inside++
			}
		}
	}
	if inside == 0 {
		return nil, ErrEmpty
	}
	nd, has := src.NoData()
	return &raster.Sample{Rows: w.H, Cols: w.W, Values: vals, Valid: valid, NoData: nd, HasNoData: has}, nil
}
