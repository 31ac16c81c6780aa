package clip

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"

	"zonal-stats/internal/geo"
	"zonal-stats/internal/raster"
)

// 文档注释：cutline 裁剪（外部后端，基于文件）
// 背景：要素以单要素 GeoJSON 掩膜写入临时目录，交由后端按 crop-to-cutline、保持源分辨率裁剪后读回第一波段。
// 约束：不覆盖 no-data；样本 no-data 优先继承源栅格，源未声明时使用裁剪结果的声明值；临时目录在所有路径上释放。
type CutlineClipper struct {
	Backend Backend
	TempDir string
}

func (c CutlineClipper) Clip(ctx context.Context, src raster.Source, g geo.Geometry) (*raster.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Backend == nil {
		return nil, errors.New("clip: cutline clipper without backend")
	}
	b, ok := g.Bounds()
	if !ok || b.Width() <= 0 || b.Height() <= 0 {
		return nil, ErrEmpty
	}
	gt := src.Transform()
	cols, rows := src.Size()
	if _, ok := gt.WindowFor(b, cols, rows); !ok {
		return nil, ErrEmpty
	}

	s, err := NewScratch(c.TempDir)
	if err != nil {
		return nil, fmt.Errorf("scratch: %w", err)
	}
	defer s.Release()

	mask := s.Path("mask.geojson")
	if err := writeMask(mask, g); err != nil {
		return nil, fmt.Errorf("write cutline: %w", err)
	}
	input, ok := raster.PathOf(src)
	if !ok {
		input = s.Path("source.asc")
		if err := raster.WriteASCIIGrid(input, src); err != nil {
			return nil, fmt.Errorf("materialise source: %w", err)
		}
	}
	req := WarpRequest{
		Input:      input,
		Output:     s.Path("clip.tif"),
		Cutline:    mask,
		CutlineCRS: src.CRS(),
		SourceCRS:  src.CRS(),
		XRes:       gt.PixelWidth,
		YRes:       gt.PixelHeight,
	}
	out, err := c.Backend.Warp(ctx, req)
	if err != nil {
		var be *BackendError
		if errors.Is(err, ErrEmpty) || errors.As(err, &be) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &BackendError{Backend: c.Backend.Name(), Err: err}
	}
	if out == nil || out.Cols <= 0 || out.Rows <= 0 || len(out.Values) == 0 {
		return nil, ErrEmpty
	}
	if out.Valid != nil && !anyTrue(out.Valid) {
		return nil, ErrEmpty
	}
	nd, has := src.NoData()
	if !has {
		nd, has = out.NoData, out.HasNoData
	}
	return &raster.Sample{Rows: out.Rows, Cols: out.Cols, Values: out.Values, Valid: out.Valid, NoData: nd, HasNoData: has}, nil
}

func writeMask(path string, g geo.Geometry) error {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(g.Orb()))
	b, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func anyTrue(v []bool) bool {
	for _, ok := range v {
		if ok { return true }
	}
	return false
}
