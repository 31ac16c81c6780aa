package gdal

import (
	"context"
	"fmt"

	"github.com/airbusgeo/godal"

	"zonal-stats/internal/clip"
)

// WarpBackend：进程内 gdalwarp（godal.Warp），与外部进程后端参数一致
type WarpBackend struct{}

func (WarpBackend) Name() string { return "godal" }

func (b WarpBackend) Warp(ctx context.Context, req clip.WarpRequest) (*clip.Warped, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	register()
	src, err := godal.Open(req.Input)
	if err != nil {
		return nil, &clip.BackendError{Backend: b.Name(), Err: fmt.Errorf("open %s: %w", req.Input, err)}
	}
	defer src.Close()
	out, err := src.Warp(req.Output, req.Switches())
	if err != nil {
		return nil, &clip.BackendError{Backend: b.Name(), Err: err}
	}
	defer out.Close()

	st := out.Structure()
	if st.SizeX <= 0 || st.SizeY <= 0 {
		return nil, clip.ErrEmpty
	}
	bands := out.Bands()
	n := st.SizeX * st.SizeY
	vals := make([]float64, n)
	if err := bands[0].Read(0, 0, vals, st.SizeX, st.SizeY); err != nil {
		return nil, &clip.BackendError{Backend: b.Name(), Err: fmt.Errorf("read band 1: %w", err)}
	}
	w := &clip.Warped{Cols: st.SizeX, Rows: st.SizeY, Values: vals}
	w.NoData, w.HasNoData = bands[0].NoData()
	// 最后一个波段为 -dstalpha 生成的 alpha
	if len(bands) > 1 {
		alpha := make([]float64, n)
		if err := bands[len(bands)-1].Read(0, 0, alpha, st.SizeX, st.SizeY); err != nil {
			return nil, &clip.BackendError{Backend: b.Name(), Err: fmt.Errorf("read alpha: %w", err)}
		}
		w.Valid = make([]bool, n)
		for i, a := range alpha {
			w.Valid[i] = a > 0
		}
	}
	return w, nil
}
