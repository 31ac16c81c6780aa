package clip

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"zonal-stats/internal/logger"
	"zonal-stats/internal/raster"
)

// 文档注释：外部进程后端（gdalwarp + gdal_translate）
// 背景：无 cgo 构建时使用；gdalwarp 输出 GTiff，再由 gdal_translate 拆出第一波段与掩膜波段为 AAIGrid，以纯 Go 读取。
// 约束：可执行文件名可配置；进程受 ctx 约束，取消即终止。
type ExecBackend struct {
	Gdalwarp      string
	GdalTranslate string
}

func (ExecBackend) Name() string { return "exec" }

func (e ExecBackend) Warp(ctx context.Context, req WarpRequest) (*Warped, error) {
	warp, translate := e.Gdalwarp, e.GdalTranslate
	if warp == "" { warp = "gdalwarp" }
	if translate == "" { translate = "gdal_translate" }

	args := append(req.Switches(), "-overwrite", req.Input, req.Output)
	if err := e.run(ctx, warp, args...); err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(req.Output, ".tif")
	values, alpha := base+"_b1.asc", base+"_mask.asc"
	if err := e.run(ctx, translate, "-q", "-of", "AAIGrid", "-b", "1", req.Output, values); err != nil {
		return nil, err
	}
	if err := e.run(ctx, translate, "-q", "-of", "AAIGrid", "-b", "mask", req.Output, alpha); err != nil {
		return nil, err
	}
	vg, err := raster.ReadASCIIGrid(values)
	if err != nil {
		return nil, backendErr(e.Name(), "read %s: %w", values, err)
	}
	mg, err := raster.ReadASCIIGrid(alpha)
	if err != nil {
		return nil, backendErr(e.Name(), "read %s: %w", alpha, err)
	}
	cols, rows := vg.Size()
	if mc, mr := mg.Size(); mc != cols || mr != rows {
		return nil, backendErr(e.Name(), "mask %dx%d does not match band %dx%d", mc, mr, cols, rows)
	}
	full := raster.Window{W: cols, H: rows}
	vals, err := vg.Read(full)
	if err != nil {
		return nil, backendErr(e.Name(), "read band: %w", err)
	}
	mvals, err := mg.Read(full)
	if err != nil {
		return nil, backendErr(e.Name(), "read mask: %w", err)
	}
	valid := make([]bool, len(mvals))
	for i, m := range mvals {
		valid[i] = m > 0
	}
	nd, has := vg.NoData()
	return &Warped{Cols: cols, Rows: rows, Values: vals, Valid: valid, NoData: nd, HasNoData: has}, nil
}

func (e ExecBackend) run(ctx context.Context, bin string, args ...string) error {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	logger.L().Debug("clip_exec", "bin", bin, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(out.String())
		if len(msg) > 512 { msg = msg[:512] }
		return backendErr(e.Name(), "%s: %w: %s", bin, err, msg)
	}
	return nil
}
