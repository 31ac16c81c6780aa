package raster

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"zonal-stats/internal/crs"
)

// ErrASCIIHeader：ESRI ASCII 头部缺失必需字段或取值非法
var ErrASCIIHeader = errors.New("raster: bad ESRI ASCII grid header")

// ASCIIGrid：由 .asc 文件读入的网格，保留文件路径供外部裁剪工具使用
type ASCIIGrid struct {
	*Grid
	path string
}

func (a *ASCIIGrid) Path() string { return a.path }

// 文档注释：读取 ESRI ASCII Grid（.asc）
// 背景：头部支持 xllcorner/xllcenter、cellsize 或 dx/dy、NODATA_value；同名 .prj 存在时作为 CRS。
// 约束：数据按行自北向南；值个数不足 ncols*nrows 视为文件损坏。
func ReadASCIIGrid(path string) (*ASCIIGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := DecodeASCIIGrid(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	prj := strings.TrimSuffix(path, extOf(path)) + ".prj"
	if b, err := os.ReadFile(prj); err == nil && strings.TrimSpace(string(b)) != "" {
		g.ref = crs.FromDefinition(string(b))
	}
	return &ASCIIGrid{Grid: g, path: path}, nil
}

func extOf(p string) string {
	i := strings.LastIndexByte(p, '.')
	if i < 0 || strings.ContainsAny(p[i:], `/\`) {
		return ""
	}
	return p[i:]
}

// DecodeASCIIGrid：从流解码，不处理 .prj
func DecodeASCIIGrid(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)

	hdr := map[string]float64{}
	var first string
	for sc.Scan() {
		tok := sc.Text()
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			first = tok
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("%s without value: %w", tok, ErrASCIIHeader)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("%s=%q: %w", tok, sc.Text(), ErrASCIIHeader)
		}
		hdr[strings.ToLower(tok)] = v
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	cols, rows := int(hdr["ncols"]), int(hdr["nrows"])
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("ncols=%d nrows=%d: %w", cols, rows, ErrASCIIHeader)
	}
	dx, dy := hdr["cellsize"], hdr["cellsize"]
	if v, ok := hdr["dx"]; ok { dx = v }
	if v, ok := hdr["dy"]; ok { dy = v }
	if dx <= 0 || dy <= 0 {
		return nil, fmt.Errorf("cell size %gx%g: %w", dx, dy, ErrASCIIHeader)
	}
	xll, okx := hdr["xllcorner"]
	yll, oky := hdr["yllcorner"]
	if v, ok := hdr["xllcenter"]; ok && !okx { xll, okx = v-dx/2, true }
	if v, ok := hdr["yllcenter"]; ok && !oky { yll, oky = v-dy/2, true }
	if !okx || !oky {
		return nil, fmt.Errorf("missing lower-left origin: %w", ErrASCIIHeader)
	}

	data := make([]float64, 0, cols*rows)
	parse := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("value %d %q: %w", len(data), tok, err)
		}
		data = append(data, v)
		return nil
	}
	if first != "" {
		if err := parse(first); err != nil {
			return nil, err
		}
	}
	for len(data) < cols*rows && sc.Scan() {
		if err := parse(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(data) != cols*rows {
		return nil, fmt.Errorf("expected %d values, got %d", cols*rows, len(data))
	}

	gt := GeoTransform{OriginX: xll, PixelWidth: dx, OriginY: yll + float64(rows)*dy, PixelHeight: -dy}
	g, err := NewGrid(cols, rows, gt, crs.CRS{}, data)
	if err != nil {
		return nil, err
	}
	if v, ok := hdr["nodata_value"]; ok {
		g.SetNoData(v)
	}
	return g, nil
}

// 文档注释：将栅格源整体写出为 ESRI ASCII Grid（附 .prj）
// 背景：内存网格走外部裁剪工具前需要落盘；CRS 定义原样写入 .prj。
// 约束：仅支持北向上；非方形像元写 dx/dy。
func WriteASCIIGrid(path string, src Source) error {
	gt := src.Transform()
	if !gt.NorthUp() {
		return ErrRotated
	}
	cols, rows := src.Size()
	vals, err := src.Read(Window{W: cols, H: rows})
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	ext := gt.Extent(cols, rows)
	fmt.Fprintf(w, "ncols %d\nnrows %d\nxllcorner %s\nyllcorner %s\n", cols, rows, fmtF(ext.MinX), fmtF(ext.MinY))
	dx, dy := abs(gt.PixelWidth), abs(gt.PixelHeight)
	if dx == dy {
		fmt.Fprintf(w, "cellsize %s\n", fmtF(dx))
	} else {
		fmt.Fprintf(w, "dx %s\ndy %s\n", fmtF(dx), fmtF(dy))
	}
	if nd, ok := src.NoData(); ok {
		fmt.Fprintf(w, "NODATA_value %s\n", fmtF(nd))
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 { w.WriteByte(' ') }
			w.WriteString(fmtF(vals[r*cols+c]))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if def := src.CRS().Def; def != "" {
		prj := strings.TrimSuffix(path, extOf(path)) + ".prj"
		return os.WriteFile(prj, []byte(def), 0o644)
	}
	return nil
}

func fmtF(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func abs(v float64) float64 {
	if v < 0 { return -v }
	return v
}
