// 包 gdal：基于 airbusgeo/godal 的栅格源与进程内 cutline 裁剪后端（需要 cgo 与 GDAL 运行库）
package gdal

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"

	"zonal-stats/internal/crs"
	"zonal-stats/internal/raster"
)

var registerOnce sync.Once

func register() { registerOnce.Do(godal.RegisterAll) }

// 文档注释：GDAL 数据集栅格源（第一波段）
// 背景：支持 GeoTIFF 等任意 GDAL 可读格式；CRS 来自数据集 WKT。
// 约束：GDAL 句柄非线程安全，Read 以互斥锁串行化；仅支持北向上仿射变换。
type Raster struct {
	mu     sync.Mutex
	ds     *godal.Dataset
	path   string
	gt     raster.GeoTransform
	cols   int
	rows   int
	ref    crs.CRS
	nodata float64
	hasND  bool
}

// Open：打开数据集并读取元数据；失败属于批次级错误
func Open(path string) (*Raster, error) {
	register()
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster %s: %w", path, err)
	}
	r, err := fromDataset(ds, path)
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("open raster %s: %w", path, err)
	}
	return r, nil
}

func fromDataset(ds *godal.Dataset, path string) (*Raster, error) {
	a, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("geotransform: %w", err)
	}
	gt := raster.FromGDAL(a)
	if !gt.NorthUp() {
		return nil, raster.ErrRotated
	}
	st := ds.Structure()
	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("dataset has no raster band")
	}
	r := &Raster{ds: ds, path: path, gt: gt, cols: st.SizeX, rows: st.SizeY}
	if wkt := ds.Projection(); wkt != "" {
		r.ref = crs.FromDefinition(wkt)
	}
	r.nodata, r.hasND = bands[0].NoData()
	return r, nil
}

func (r *Raster) CRS() crs.CRS                   { return r.ref }
func (r *Raster) Transform() raster.GeoTransform { return r.gt }
func (r *Raster) Size() (int, int)               { return r.cols, r.rows }
func (r *Raster) NoData() (float64, bool)        { return r.nodata, r.hasND }
func (r *Raster) Path() string                   { return r.path }

func (r *Raster) Read(w raster.Window) ([]float64, error) {
	if w.Empty() || w.X < 0 || w.Y < 0 || w.X+w.W > r.cols || w.Y+w.H > r.rows {
		return nil, fmt.Errorf("read %+v of %dx%d: %w", w, r.cols, r.rows, raster.ErrWindow)
	}
	buf := make([]float64, w.W*w.H)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ds.Bands()[0].Read(w.X, w.Y, buf, w.W, w.H); err != nil {
		return nil, fmt.Errorf("read band 1: %w", err)
	}
	return buf, nil
}

func (r *Raster) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ds == nil {
		return nil
	}
	err := r.ds.Close()
	r.ds = nil
	return err
}
