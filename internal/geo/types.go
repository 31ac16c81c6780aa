// 包 geo：要素几何的最小数据结构与空间判定
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"

	"zonal-stats/internal/crs"
)

var ErrNotPolygonal = errors.New("geo: geometry is not polygonal")

// 文档注释：面几何（携带 CRS）
// 背景：统一承载 Polygon/MultiPolygon；每个面以环列表表达，第一环为外环，其余为洞。
// 约束：读入后视为不可变；坐标变换必须生成新的 Geometry，禁止原地修改，避免污染源数据集。
type Geometry struct {
	Polygons []geom.Polygon
	CRS      crs.CRS
}

// BBox：轴对齐包围盒（minX, minY, maxX, maxY）
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

func (b BBox) Width() float64  { return b.MaxX - b.MinX }
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// IsEmpty：不含任何顶点
func (g Geometry) IsEmpty() bool {
	for _, p := range g.Polygons {
		for _, r := range p {
			if len(r) > 0 {
				return false
			}
		}
	}
	return true
}

// Bounds：计算全部环的包围盒；空几何返回 false
func (g Geometry) Bounds() (BBox, bool) {
	if g.IsEmpty() {
		return BBox{}, false
	}
	b := BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, p := range g.Polygons {
		if len(p) == 0 {
			continue
		}
		pb := p.Bounds()
		if pb.Min.X < b.MinX { b.MinX = pb.Min.X }
		if pb.Min.Y < b.MinY { b.MinY = pb.Min.Y }
		if pb.Max.X > b.MaxX { b.MaxX = pb.Max.X }
		if pb.Max.Y > b.MaxY { b.MaxY = pb.Max.Y }
	}
	return b, true
}

// Clone：深拷贝顶点，CRS 原样保留
func (g Geometry) Clone() Geometry {
	out := Geometry{CRS: g.CRS, Polygons: make([]geom.Polygon, len(g.Polygons))}
	for i, p := range g.Polygons {
		np := make(geom.Polygon, len(p))
		for j, r := range p {
			np[j] = append([]geom.Point(nil), r...)
		}
		out.Polygons[i] = np
	}
	return out
}

// MapPoints：对副本的每个顶点应用 fn，返回标记为 to 的新几何
func (g Geometry) MapPoints(to crs.CRS, fn func(x, y float64) (float64, float64, error)) (Geometry, error) {
	out := g.Clone()
	out.CRS = to
	for _, p := range out.Polygons {
		for _, r := range p {
			for k := range r {
				x, y, err := fn(r[k].X, r[k].Y)
				if err != nil {
					return Geometry{}, err
				}
				r[k] = geom.Point{X: x, Y: y}
			}
		}
	}
	return out, nil
}

// FromGeom：由 ctessum/geom 几何构建（shapefile 解码结果）
func FromGeom(g geom.Geom, c crs.CRS) (Geometry, error) {
	switch t := g.(type) {
	case geom.Polygon:
		return Geometry{Polygons: []geom.Polygon{t}, CRS: c}, nil
	case *geom.Polygon:
		return Geometry{Polygons: []geom.Polygon{*t}, CRS: c}, nil
	case geom.MultiPolygon:
		return Geometry{Polygons: append([]geom.Polygon(nil), t...), CRS: c}, nil
	case geom.Polygonal:
		return Geometry{Polygons: t.Polygons(), CRS: c}, nil
	case nil:
		return Geometry{CRS: c}, nil
	}
	return Geometry{}, fmt.Errorf("%T: %w", g, ErrNotPolygonal)
}

// Geom：转换为 ctessum/geom 几何（单面返回 Polygon，多面返回 MultiPolygon）
func (g Geometry) Geom() geom.Geom {
	if len(g.Polygons) == 1 {
		return g.Polygons[0]
	}
	return geom.MultiPolygon(g.Polygons)
}

// FromOrb：由 orb 几何构建（GeoJSON 解码结果）
func FromOrb(g orb.Geometry, c crs.CRS) (Geometry, error) {
	conv := func(p orb.Polygon) geom.Polygon {
		out := make(geom.Polygon, len(p))
		for i, r := range p {
			ring := make([]geom.Point, len(r))
			for k, pt := range r {
				ring[k] = geom.Point{X: pt[0], Y: pt[1]}
			}
			out[i] = ring
		}
		return out
	}
	switch t := g.(type) {
	case orb.Polygon:
		return Geometry{Polygons: []geom.Polygon{conv(t)}, CRS: c}, nil
	case orb.MultiPolygon:
		out := Geometry{CRS: c}
		for _, p := range t {
			out.Polygons = append(out.Polygons, conv(p))
		}
		return out, nil
	case orb.Bound:
		return FromOrb(t.ToPolygon(), c)
	case nil:
		return Geometry{CRS: c}, nil
	}
	return Geometry{}, fmt.Errorf("%s: %w", g.GeoJSONType(), ErrNotPolygonal)
}

// Orb：转换为 orb 几何，供 GeoJSON 输出与裁剪掩膜写出
func (g Geometry) Orb() orb.Geometry {
	conv := func(p geom.Polygon) orb.Polygon {
		out := make(orb.Polygon, len(p))
		for i, r := range p {
			ring := make(orb.Ring, len(r))
			for k, pt := range r {
				ring[k] = orb.Point{pt.X, pt.Y}
			}
			out[i] = ring
		}
		return out
	}
	if len(g.Polygons) == 1 {
		return conv(g.Polygons[0])
	}
	mp := make(orb.MultiPolygon, len(g.Polygons))
	for i, p := range g.Polygons {
		mp[i] = conv(p)
	}
	return mp
}
