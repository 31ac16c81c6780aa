package geo

import "github.com/ctessum/geom"

// 文档注释：点入多边形判定（Even-Odd）
// 背景：按像元中心逐点判定是否位于要素面内；支持洞与多面结构。
// 约束：同一面的全部环参与奇偶计数，shapefile 多部件面与 GeoJSON 外环+洞均适用；边界上的点不保证归属。
func (g Geometry) Contains(x, y float64) bool {
	for _, p := range g.Polygons {
		if polyContains(p, x, y) {
			return true
		}
	}
	return false
}

func polyContains(p geom.Polygon, x, y float64) bool {
	if len(p) == 0 { return false }
	inside := false
	for _, r := range p {
		if ringCrossings(r, x, y) { inside = !inside }
	}
	return inside
}

// 射线法：返回点向 +X 方向射线与环的交点数是否为奇数
func ringCrossings(ring []geom.Point, x, y float64) bool {
	n := len(ring)
	if n < 3 { return false }
	odd := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].X, ring[i].Y
		xj, yj := ring[j].X, ring[j].Y
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			odd = !odd
		}
	}
	return odd
}

// 快速包围盒过滤
func (b BBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}
