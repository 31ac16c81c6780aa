// 包 vector：矢量要素读取（GeoJSON / Shapefile），保持要素顺序与属性顺序
package vector

import (
	"fmt"
	"path/filepath"
	"strings"

	goshp "github.com/jonas-p/go-shp"

	"zonal-stats/internal/crs"
	"zonal-stats/internal/geo"
)

// Attribute：单个属性（名称 + 值）；值为 nil、bool、string、json.Number/int64/float64
type Attribute struct {
	Name  string
	Value any
}

// 文档注释：要素记录
// 背景：ID 用于结果键控；GeoJSON 取 id 成员，缺省及 Shapefile 均取从 0 开始的记录序号。
// 约束：只读；Geometry 不可原地修改。
type Feature struct {
	ID       string
	Geometry geo.Geometry
	Attrs    []Attribute
}

// Attr：按名称读取属性
func (f Feature) Attr(name string) (any, bool) {
	for _, a := range f.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// 文档注释：矢量数据集
// 背景：Fields 仅 Shapefile 输入携带，用于原样复制 DBF 结构；PRJ 保留原始 .prj 文本便于输出时透传。
type Dataset struct {
	Path     string
	Format   string
	CRS      crs.CRS
	PRJ      string
	Fields   []goshp.Field
	Features []Feature
}

// FieldNames：属性名（Shapefile 取 DBF 结构，GeoJSON 取首次出现顺序的并集）
func (d *Dataset) FieldNames() []string {
	if d.Fields != nil {
		out := make([]string, len(d.Fields))
		for i, f := range d.Fields {
			out[i] = f.String()
		}
		return out
	}
	seen := map[string]bool{}
	var out []string
	for _, f := range d.Features {
		for _, a := range f.Attrs {
			if !seen[a.Name] {
				seen[a.Name] = true
				out = append(out, a.Name)
			}
		}
	}
	return out
}

// HasField：名称比较不区分大小写（DBF 字段名大小写不敏感）
func (d *Dataset) HasField(name string) bool {
	for _, n := range d.FieldNames() {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

const (
	FormatGeoJSON   = "geojson"
	FormatShapefile = "shapefile"
)

// FormatOf：按扩展名判定格式
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	case ".shp":
		return FormatShapefile, nil
	}
	return "", fmt.Errorf("unsupported vector format %q", filepath.Ext(path))
}

// Read：按扩展名读取矢量数据集
func Read(path string) (*Dataset, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if f == FormatShapefile {
		return ReadShapefile(path)
	}
	return ReadGeoJSON(path)
}

// SetCRS：以 c 覆盖数据集与全部要素几何声明的 CRS（--vector-crs），不变换坐标
func (d *Dataset) SetCRS(c crs.CRS) {
	d.CRS = c
	d.PRJ = ""
	for i := range d.Features {
		d.Features[i].Geometry.CRS = c
	}
}
