package vector

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"

	"zonal-stats/internal/crs"
	"zonal-stats/internal/geo"
)

// 文档注释：读取 Shapefile（.shp/.dbf/.prj）
// 背景：几何经 ctessum/geom 解码；DBF 字段顺序与类型原样保留在 Dataset.Fields，数值字段按类型转换。
// 约束：缺少 .prj 时 CRS 为零值，需由 --vector-crs 指定；要素 ID 为从 0 开始的记录序号。
func ReadShapefile(path string) (*Dataset, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer dec.Close()

	d := &Dataset{Path: path, Format: FormatShapefile, Fields: append([]goshp.Field(nil), dec.Fields()...)}
	prj := strings.TrimSuffix(path, extOf(path)) + ".prj"
	if b, err := os.ReadFile(prj); err == nil && strings.TrimSpace(string(b)) != "" {
		d.PRJ = string(b)
		d.CRS = crs.FromDefinition(d.PRJ)
	}
	names := d.FieldNames()
	for i := 0; ; i++ {
		g, vals, more := dec.DecodeRowFields(names...)
		if !more {
			break
		}
		gg, err := geo.FromGeom(g, d.CRS)
		if err != nil {
			return nil, fmt.Errorf("%s record %d: %w", path, i, err)
		}
		f := Feature{ID: strconv.Itoa(i), Geometry: gg, Attrs: make([]Attribute, len(names))}
		for k, n := range names {
			f.Attrs[k] = Attribute{Name: n, Value: typedValue(d.Fields[k], vals[n])}
		}
		d.Features = append(d.Features, f)
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("decode shapefile %s: %w", path, err)
	}
	return d, nil
}

// typedValue：按 DBF 字段类型转换文本；空值为 nil，无法解析时保留原文
func typedValue(f goshp.Field, s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	case 'F':
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	case 'L':
		switch strings.ToUpper(s) {
		case "T", "Y":
			return true
		case "F", "N":
			return false
		}
	}
	return s
}

func extOf(p string) string {
	for i := len(p) - 1; i >= 0 && p[i] != '/' && p[i] != '\\'; i-- {
		if p[i] == '.' {
			return p[i:]
		}
	}
	return ""
}
