package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb/geojson"

	"zonal-stats/internal/vector"
	"zonal-stats/internal/zonal"
)

var (
	// ErrFieldExists：结果字段与输入属性重名
	ErrFieldExists = errors.New("sink: output field already exists in input schema")
	// ErrFieldName：结果字段名非法（空，或超出 DBF 10 字符限制）
	ErrFieldName = errors.New("sink: invalid output field name")
)

// 文档注释：矢量文件输出
// 背景：复制输入要素的几何与属性（顺序不变），末尾追加一个数值字段；格式由输出扩展名决定。
// 约束：Undefined 在 GeoJSON 中为 null，在 DBF 中为空字段；字段重名属于配置错误，构造时即拒绝。
type Vector struct {
	path    string
	format  string
	field   string
	dataset *vector.Dataset
}

// NewVector：校验输出格式与字段名
func NewVector(path string, ds *vector.Dataset, field string) (*Vector, error) {
	format, err := vector.FormatOf(path)
	if err != nil {
		return nil, err
	}
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, ErrFieldName
	}
	if format == vector.FormatShapefile && len(field) > 10 {
		return nil, fmt.Errorf("%q longer than 10 characters: %w", field, ErrFieldName)
	}
	if ds.HasField(field) {
		return nil, fmt.Errorf("%q: %w", field, ErrFieldExists)
	}
	return &Vector{path: path, format: format, field: field, dataset: ds}, nil
}

func (v *Vector) Name() string { return "vector" }

func (v *Vector) Write(_ context.Context, _ Run, results []zonal.Result) error {
	if len(results) != len(v.dataset.Features) {
		return fmt.Errorf("sink: %d results for %d features", len(results), len(v.dataset.Features))
	}
	if v.format == vector.FormatShapefile {
		return v.writeShapefile(results)
	}
	f, err := os.Create(v.path)
	if err != nil {
		return err
	}
	if err := WriteGeoJSON(f, v.dataset, v.field, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// 文档注释：写出 GeoJSON 要素集
// 背景：几何由 orb/geojson 编码；属性对象按输入顺序逐键写出；非 EPSG:4326 时保留旧版 crs 成员。
func WriteGeoJSON(w io.Writer, ds *vector.Dataset, field string, results []zonal.Result) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(`{"type":"FeatureCollection"`)
	if id := ds.CRS.ID(); id != "" && id != "EPSG:4326" && ds.CRS.Authority != "" {
		b, _ := json.Marshal(map[string]any{"type": "name", "properties": map[string]string{"name": "urn:ogc:def:crs:" + ds.CRS.Authority + "::" + ds.CRS.Code}})
		bw.WriteString(`,"crs":`)
		bw.Write(b)
	}
	bw.WriteString(`,"features":[`)
	for i, f := range ds.Features {
		if i > 0 { bw.WriteByte(',') }
		bw.WriteString("\n")
		if err := writeFeature(bw, f, field, results[i]); err != nil {
			return fmt.Errorf("feature %s: %w", f.ID, err)
		}
	}
	bw.WriteString("\n]}\n")
	return bw.Flush()
}

func writeFeature(w *bufio.Writer, f vector.Feature, field string, r zonal.Result) error {
	w.WriteString(`{"type":"Feature","id":`)
	id, _ := json.Marshal(f.ID)
	w.Write(id)
	w.WriteString(`,"geometry":`)
	if f.Geometry.IsEmpty() {
		w.WriteString("null")
	} else {
		g, err := geojson.NewGeometry(f.Geometry.Orb()).MarshalJSON()
		if err != nil {
			return err
		}
		w.Write(g)
	}
	w.WriteString(`,"properties":{`)
	for i, a := range f.Attrs {
		if err := writeMember(w, i > 0, a.Name, a.Value); err != nil {
			return err
		}
	}
	var val any
	if r.Defined {
		val = r.Value
	}
	if err := writeMember(w, len(f.Attrs) > 0, field, val); err != nil {
		return err
	}
	w.WriteString("}}")
	return nil
}

func writeMember(w *bufio.Writer, comma bool, k string, v any) error {
	kb, err := json.Marshal(k)
	if err != nil {
		return err
	}
	vb, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if comma { w.WriteByte(',') }
	w.Write(kb)
	w.WriteByte(':')
	w.Write(vb)
	return nil
}

// writeShapefile：DBF 结构沿用输入（GeoJSON 输入时按值推断），追加 FloatField
func (v *Vector) writeShapefile(results []zonal.Result) error {
	fields := v.dataset.Fields
	if fields == nil {
		fields = inferFields(v.dataset)
	}
	all := append(append([]goshp.Field(nil), fields...), goshp.FloatField(v.field, 20, 8))
	enc, err := shp.NewEncoderFromFields(v.path, goshp.POLYGON, all...)
	if err != nil {
		return fmt.Errorf("create shapefile %s: %w", v.path, err)
	}
	for i, f := range v.dataset.Features {
		vals := make([]interface{}, 0, len(all))
		for _, fd := range fields {
			a, _ := f.Attr(fd.String())
			vals = append(vals, dbfValue(a))
		}
		if results[i].Defined {
			vals = append(vals, results[i].Value)
		} else {
			vals = append(vals, "")
		}
		if err := enc.EncodeFields(f.Geometry.Geom(), vals...); err != nil {
			enc.Close()
			return fmt.Errorf("feature %s: %w", f.ID, err)
		}
	}
	enc.Close()
	prj := v.dataset.PRJ
	if prj == "" {
		prj = v.dataset.CRS.Def
	}
	if prj != "" {
		return os.WriteFile(strings.TrimSuffix(v.path, ".shp")+".prj", []byte(prj), 0o644)
	}
	return nil
}

// inferFields：全为整数 -> NumberField，全为数值 -> FloatField，其余 StringField
func inferFields(ds *vector.Dataset) []goshp.Field {
	names := ds.FieldNames()
	out := make([]goshp.Field, 0, len(names))
	for _, n := range names {
		ints, nums := true, true
		for _, f := range ds.Features {
			a, ok := f.Attr(n)
			if !ok || a == nil {
				continue
			}
			switch t := a.(type) {
			case int64:
			case float64:
				ints = false
			case json.Number:
				if _, err := t.Int64(); err != nil {
					ints = false
					if _, err := t.Float64(); err != nil {
						nums = false
					}
				}
			default:
				ints, nums = false, false
			}
		}
		switch {
		case ints && nums:
			out = append(out, goshp.NumberField(n, 18))
		case nums:
			out = append(out, goshp.FloatField(n, 20, 8))
		default:
			out = append(out, goshp.StringField(n, 254))
		}
	}
	return out
}

// dbfValue：转换为 go-shp 可写入的类型（int、float64、string）
func dbfValue(v any) interface{} {
	switch t := v.(type) {
	case nil:
		return ""
	case int64:
		return int(t)
	case float64:
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case bool:
		if t { return "T" }
		return "F"
	case string:
		return t
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
