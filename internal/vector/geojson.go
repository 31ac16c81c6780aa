package vector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"zonal-stats/internal/crs"
	"zonal-stats/internal/geo"
)

var ErrGeoJSON = errors.New("vector: malformed GeoJSON")

type rawCollection struct {
	Type     string            `json:"type"`
	CRS      *rawCRS           `json:"crs"`
	Features []json.RawMessage `json:"features"`
}

// 旧版 GeoJSON（2008）crs 成员：{"type":"name","properties":{"name":"EPSG:3857"}}
type rawCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string      `json:"name"`
		Code json.Number `json:"code"`
	} `json:"properties"`
}

type rawFeature struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

// 文档注释：读取 GeoJSON 要素集
// 背景：几何由 orb/geojson 解码；属性按对象键出现顺序保留，不经 map 打乱。
// 约束：未声明 crs 成员时按 RFC 7946 视为 EPSG:4326；非面几何视为数据错误，整批失败。
func ReadGeoJSON(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := DecodeGeoJSON(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d.Path = path
	return d, nil
}

// DecodeGeoJSON：解码 FeatureCollection 或单个 Feature
func DecodeGeoJSON(b []byte) (*Dataset, error) {
	var head rawCollection
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeoJSON, err)
	}
	feats := head.Features
	switch head.Type {
	case "FeatureCollection":
	case "Feature":
		feats = []json.RawMessage{b}
	default:
		return nil, fmt.Errorf("%w: top-level type %q", ErrGeoJSON, head.Type)
	}
	ref, err := head.CRS.resolve()
	if err != nil {
		return nil, err
	}
	d := &Dataset{Format: FormatGeoJSON, CRS: ref, Features: make([]Feature, 0, len(feats))}
	for i, raw := range feats {
		f, err := decodeFeature(raw, i, ref)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		d.Features = append(d.Features, f)
	}
	return d, nil
}

func (c *rawCRS) resolve() (crs.CRS, error) {
	if c == nil {
		return crs.EPSG(4326)
	}
	switch c.Type {
	case "name":
		return crs.Parse(c.Properties.Name)
	case "EPSG":
		return crs.Parse("EPSG:" + c.Properties.Code.String())
	}
	return crs.CRS{}, fmt.Errorf("%w: crs type %q", ErrGeoJSON, c.Type)
}

func decodeFeature(raw json.RawMessage, idx int, ref crs.CRS) (Feature, error) {
	var rf rawFeature
	if err := json.Unmarshal(raw, &rf); err != nil {
		return Feature{}, fmt.Errorf("%w: %v", ErrGeoJSON, err)
	}
	f := Feature{ID: strconv.Itoa(idx)}
	if id := bytes.TrimSpace(rf.ID); len(id) > 0 && !bytes.Equal(id, []byte("null")) {
		var s string
		if json.Unmarshal(id, &s) == nil {
			f.ID = s
		} else {
			f.ID = string(id)
		}
	}
	g := bytes.TrimSpace(rf.Geometry)
	if len(g) == 0 || bytes.Equal(g, []byte("null")) {
		f.Geometry = geo.Geometry{CRS: ref}
	} else {
		gj, err := geojson.UnmarshalGeometry(g)
		if err != nil {
			return Feature{}, fmt.Errorf("%w: geometry: %v", ErrGeoJSON, err)
		}
		if gj.Coordinates == nil && gj.Type != "" {
			return Feature{}, fmt.Errorf("%s: %w", gj.Type, geo.ErrNotPolygonal)
		}
		if f.Geometry, err = geo.FromOrb(gj.Coordinates, ref); err != nil {
			return Feature{}, err
		}
	}
	attrs, err := orderedObject(rf.Properties)
	if err != nil {
		return Feature{}, err
	}
	f.Attrs = attrs
	return f, nil
}

// orderedObject：逐 token 读取 JSON 对象，保持键顺序；数字以 json.Number 保留原始精度
func orderedObject(raw json.RawMessage) ([]Attribute, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: properties: %v", ErrGeoJSON, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: properties is not an object", ErrGeoJSON)
	}
	var out []Attribute
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: properties: %v", ErrGeoJSON, err)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: property %v: %v", ErrGeoJSON, kt, err)
		}
		out = append(out, Attribute{Name: kt.(string), Value: v})
	}
	return out, nil
}
