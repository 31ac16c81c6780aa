// 包 crs：坐标参考系标识与定义，统一矢量与栅格两侧的 CRS 表达
package crs

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
)

// ErrUnknownCRS：无法识别的 CRS 文本
var ErrUnknownCRS = errors.New("crs: unknown coordinate reference system")

// 文档注释：坐标参考系
// 背景：标识（authority + code）用于相等判定，定义文本（proj4 或 WKT）用于构建坐标变换。
// 约束：两个 CRS 相等当且仅当标识一致；定义相同但标识不同的 CRS 仍走变换路径，不做隐式跳过。
type CRS struct {
	Authority string
	Code      string
	Def       string
}

// ID：返回 "AUTH:CODE"；无权威编码时以定义文本摘要生成合成标识，零值返回空串
func (c CRS) ID() string {
	if c.Authority != "" && c.Code != "" {
		return strings.ToUpper(c.Authority) + ":" + c.Code
	}
	if c.Def == "" {
		return ""
	}
	sum := sha1.Sum([]byte(strings.TrimSpace(c.Def)))
	return "DEF:" + hex.EncodeToString(sum[:8])
}

func (c CRS) Equal(o CRS) bool { return c.ID() == o.ID() }

func (c CRS) IsZero() bool { return c.Authority == "" && c.Code == "" && c.Def == "" }

// String：优先返回权威标识，供 gdalwarp -cutline_srs 等参数直接使用
func (c CRS) String() string {
	if c.Authority != "" && c.Code != "" {
		return strings.ToUpper(c.Authority) + ":" + c.Code
	}
	return c.Def
}

// EPSGCode：返回整数 EPSG 编码；非 EPSG 权威时 ok 为 false
func (c CRS) EPSGCode() (int, bool) {
	if !strings.EqualFold(c.Authority, "EPSG") {
		return 0, false
	}
	n, err := strconv.Atoi(c.Code)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SR：解析定义文本为 proj 空间参考
func (c CRS) SR() (*proj.SR, error) {
	if c.Def == "" {
		return nil, fmt.Errorf("crs %q: %w", c.ID(), ErrUnknownCRS)
	}
	sr, err := proj.Parse(c.Def)
	if err != nil {
		return nil, fmt.Errorf("crs %q: parse definition: %w", c.ID(), err)
	}
	return sr, nil
}

// EPSG：按编码从内置登记表构建 CRS
func EPSG(code int) (CRS, error) {
	def, ok := lookupEPSG(code)
	if !ok {
		return CRS{}, fmt.Errorf("EPSG:%d: %w", code, ErrUnknownCRS)
	}
	return CRS{Authority: "EPSG", Code: strconv.Itoa(code), Def: def}, nil
}

var wktAuthority = regexp.MustCompile(`AUTHORITY\[\s*"([^"]+)"\s*,\s*"?([0-9A-Za-z]+)"?\s*\]\s*\]\s*$`)
var wkt2ID = regexp.MustCompile(`ID\[\s*"([^"]+)"\s*,\s*"?([0-9]+)"?\s*\]\s*\]\s*$`)

// FromDefinition：由 proj4/WKT 定义构建 CRS
// 背景：.prj 与 GeoTIFF 通常只携带 WKT；若 WKT 顶层带 AUTHORITY/ID 则提取为标识，否则使用合成标识。
func FromDefinition(def string) CRS {
	def = strings.TrimSpace(def)
	c := CRS{Def: def}
	if m := wktAuthority.FindStringSubmatch(def); m != nil {
		c.Authority, c.Code = strings.ToUpper(m[1]), m[2]
	} else if m := wkt2ID.FindStringSubmatch(def); m != nil {
		c.Authority, c.Code = strings.ToUpper(m[1]), m[2]
	}
	// 已知 EPSG 编码优先使用登记表中的 proj4 定义，WKT 方言差异较大
	if n, ok := c.EPSGCode(); ok {
		if d, ok := lookupEPSG(n); ok {
			c.Def = d
		}
	}
	return c
}

// Parse：解析用户或数据集给出的 CRS 文本
// 支持："EPSG:4326"、"epsg:4326"、"urn:ogc:def:crs:EPSG::4326"、"OGC:CRS84"、"+proj=..."、WKT。
func Parse(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CRS{}, ErrUnknownCRS
	}
	up := strings.ToUpper(s)
	switch {
	case up == "OGC:CRS84" || strings.HasSuffix(up, "OGC:1.3:CRS84") || strings.HasSuffix(up, "OGC::CRS84"):
		return EPSG(4326)
	case strings.HasPrefix(up, "URN:OGC:DEF:CRS:EPSG:"):
		parts := strings.Split(up, ":")
		return parseCode(parts[len(parts)-1])
	case strings.HasPrefix(up, "EPSG:"):
		return parseCode(strings.TrimPrefix(up, "EPSG:"))
	case strings.HasPrefix(s, "+"):
		return FromDefinition(s), nil
	case strings.HasPrefix(up, "PROJCS[") || strings.HasPrefix(up, "GEOGCS[") ||
		strings.HasPrefix(up, "PROJCRS[") || strings.HasPrefix(up, "GEOGCRS["):
		return FromDefinition(s), nil
	}
	return CRS{}, fmt.Errorf("%q: %w", s, ErrUnknownCRS)
}

func parseCode(code string) (CRS, error) {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return CRS{}, fmt.Errorf("EPSG code %q: %w", code, ErrUnknownCRS)
	}
	return EPSG(n)
}
