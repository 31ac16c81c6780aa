package crs

import "fmt"

// 文档注释：内置 EPSG 登记表（proj4 定义）
// 背景：纯 Go 变换不依赖 PROJ 数据库，常用地理/投影坐标系以 proj4 文本内置；UTM 分带按编码规则生成。
// 约束：未收录的编码需由数据集 WKT 或 --vector-crs/--raster-crs 给出完整定义。
var epsgDefs = map[int]string{
	4326:  "+proj=longlat +datum=WGS84 +no_defs",
	4269:  "+proj=longlat +datum=NAD83 +no_defs",
	4258:  "+proj=longlat +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +no_defs",
	4283:  "+proj=longlat +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +no_defs",
	4490:  "+proj=longlat +ellps=GRS80 +no_defs",
	3857:  "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs",
	27700: "+proj=tmerc +lat_0=49 +lon_0=-2 +k=0.9996012717 +x_0=400000 +y_0=-100000 +ellps=airy +towgs84=446.448,-125.157,542.06,0.15,0.247,0.842,-20.489 +units=m +no_defs",
	2193:  "+proj=tmerc +lat_0=0 +lon_0=173 +k=0.9996 +x_0=1600000 +y_0=10000000 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	3035:  "+proj=laea +lat_0=52 +lon_0=10 +x_0=4321000 +y_0=3210000 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	5070:  "+proj=aea +lat_1=29.5 +lat_2=45.5 +lat_0=23 +lon_0=-96 +x_0=0 +y_0=0 +datum=NAD83 +units=m +no_defs",
}

func lookupEPSG(code int) (string, bool) {
	if d, ok := epsgDefs[code]; ok {
		return d, true
	}
	switch {
	case code >= 32601 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), true
	case code >= 32701 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), true
	case code >= 26901 && code <= 26923:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=NAD83 +units=m +no_defs", code-26900), true
	case code >= 25828 && code <= 25838:
		return fmt.Sprintf("+proj=utm +zone=%d +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs", code-25800), true
	}
	return "", false
}
