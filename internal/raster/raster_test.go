package raster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonal-stats/internal/crs"
	"zonal-stats/internal/geo"
)

// 10x10, 原点 (0,10)，像元 1，值 = row*10+col
func testGrid(t *testing.T) *Grid {
	t.Helper()
	data := make([]float64, 100)
	for i := range data {
		data[i] = float64(i)
	}
	g, err := NewGrid(10, 10, GeoTransform{OriginX: 0, PixelWidth: 1, OriginY: 10, PixelHeight: -1}, crs.CRS{}, data)
	require.NoError(t, err)
	return g
}

func TestGridRead(t *testing.T) {
	g := testGrid(t)
	v, err := g.Read(Window{X: 2, Y: 5, W: 3, H: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{52, 53, 54, 62, 63, 64}, v)

	_, err = g.Read(Window{X: 8, Y: 0, W: 3, H: 1})
	assert.ErrorIs(t, err, ErrWindow)
	_, err = g.Read(Window{})
	assert.ErrorIs(t, err, ErrWindow)
}

func TestNewGridRejects(t *testing.T) {
	_, err := NewGrid(2, 2, GeoTransform{PixelWidth: 1, PixelHeight: -1}, crs.CRS{}, []float64{1, 2, 3})
	assert.Error(t, err)
	_, err = NewGrid(1, 1, GeoTransform{PixelWidth: 1, PixelHeight: -1, RotX: 0.1}, crs.CRS{}, []float64{1})
	assert.ErrorIs(t, err, ErrRotated)
}

func TestWindowFor(t *testing.T) {
	gt := GeoTransform{OriginX: 0, PixelWidth: 1, OriginY: 10, PixelHeight: -1}

	w, ok := gt.WindowFor(geo.BBox{MinX: 2.2, MinY: 2.3, MaxX: 4.9, MaxY: 5.1}, 10, 10)
	require.True(t, ok)
	assert.Equal(t, Window{X: 2, Y: 4, W: 3, H: 4}, w, "snapped outward")

	w, ok = gt.WindowFor(geo.BBox{MinX: -5, MinY: -5, MaxX: 2, MaxY: 2}, 10, 10)
	require.True(t, ok)
	assert.Equal(t, Window{X: 0, Y: 8, W: 2, H: 2}, w, "clamped to extent")

	_, ok = gt.WindowFor(geo.BBox{MinX: 20, MinY: 20, MaxX: 30, MaxY: 30}, 10, 10)
	assert.False(t, ok)
}

func TestPixelSpanAndMapping(t *testing.T) {
	gt := GeoTransform{OriginX: 100, PixelWidth: 2, OriginY: 50, PixelHeight: -2}
	c, r := gt.PixelSpan(geo.BBox{MinX: 0, MinY: 0, MaxX: 5, MaxY: 1.9})
	assert.Equal(t, 2, c)
	assert.Equal(t, 0, r)

	x, y := gt.PixelToGeo(0.5, 0.5)
	assert.Equal(t, 101.0, x)
	assert.Equal(t, 49.0, y)
	col, row := gt.GeoToPixel(x, y)
	assert.Equal(t, 0.5, col)
	assert.Equal(t, 0.5, row)

	assert.Equal(t, geo.BBox{MinX: 100, MinY: 30, MaxX: 120, MaxY: 50}, gt.Extent(10, 10))
	assert.Equal(t, gt, FromGDAL(gt.GDAL()))
}

const sampleASC = `ncols 3
nrows 2
xllcorner 10
yllcorner 20
cellsize 5
NODATA_value -9999
1 2 3
4 -9999 6
`

func TestDecodeASCIIGrid(t *testing.T) {
	g, err := DecodeASCIIGrid(strings.NewReader(sampleASC))
	require.NoError(t, err)
	c, r := g.Size()
	assert.Equal(t, 3, c)
	assert.Equal(t, 2, r)
	assert.Equal(t, GeoTransform{OriginX: 10, PixelWidth: 5, OriginY: 30, PixelHeight: -5}, g.Transform())
	nd, ok := g.NoData()
	assert.True(t, ok)
	assert.Equal(t, -9999.0, nd)
	v, err := g.Read(Window{W: 3, H: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, -9999, 6}, v)
}

func TestDecodeASCIIGridCenterAndDxDy(t *testing.T) {
	in := "NCOLS 2\nNROWS 1\nXLLCENTER 1\nYLLCENTER 1\nDX 2\nDY 1\n7 8\n"
	g, err := DecodeASCIIGrid(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, GeoTransform{OriginX: 0, PixelWidth: 2, OriginY: 1.5, PixelHeight: -1}, g.Transform())
	_, ok := g.NoData()
	assert.False(t, ok)
}

func TestDecodeASCIIGridErrors(t *testing.T) {
	bad := map[string]string{
		"no origin":   "ncols 1\nnrows 1\ncellsize 1\n1\n",
		"no size":     "nrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
		"short data":  "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n",
		"bad value":   "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nx\n",
		"no cellsize": "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\n1\n",
	}
	for name, in := range bad {
		_, err := DecodeASCIIGrid(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestASCIIRoundTripWithPrj(t *testing.T) {
	dir := t.TempDir()
	src, err := DecodeASCIIGrid(strings.NewReader(sampleASC))
	require.NoError(t, err)
	ref, err := crs.EPSG(27700)
	require.NoError(t, err)
	src.ref = ref

	path := filepath.Join(dir, "out.asc")
	require.NoError(t, WriteASCIIGrid(path, src))
	_, err = os.Stat(filepath.Join(dir, "out.prj"))
	require.NoError(t, err)

	back, err := ReadASCIIGrid(path)
	require.NoError(t, err)
	assert.Equal(t, path, back.Path())
	assert.Equal(t, src.Transform(), back.Transform())
	assert.Equal(t, src.data, back.data)
	assert.Equal(t, ref.Def, back.CRS().Def)

	p, ok := PathOf(back)
	assert.True(t, ok)
	assert.Equal(t, path, p)
	_, ok = PathOf(src)
	assert.False(t, ok)
}

func TestWithCRS(t *testing.T) {
	g := testGrid(t)
	ref, err := crs.EPSG(3857)
	require.NoError(t, err)
	assert.Same(t, g, WithCRS(g, crs.CRS{}))
	o := WithCRS(g, ref)
	assert.Equal(t, "EPSG:3857", o.CRS().ID())
	_, ok := PathOf(o)
	assert.False(t, ok)
}

func TestSampleInside(t *testing.T) {
	s := &Sample{Values: []float64{1, 2, 3}}
	assert.Equal(t, 3, s.Inside())
	s.Valid = []bool{true, false, true}
	assert.Equal(t, 2, s.Inside())
}
