package clip

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonal-stats/internal/crs"
	"zonal-stats/internal/geo"
	"zonal-stats/internal/raster"
)

func ring(x0, y0, x1, y1 float64) []geom.Point {
	return []geom.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}
}

func square(x0, y0, x1, y1 float64) geo.Geometry {
	return geo.Geometry{Polygons: []geom.Polygon{{ring(x0, y0, x1, y1)}}}
}

// 10x10，原点 (0,10)，像元 1，值 = row*10+col
func grid(t *testing.T) *raster.Grid {
	t.Helper()
	data := make([]float64, 100)
	for i := range data {
		data[i] = float64(i)
	}
	ref, err := crs.EPSG(27700)
	require.NoError(t, err)
	g, err := raster.NewGrid(10, 10, raster.GeoTransform{OriginX: 0, PixelWidth: 1, OriginY: 10, PixelHeight: -1}, ref, data)
	require.NoError(t, err)
	return g
}

func inside(s *raster.Sample) []float64 {
	var out []float64
	for i, v := range s.Values {
		if s.Valid == nil || s.Valid[i] {
			out = append(out, v)
		}
	}
	return out
}

func TestMaskSquare(t *testing.T) {
	s, err := MaskClipper{}.Clip(context.Background(), grid(t), square(2, 2, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, 9, s.Inside())
	assert.Equal(t, []float64{52, 53, 54, 62, 63, 64, 72, 73, 74}, inside(s))
}

func TestMaskHole(t *testing.T) {
	g := geo.Geometry{Polygons: []geom.Polygon{{ring(1, 1, 6, 6), ring(2, 2, 5, 5)}}}
	s, err := MaskClipper{}.Clip(context.Background(), grid(t), g)
	require.NoError(t, err)
	assert.Equal(t, 16, s.Inside())
	assert.NotContains(t, inside(s), 63.0)
}

func TestMaskPartiallyOutside(t *testing.T) {
	s, err := MaskClipper{}.Clip(context.Background(), grid(t), square(-2, -2, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, []float64{80, 81, 90, 91}, inside(s))
}

func TestMaskEmpty(t *testing.T) {
	for name, g := range map[string]geo.Geometry{
		"outside": square(20, 20, 25, 25),
		"tiny":    square(2.1, 2.1, 2.6, 2.6),
		"null":    {},
	} {
		_, err := MaskClipper{}.Clip(context.Background(), grid(t), g)
		assert.ErrorIs(t, err, ErrEmpty, name)
	}
}

func TestMaskCarriesNoData(t *testing.T) {
	g := grid(t)
	g.SetNoData(63)
	s, err := MaskClipper{}.Clip(context.Background(), g, square(2, 2, 5, 5))
	require.NoError(t, err)
	assert.True(t, s.HasNoData)
	assert.Equal(t, 63.0, s.NoData)
}

func TestMaskCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := MaskClipper{}.Clip(ctx, grid(t), square(2, 2, 5, 5))
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeBackend struct {
	req     WarpRequest
	sawMask bool
	sawSrc  bool
	out     *Warped
	err     error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Warp(_ context.Context, req WarpRequest) (*Warped, error) {
	f.req = req
	_, err := os.Stat(req.Cutline)
	f.sawMask = err == nil
	_, err = os.Stat(req.Input)
	f.sawSrc = err == nil
	return f.out, f.err
}

func TestCutlineRequestAndCleanup(t *testing.T) {
	tmp := t.TempDir()
	fb := &fakeBackend{out: &Warped{Cols: 2, Rows: 1, Values: []float64{7, 8}, Valid: []bool{true, false}, NoData: -1, HasNoData: true}}
	c := CutlineClipper{Backend: fb, TempDir: tmp}

	s, err := c.Clip(context.Background(), grid(t), square(2, 2, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, inside(s))
	assert.True(t, s.HasNoData)
	assert.Equal(t, -1.0, s.NoData, "source without no-data falls back to output")

	assert.True(t, fb.sawMask)
	assert.True(t, fb.sawSrc)
	assert.Equal(t, "source.asc", filepath.Base(fb.req.Input), "in-memory source materialised")

	sw := strings.Join(fb.req.Switches(), " ")
	assert.Contains(t, sw, "-crop_to_cutline")
	assert.Contains(t, sw, "-tr 1 1")
	assert.Contains(t, sw, "-cutline_srs EPSG:27700")
	assert.Contains(t, sw, "-dstalpha")
	assert.NotContains(t, sw, "-dstnodata")

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch removed")
}

func TestCutlineSourceNoDataWins(t *testing.T) {
	g := grid(t)
	g.SetNoData(-9999)
	fb := &fakeBackend{out: &Warped{Cols: 1, Rows: 1, Values: []float64{1}, NoData: 0, HasNoData: true}}
	s, err := CutlineClipper{Backend: fb, TempDir: t.TempDir()}.Clip(context.Background(), g, square(2, 2, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, -9999.0, s.NoData)
}

func TestCutlineErrors(t *testing.T) {
	tmp := t.TempDir()
	src := grid(t)

	fb := &fakeBackend{err: errors.New("exit status 1")}
	_, err := CutlineClipper{Backend: fb, TempDir: tmp}.Clip(context.Background(), src, square(2, 2, 5, 5))
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "fake", be.Backend)

	fb = &fakeBackend{out: &Warped{}}
	_, err = CutlineClipper{Backend: fb, TempDir: tmp}.Clip(context.Background(), src, square(2, 2, 5, 5))
	assert.ErrorIs(t, err, ErrEmpty)

	fb = &fakeBackend{out: &Warped{Cols: 1, Rows: 1, Values: []float64{1}, Valid: []bool{false}}}
	_, err = CutlineClipper{Backend: fb, TempDir: tmp}.Clip(context.Background(), src, square(2, 2, 5, 5))
	assert.ErrorIs(t, err, ErrEmpty)

	fb = &fakeBackend{err: context.Canceled}
	_, err = CutlineClipper{Backend: fb, TempDir: tmp}.Clip(context.Background(), src, square(2, 2, 5, 5))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.As(err, &be))

	_, err = CutlineClipper{Backend: fb, TempDir: tmp}.Clip(context.Background(), src, square(20, 20, 25, 25))
	assert.ErrorIs(t, err, ErrEmpty)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch removed on every path")
}

func TestCutlineUsesFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dem.asc")
	require.NoError(t, raster.WriteASCIIGrid(path, grid(t)))
	src, err := raster.ReadASCIIGrid(path)
	require.NoError(t, err)

	fb := &fakeBackend{out: &Warped{Cols: 1, Rows: 1, Values: []float64{1}}}
	_, err = CutlineClipper{Backend: fb, TempDir: t.TempDir()}.Clip(context.Background(), src, square(2, 2, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, path, fb.req.Input)
}

func TestScratchRelease(t *testing.T) {
	s, err := NewScratch(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path("x"), []byte("1"), 0o600))
	dir := s.Dir()
	require.NoError(t, s.Release())
	require.NoError(t, s.Release())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestSwitchesWithoutCRS(t *testing.T) {
	sw := WarpRequest{Cutline: "m.geojson", XRes: 30, YRes: -30}.Switches()
	assert.Equal(t, []string{"-of", "GTiff", "-cutline", "m.geojson", "-crop_to_cutline", "-tr", "30", "30", "-dstalpha"}, sw)
}
