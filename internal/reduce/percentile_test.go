package reduce

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonal-stats/internal/raster"
)

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestOfInterpolates(t *testing.T) {
	cases := []struct {
		p    float64
		want float64
	}{
		{99, 9.91},
		{100, 10},
		{0, 1},
		{50, 5.5},
		{25, 3.25},
	}
	for _, c := range cases {
		v, ok := Of(seq(10), c.p)
		require.True(t, ok, c.p)
		assert.InDelta(t, c.want, v, 1e-9, "p%v", c.p)
	}
}

func TestOfSingleAndEmpty(t *testing.T) {
	v, ok := Of([]float64{42}, 99)
	assert.True(t, ok)
	assert.Equal(t, 42.0, v)

	_, ok = Of(nil, 99)
	assert.False(t, ok)
	_, ok = Of(seq(3), 101)
	assert.False(t, ok)
}

func TestOfOrderIndependent(t *testing.T) {
	want, _ := Of(seq(100), 99)
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		vals := seq(100)
		r.Shuffle(len(vals), func(a, b int) { vals[a], vals[b] = vals[b], vals[a] })
		got, ok := Of(vals, 99)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestFilterNoData(t *testing.T) {
	with := &raster.Sample{Values: []float64{1, -9999, 2, -9999, 3}, NoData: -9999, HasNoData: true}
	without := &raster.Sample{Values: []float64{1, 2, 3}}
	a, okA := Percentile(with, 99)
	b, okB := Percentile(without, 99)
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, b, a, "no-data pixels do not affect the result")
}

func TestFilterAllNoData(t *testing.T) {
	s := &raster.Sample{Values: []float64{-1, -1, -1}, NoData: -1, HasNoData: true}
	assert.Empty(t, Filter(s, 0))
	_, ok := Percentile(s, 99)
	assert.False(t, ok)
}

func TestFilterNaNAndMask(t *testing.T) {
	s := &raster.Sample{
		Values: []float64{math.NaN(), 1, 2, 3, 4},
		Valid:  []bool{true, true, false, true, true},
		NoData: math.NaN(), HasNoData: true,
	}
	assert.Equal(t, []float64{1, 3, 4}, Filter(s, 0))
	assert.Nil(t, Filter(nil, 0))
}

func TestFilterTolerance(t *testing.T) {
	s := &raster.Sample{Values: []float64{-9999.0000001, 5, 6}, NoData: -9999, HasNoData: true}
	assert.Len(t, Filter(s, 0), 3, "exact match by default")
	assert.Equal(t, []float64{5, 6}, Filter(s, 1e-3))

	v, ok := Reducer{Rank: 0, Tolerance: 1e-3}.Reduce(s)
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
}

func TestFilterDoesNotMutate(t *testing.T) {
	s := &raster.Sample{Values: []float64{3, 1, 2}}
	_, _ = Percentile(s, 50)
	assert.Equal(t, []float64{3, 1, 2}, s.Values)
}

func TestValidateRank(t *testing.T) {
	for _, p := range []float64{0, 50, 99, 99.5, 100} {
		assert.NoError(t, ValidateRank(p), p)
	}
	for _, p := range []float64{-1, 100.01, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, ValidateRank(p), ErrRank, p)
	}
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, Summary{Count: 4, Min: 1, Max: 4, Mean: 2.5}, Summarize([]float64{4, 1, 3, 2}))
}
