package crs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForms(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"EPSG:4326", "EPSG:4326"},
		{"epsg:27700", "EPSG:27700"},
		{" urn:ogc:def:crs:EPSG::3857 ", "EPSG:3857"},
		{"OGC:CRS84", "EPSG:4326"},
		{"urn:ogc:def:crs:OGC:1.3:CRS84", "EPSG:4326"},
		{"EPSG:32633", "EPSG:32633"},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got.ID(), c.in)
		assert.NotEmpty(t, got.Def, c.in)
	}
}

func TestParseUnknown(t *testing.T) {
	for _, in := range []string{"", "foo", "EPSG:99999", "EPSG:abc"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrUnknownCRS, in)
	}
}

func TestUTMZones(t *testing.T) {
	north, err := EPSG(32633)
	require.NoError(t, err)
	assert.Contains(t, north.Def, "+zone=33")
	assert.NotContains(t, north.Def, "+south")

	south, err := EPSG(32755)
	require.NoError(t, err)
	assert.Contains(t, south.Def, "+zone=55 +south")
}

func TestFromDefinitionAuthority(t *testing.T) {
	wkt := `PROJCS["OSGB 1936 / British National Grid",GEOGCS["OSGB 1936",DATUM["OSGB_1936",SPHEROID["Airy 1830",6377563.396,299.3249646,AUTHORITY["EPSG","7001"]],AUTHORITY["EPSG","6277"]],AUTHORITY["EPSG","4277"]],PROJECTION["Transverse_Mercator"],UNIT["metre",1,AUTHORITY["EPSG","9001"]],AUTHORITY["EPSG","27700"]]`
	c := FromDefinition(wkt)
	assert.Equal(t, "EPSG:27700", c.ID())
	assert.True(t, strings.HasPrefix(c.Def, "+proj=tmerc"), "registry definition preferred over WKT")

	code, ok := c.EPSGCode()
	assert.True(t, ok)
	assert.Equal(t, 27700, code)
}

func TestSyntheticID(t *testing.T) {
	a := FromDefinition("+proj=utm +zone=10 +datum=WGS84 +units=m +no_defs")
	b := FromDefinition("  +proj=utm +zone=10 +datum=WGS84 +units=m +no_defs\n")
	c := FromDefinition("+proj=utm +zone=11 +datum=WGS84 +units=m +no_defs")

	assert.True(t, strings.HasPrefix(a.ID(), "DEF:"))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, a.Def, a.String())

	_, ok := a.EPSGCode()
	assert.False(t, ok)
}

func TestZeroValue(t *testing.T) {
	var z CRS
	assert.True(t, z.IsZero())
	assert.Equal(t, "", z.ID())
	_, err := z.SR()
	assert.ErrorIs(t, err, ErrUnknownCRS)
}

func TestSRParses(t *testing.T) {
	for _, code := range []int{4326, 3857, 27700, 32633} {
		c, err := EPSG(code)
		require.NoError(t, err)
		_, err = c.SR()
		assert.NoError(t, err, c.ID())
	}
}
