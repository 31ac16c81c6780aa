package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("PG_USER", "gis")
	t.Setenv("PG_PASSWORD", "s3cret")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "")
	t.Setenv("PG_DB", "")
	t.Setenv("PG_SSLMODE", "require")
	assert.Equal(t, "postgres://gis:s3cret@db:5432/zonalstats?sslmode=require", BuildPostgresDSNFromEnv())
}

func TestOpenPostgresDoesNotDial(t *testing.T) {
	t.Setenv("PG_MAX_OPEN_CONNS", "3")
	db, err := OpenPostgres("postgres://u@127.0.0.1:1/x?sslmode=disable")
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, 3, db.Stats().MaxOpenConnections)
}

func TestOpenRedis(t *testing.T) {
	c, err := OpenRedis("redis://:pw@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)
	_ = c.Close()

	t.Setenv("REDIS_HOST", "r1")
	t.Setenv("REDIS_PORT", "7000")
	t.Setenv("REDIS_DB", "bad")
	c, err = OpenRedis("")
	require.NoError(t, err)
	assert.Equal(t, "r1:7000", c.Options().Addr)
	assert.Equal(t, 0, c.Options().DB)
	_ = c.Close()

	_, err = OpenRedis("redis://cache:notaport/x")
	assert.Error(t, err)
}
