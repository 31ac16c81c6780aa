package utils

import (
	"database/sql"
	"os"
	"strconv"

	_ "github.com/lib/pq"
)

// envOr：读取环境变量，缺省时返回 def
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// BuildPostgresDSNFromEnv：由 PG_* 环境变量拼接 DSN
func BuildPostgresDSNFromEnv() string {
	user := envOr("PG_USER", "postgres")
	dsn := "postgres://" + user
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + envOr("PG_HOST", "localhost") + ":" + envOr("PG_PORT", "5432") + "/" + envOr("PG_DB", "zonalstats")
	dsn += "?sslmode=" + envOr("PG_SSLMODE", "disable")
	return dsn
}

// OpenPostgres：打开连接池；dsn 为空时由环境变量拼接
// 约束：PG_MAX_OPEN_CONNS/PG_MAX_IDLE_CONNS 解析失败时保留默认值
func OpenPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = BuildPostgresDSNFromEnv()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	maxOpen, maxIdle := 10, 5
	if n, e := strconv.Atoi(os.Getenv("PG_MAX_OPEN_CONNS")); e == nil {
		maxOpen = n
	}
	if n, e := strconv.Atoi(os.Getenv("PG_MAX_IDLE_CONNS")); e == nil {
		maxIdle = n
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return db, nil
}
