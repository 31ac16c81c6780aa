// 包 store: 提供与 PostgreSQL 的数据访问层，包含运行记录与逐要素结果的读写
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"zonal-stats/internal/logger"
)

// ErrRunNotFound：指定运行不存在
var ErrRunNotFound = errors.New("store: run not found")

// Store: 数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open: 使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return &Store{db: db}, nil
}

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Run: 一次运行的元数据
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Raster     string
	Vector     string
	Field      string
	Percentile float64
	Strategy   string
	Total      int
	Defined    int
	Failed     int
}

// Row: 单要素结果行；Value 为 nil 表示 Undefined
type Row struct {
	Index     int
	FeatureID string
	Value     *float64
	State     string
	Outcome   string
	Error     string
}

// 文档注释：保存一次运行及其全部结果
// 背景：results 子命令按运行 ID 回读；同一 ID 重复保存时覆盖旧结果。
// 约束：单事务写入，任一行失败整体回滚；逐行使用预编译语句。
func (s *Store) SaveRun(ctx context.Context, run Run, rows []Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM _zonal_runs WHERE id=$1", run.ID); err != nil {
		return fmt.Errorf("clear run: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO _zonal_runs(id, started_at, finished_at, raster, vector, field, percentile, strategy, total, defined, failed)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Raster, run.Vector, run.Field, run.Percentile, run.Strategy, run.Total, run.Defined, run.Failed)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _zonal_results(run_id, idx, feature_id, value, state, outcome, error) VALUES($1,$2,$3,$4,$5,$6,$7)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		var v sql.NullFloat64
		if r.Value != nil {
			v = sql.NullFloat64{Float64: *r.Value, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, r.Index, r.FeatureID, v, r.State, r.Outcome, r.Error); err != nil {
			return fmt.Errorf("insert result %d: %w", r.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L().Debug("store_run_saved", "run", run.ID, "rows", len(rows))
	return nil
}

// LoadRun: 按 ID 读取运行与结果（按输入序号排序）
func (s *Store) LoadRun(ctx context.Context, id string) (*Run, []Row, error) {
	var run Run
	row := s.db.QueryRowContext(ctx, `SELECT id, started_at, finished_at, raster, vector, field, percentile, strategy, total, defined, failed
		FROM _zonal_runs WHERE id=$1`, id)
	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Raster, &run.Vector, &run.Field, &run.Percentile, &run.Strategy, &run.Total, &run.Defined, &run.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	rs, err := s.db.QueryContext(ctx, `SELECT idx, feature_id, value, state, outcome, error FROM _zonal_results WHERE run_id=$1 ORDER BY idx`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rs.Close()
	var out []Row
	for rs.Next() {
		var r Row
		var v sql.NullFloat64
		if err := rs.Scan(&r.Index, &r.FeatureID, &v, &r.State, &r.Outcome, &r.Error); err != nil {
			return nil, nil, err
		}
		if v.Valid {
			f := v.Float64
			r.Value = &f
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, nil, err
	}
	logger.L().Debug("store_run_loaded", "run", id, "rows", len(out))
	return &run, out, nil
}

// LatestRuns: 最近的运行记录，供 results 子命令未指定 ID 时列出
func (s *Store) LatestRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 { limit = 10 }
	rs, err := s.db.QueryContext(ctx, `SELECT id, started_at, finished_at, raster, vector, field, percentile, strategy, total, defined, failed
		FROM _zonal_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []Run
	for rs.Next() {
		var r Run
		if err := rs.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Raster, &r.Vector, &r.Field, &r.Percentile, &r.Strategy, &r.Total, &r.Defined, &r.Failed); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rs.Err()
}
