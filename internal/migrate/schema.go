package migrate

import (
	"database/sql"

	"zonal-stats/internal/logger"
)

// 背景：首次写入结果时自动创建运行表与结果表，保障后续 results 子命令查询
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；结果随运行级联删除
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _zonal_runs (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			raster TEXT NOT NULL,
			vector TEXT NOT NULL,
			field TEXT NOT NULL,
			percentile DOUBLE PRECISION NOT NULL,
			strategy TEXT NOT NULL,
			total INT NOT NULL DEFAULT 0,
			defined INT NOT NULL DEFAULT 0,
			failed INT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS _zonal_results (
			run_id TEXT NOT NULL REFERENCES _zonal_runs(id) ON DELETE CASCADE,
			idx INT NOT NULL,
			feature_id TEXT NOT NULL,
			value DOUBLE PRECISION,
			state TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_zonal_results_feature ON _zonal_results(run_id, feature_id)`,
		`CREATE INDEX IF NOT EXISTS idx_zonal_runs_started ON _zonal_runs(started_at DESC)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
