package sink

import (
	"context"

	"zonal-stats/internal/migrate"
	"zonal-stats/internal/store"
	"zonal-stats/internal/zonal"
)

// Postgres：把运行与结果写入 _zonal_runs/_zonal_results，首次写入前建表
type Postgres struct {
	Store *store.Store
}

func (Postgres) Name() string { return "postgres" }

func (p Postgres) Write(ctx context.Context, run Run, results []zonal.Result) error {
	if err := migrate.EnsureSchema(p.Store.DB()); err != nil {
		return err
	}
	return p.Store.SaveRun(ctx, StoreRun(run), StoreRows(results))
}

// StoreRun：元数据转换为存储行
func StoreRun(run Run) store.Run {
	return store.Run{
		ID:         run.ID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Raster:     run.Raster,
		Vector:     run.Vector,
		Field:      run.Field,
		Percentile: run.Percentile,
		Strategy:   run.Strategy,
		Total:      run.Counts.Total,
		Defined:    run.Counts.Defined,
		Failed:     run.Counts.Failed,
	}
}

// StoreRows：Undefined 落为 NULL，错误文本仅 Failed 时非空
func StoreRows(results []zonal.Result) []store.Row {
	rows := make([]store.Row, len(results))
	for i, r := range results {
		row := store.Row{Index: r.Index, FeatureID: r.FeatureID, State: r.State.String(), Outcome: string(r.Outcome)}
		if r.Defined {
			v := r.Value
			row.Value = &v
		}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		rows[i] = row
	}
	return rows
}
