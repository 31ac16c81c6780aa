package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"zonal-stats/internal/config"
	"zonal-stats/internal/sink"
	"zonal-stats/internal/store"
	"zonal-stats/internal/utils"
)

var resultsCmd = &cobra.Command{
	Use:   "results [run-id]",
	Short: "Print a stored run from PostgreSQL; without an id, list recent runs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runResults,
}

func init() {
	resultsCmd.Flags().String("pg", "", `PostgreSQL DSN, or "env" for PG_* variables`)
	resultsCmd.Flags().Int("limit", 10, "number of runs to list")
}

func runResults(cmd *cobra.Command, args []string) error {
	dsn, _ := cmd.Flags().GetString("pg")
	if dsn == "" {
		dsn = os.Getenv("ZONAL_SINK_PG")
	}
	if dsn == config.SinkFromEnv {
		dsn = ""
	}
	db, err := utils.OpenPostgres(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	st := store.AttachDB(db)
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	if len(args) == 0 {
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.LatestRuns(ctx, limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %s  %s  p%s  %d/%d defined\n", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Vector,
				strconv.FormatFloat(r.Percentile, 'g', -1, 64), r.Defined, r.Total)
		}
		return nil
	}

	run, rows, err := st.LoadRun(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Run %s (%s, %s)\n", run.ID, run.Raster, run.Vector)
	fmt.Fprintf(w, "Results (Feature ID: %s Percentile):\n", sink.Ordinal(run.Percentile))
	for _, r := range rows {
		v := "N/A"
		if r.Value != nil {
			v = strconv.FormatFloat(*r.Value, 'g', -1, 64)
		}
		fmt.Fprintf(w, "Feature %s: %s\n", r.FeatureID, v)
	}
	return nil
}
