package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"zonal-stats/internal/zonal"
)

// Console：以 "Feature <id>: <value|N/A>" 逐行打印结果
type Console struct {
	W io.Writer
}

func (Console) Name() string { return "console" }

func (c Console) Write(_ context.Context, run Run, results []zonal.Result) error {
	w := bufio.NewWriter(c.W)
	fmt.Fprintf(w, "\nResults (Feature ID: %s Percentile):\n", Ordinal(run.Percentile))
	for _, r := range results {
		v, ok := FormatValue(r)
		if !ok {
			v = "N/A"
		}
		fmt.Fprintf(w, "Feature %s: %s\n", r.FeatureID, v)
	}
	return w.Flush()
}
