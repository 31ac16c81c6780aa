package reduce

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary：过滤后像元的诊断统计，仅用于 debug 日志，不作为结果输出
type Summary struct {
	Count          int
	Min, Max, Mean float64
}

func Summarize(vals []float64) Summary {
	if len(vals) == 0 {
		return Summary{}
	}
	return Summary{Count: len(vals), Min: floats.Min(vals), Max: floats.Max(vals), Mean: stat.Mean(vals, nil)}
}
