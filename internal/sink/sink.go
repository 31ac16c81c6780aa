// 包 sink：分区统计结果输出（控制台、矢量文件、PostgreSQL、Redis）
package sink

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"zonal-stats/internal/zonal"
)

// Run：一次运行的元数据，随结果一并交给各输出端
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Raster     string
	Vector     string
	Field      string
	Percentile float64
	Strategy   string
	Counts     zonal.Counts
}

// Sink：结果输出端；results 按输入顺序排列
type Sink interface {
	Name() string
	Write(ctx context.Context, run Run, results []zonal.Result) error
}

// Multi：依次写入全部输出端，单个失败不阻止其余输出，错误合并返回
type Multi []Sink

func (m Multi) Name() string { return "multi" }

func (m Multi) Write(ctx context.Context, run Run, results []zonal.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, run, results); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FormatValue：数值文本（最短可回读表示）；Undefined 返回 ok=false
func FormatValue(r zonal.Result) (string, bool) {
	if !r.Defined || math.IsNaN(r.Value) {
		return "", false
	}
	return strconv.FormatFloat(r.Value, 'g', -1, 64), true
}

// Ordinal：百分位序数文本，如 99 -> "99th"、1 -> "1st"、99.5 -> "99.5th"
func Ordinal(p float64) string {
	if p != math.Trunc(p) {
		return strconv.FormatFloat(p, 'f', -1, 64) + "th"
	}
	n := int(p)
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
