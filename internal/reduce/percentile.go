// 包 reduce：no-data 过滤与百分位归约
package reduce

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"zonal-stats/internal/raster"
)

// DefaultRank：默认百分位
const DefaultRank = 99.0

var ErrRank = errors.New("reduce: percentile rank must be within [0, 100]")

// ValidateRank：配置阶段校验百分位；NaN 与越界值均拒绝
func ValidateRank(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 100 {
		return fmt.Errorf("%v: %w", p, ErrRank)
	}
	return nil
}

// 文档注释：归约器
// 背景：对单个样本先过滤再计算百分位；Tolerance 为 0 时按哨兵值精确相等过滤。
// 约束：非零 Tolerance 会把接近哨兵值的合法像元一并剔除，属于显式开启的行为变更。
type Reducer struct {
	Rank      float64
	Tolerance float64
}

// Reduce：返回百分位与是否有定义；无有效像元时 ok 为 false
func (r Reducer) Reduce(s *raster.Sample) (float64, bool) {
	return Of(Filter(s, r.Tolerance), r.Rank)
}

// Percentile：精确相等过滤后计算 rank 百分位
func Percentile(s *raster.Sample, rank float64) (float64, bool) {
	return Of(Filter(s, 0), rank)
}

// Filter：按行优先展开样本，剔除掩膜外、NaN 与 no-data 像元
// 返回：新切片，不修改样本
func Filter(s *raster.Sample, tol float64) []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, 0, len(s.Values))
	for i, v := range s.Values {
		if s.Valid != nil && (i >= len(s.Valid) || !s.Valid[i]) {
			continue
		}
		if math.IsNaN(v) {
			continue
		}
		if s.HasNoData && isNoData(v, s.NoData, tol) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func isNoData(v, nd, tol float64) bool {
	if math.IsNaN(nd) {
		return false
	}
	if tol <= 0 {
		return v == nd
	}
	return math.Abs(v-nd) <= tol
}

// Of：对已过滤的值计算百分位，线性插值位置 p/100*(n-1)
// 约束：vals 原地排序；空输入或非法 rank 返回 ok=false
func Of(vals []float64, p float64) (float64, bool) {
	n := len(vals)
	if n == 0 || ValidateRank(p) != nil {
		return 0, false
	}
	sort.Float64s(vals)
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if hi >= n { hi = n - 1 }
	if lo == hi {
		return vals[lo], true
	}
	frac := pos - float64(lo)
	return vals[lo] + (vals[hi]-vals[lo])*frac, true
}
