package zonal

// Counts：按终态细分统计结果数量，供 run_done 日志与持久化元数据使用
type Counts struct {
	Total   int
	Defined int
	Failed  int
	By      map[Outcome]int
}

func Count(rs []Result) Counts {
	c := Counts{Total: len(rs), By: map[Outcome]int{}}
	for _, r := range rs {
		c.By[r.Outcome]++
		if r.Defined { c.Defined++ }
		if r.State == Failed { c.Failed++ }
	}
	return c
}
