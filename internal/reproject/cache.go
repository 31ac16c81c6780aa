package reproject

import (
	"container/list"
	"sync"

	"github.com/ctessum/geom/proj"
)

// 文档注释：坐标变换 LRU 缓存（"源ID->目标ID" 为键）
// 背景：同一批次内矢量与栅格 CRS 通常固定，重复解析定义与构建变换代价较高，使用进程内缓存复用。
// 约束：变换函数本身无状态，可被多个要素并发调用；容量不足时淘汰最久未用项。
type transformCache struct {
	mu   sync.Mutex
	cap  int
	lst  *list.List
	dict map[string]*list.Element
}

type kv struct { k string; v proj.Transformer }

func newTransformCache(capacity int) *transformCache {
	if capacity <= 0 { capacity = 16 }
	return &transformCache{cap: capacity, lst: list.New(), dict: make(map[string]*list.Element)}
}

func (c *transformCache) Get(k string) (proj.Transformer, bool) {
	c.mu.Lock(); defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		c.lst.MoveToFront(e)
		return e.Value.(kv).v, true
	}
	return nil, false
}

func (c *transformCache) Set(k string, v proj.Transformer) {
	c.mu.Lock(); defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		e.Value = kv{k: k, v: v}
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(kv{k: k, v: v})
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		if back == nil { break }
		delete(c.dict, back.Value.(kv).k)
		c.lst.Remove(back)
	}
}

func (c *transformCache) Len() int {
	c.mu.Lock(); defer c.mu.Unlock()
	return c.lst.Len()
}
