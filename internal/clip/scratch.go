package clip

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// 文档注释：逐要素临时目录
// 背景：cutline 掩膜、裁剪输出与中间文件都落在该目录；并发要素以 uuid 区分，互不覆盖。
// 约束：获取后立即 defer Release；Release 可重复调用，任何退出路径都会删除目录。
type Scratch struct {
	dir string
}

// NewScratch：在 base 下创建唯一目录；base 为空时使用系统临时目录
func NewScratch(base string) (*Scratch, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "zonal-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Scratch{dir: dir}, nil
}

func (s *Scratch) Dir() string { return s.dir }

// Path：目录内文件路径
func (s *Scratch) Path(name string) string { return filepath.Join(s.dir, name) }

func (s *Scratch) Release() error {
	if s == nil || s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}
