package rmq

import (
	"fmt"
	"strings"

	"github.com/wyfcoding/rmq/xerrors"
)

// Layout 稀疏表的存储布局。两种布局的查询结果完全一致。
type Layout int

const (
	// LayoutGrid 每层一个独立切片，按 [level][i] 寻址。
	LayoutGrid Layout = iota
	// LayoutFlat 所有层连续存放在一段内存中，按 Translate 寻址。
	LayoutFlat
)

func (l Layout) String() string {
	switch l {
	case LayoutGrid:
		return "grid"
	case LayoutFlat:
		return "flat"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout 解析配置中的布局名称，空字符串视为 grid。
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "grid":
		return LayoutGrid, nil
	case "flat":
		return LayoutFlat, nil
	default:
		return LayoutGrid, xerrors.ErrDomain.Derive("unknown sparse table layout %q", s)
	}
}

type options struct {
	layout    Layout
	workers   int
	threshold int
}

// Option 定义构建选项。
type Option func(*options)

// WithLayout 指定存储布局。
func WithLayout(l Layout) Option {
	return func(o *options) {
		o.layout = l
	}
}

// WithParallelism 当单层槽位数不少于 threshold 时，使用 workers 个 goroutine 并发填充该层。
// threshold <= 0 时使用默认阈值。
func WithParallelism(workers, threshold int) Option {
	return func(o *options) {
		o.workers = workers
		o.threshold = threshold
	}
}

func buildOptions(opts []Option) options {
	o := options{layout: LayoutGrid, workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.threshold <= 0 {
		o.threshold = defaultParallelThreshold
	}
	return o
}
