package remap

import (
	"fmt"
	"sort"

	"remap/pkg/contract"
)

// Step: 链上的一个已解析 Stage（规范化结果已缓存）。
type Step struct {
	From  contract.Category
	To    contract.Category
	Cover Cover
}

// Chain: 从 source 沿 To 走到 terminal 的已解析 Stage 序列。
// 构造期完成全部校验与规范化；运行期按下标前进，不再做名称查找。
// 构造后不可变，可并发共享。
type Chain struct {
	steps    []Step
	index    map[contract.Category]int
	source   contract.Category
	terminal contract.Category
	dom      Domain
	unused   []contract.Category
}

// BuildChain 解析 stages 为链。
// 错误（均为构造期致命错误，驱动不得启动）：
//   - 链上引用未定义类别：ErrUnknownCategory
//   - 沿 To 回到已访问类别：ErrCycle
//   - Stage 自身非法：ErrEmptyStage / ErrMalformedRule 等
//
// source==terminal 合法，得到零步链（恒等）。
func BuildChain(stages map[contract.Category]contract.Stage, source, terminal contract.Category, dom Domain) (*Chain, error) {
	if source == "" || terminal == "" {
		return nil, fmt.Errorf("%w: source/terminal category not set", contract.ErrInvalidInput)
	}
	if err := dom.Validate(); err != nil {
		return nil, err
	}
	c := &Chain{
		index:    make(map[contract.Category]int),
		source:   source,
		terminal: terminal,
		dom:      dom,
	}
	visited := make(map[contract.Category]bool, len(stages))
	for cur := source; cur != terminal; {
		if visited[cur] {
			return nil, fmt.Errorf("%w: %q revisited after %v", contract.ErrCycle, cur, c.Path())
		}
		visited[cur] = true
		st, ok := stages[cur]
		if !ok {
			return nil, fmt.Errorf("%w: %q (path %v, terminal %q)", contract.ErrUnknownCategory, cur, c.Path(), terminal)
		}
		if st.From != cur {
			return nil, fmt.Errorf("%w: stage keyed %q declares from %q", contract.ErrInvariantViolation, cur, st.From)
		}
		if err := contract.ValidateStage(st); err != nil {
			return nil, err
		}
		cov, err := Normalize(st.Rules, dom)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", cur, err)
		}
		c.index[cur] = len(c.steps)
		c.steps = append(c.steps, Step{From: st.From, To: st.To, Cover: cov})
		cur = st.To
	}
	for cat := range stages {
		if !visited[cat] {
			c.unused = append(c.unused, cat)
		}
	}
	sort.Slice(c.unused, func(i, j int) bool { return c.unused[i] < c.unused[j] })
	return c, nil
}

// Len 链上 Stage 数。
func (c *Chain) Len() int { return len(c.steps) }

// Source 起始类别。
func (c *Chain) Source() contract.Category { return c.source }

// Terminal 终止类别。
func (c *Chain) Terminal() contract.Category { return c.terminal }

// Domain 规范化所用值域。
func (c *Chain) Domain() Domain { return c.dom }

// Step 返回第 i 个已解析 Stage（只读使用）。
func (c *Chain) Step(i int) Step { return c.steps[i] }

// Unused 返回未在链上的 Stage 类别（已排序）。
func (c *Chain) Unused() []contract.Category {
	return append([]contract.Category(nil), c.unused...)
}

// Clipped 返回全链因重叠/越域被截断的规则总数。
func (c *Chain) Clipped() int {
	n := 0
	for _, s := range c.steps {
		n += s.Cover.Clipped
	}
	return n
}

// Path 返回类别路径：source, ..., terminal（未构造完成时不含 terminal）。
func (c *Chain) Path() []contract.Category {
	out := make([]contract.Category, 0, len(c.steps)+1)
	for _, s := range c.steps {
		out = append(out, s.From)
	}
	done := len(c.steps) == 0 && c.source == c.terminal
	if n := len(c.steps); n > 0 && c.steps[n-1].To == c.terminal {
		done = true
	}
	if done {
		out = append(out, c.terminal)
	}
	return out
}
