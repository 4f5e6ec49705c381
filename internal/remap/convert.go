package remap

import (
	"fmt"

	"remap/pkg/contract"
)

// SplitObserver 在每次 Stage 切分后回调：from 为该 Stage 的源类别，pieces 为产出片数。
// 可能被并发调用（Solve 并行时），实现须并发安全。
type SplitObserver func(from contract.Category, pieces int)

type work struct {
	step int
	iv   contract.Interval
}

// Convert 将 iv 自 source 经全链变换，返回到达 terminal 的全部区间。
// 以显式工作栈代替递归：每项 (step, iv) 的 step 严格递增，深度上界即 Len()。
// 结果之并经各段逆平移恰好还原 iv：不丢值、不重复。
func (c *Chain) Convert(iv contract.Interval) ([]contract.Interval, error) {
	return c.convertAt(0, iv, nil)
}

// ConvertFrom 从任意链上类别开始变换。
// category==terminal 时原样返回 [iv]；不在链上的类别返回 ErrUnknownCategory。
func (c *Chain) ConvertFrom(category contract.Category, iv contract.Interval) ([]contract.Interval, error) {
	if category == c.terminal {
		if iv.Start > iv.End {
			return nil, fmt.Errorf("%w: %s", contract.ErrInvalidInterval, iv)
		}
		return []contract.Interval{iv}, nil
	}
	idx, ok := c.index[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q not on chain %v", contract.ErrUnknownCategory, category, c.Path())
	}
	return c.convertAt(idx, iv, nil)
}

func (c *Chain) convertAt(step int, iv contract.Interval, obs SplitObserver) ([]contract.Interval, error) {
	if iv.Start > iv.End {
		return nil, fmt.Errorf("%w: %s", contract.ErrInvalidInterval, iv)
	}
	var out []contract.Interval
	stack := []work{{step: step, iv: iv}}
	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if w.step == len(c.steps) {
			out = append(out, w.iv)
			continue
		}
		st := c.steps[w.step]
		if !c.dom.Contains(w.iv) {
			return nil, fmt.Errorf("%w: %s at %q, domain [%d,%d]", contract.ErrOutOfDomain, w.iv, st.From, c.dom.Min, c.dom.Max)
		}
		pieces, err := Split(w.iv, st.Cover.Rules)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", st.From, err)
		}
		if obs != nil {
			obs(st.From, len(pieces))
		}
		// 逆序压栈，使出栈顺序与规则顺序一致，输出稳定。
		for i := len(pieces) - 1; i >= 0; i-- {
			stack = append(stack, work{step: w.step + 1, iv: pieces[i].Target})
		}
	}
	return out, nil
}
