// Package remap 实现多阶段区间重映射：规则规范化、链解析、区间切分与驱动汇总。
//
// 数据只读流动：Almanac → BuildChain（校验+规范化一次）→ Convert/Solve。
// 全部为纯计算，无 I/O；Chain 构造后不可变，可被并发读取。
package remap

import (
	"fmt"
	"math"
	"sort"

	"remap/pkg/contract"
)

// Domain: 规范化覆盖的值域（闭区间）。
// 默认 [0, MaxInt64]：下界取输入的实际下界 0，上界取 int64 最大值作为哨兵。
// 填充规则偏移恒为 0，哨兵在后续平移中不会溢出。
type Domain struct {
	Min int64 `json:"min" yaml:"min"`
	Max int64 `json:"max" yaml:"max"`
}

// DefaultDomain 返回 [0, MaxInt64]。
func DefaultDomain() Domain { return Domain{Min: 0, Max: math.MaxInt64} }

// Validate: Min<=Max。
func (d Domain) Validate() error {
	if d.Min > d.Max {
		return fmt.Errorf("%w: domain [%d,%d]", contract.ErrInvalidInput, d.Min, d.Max)
	}
	return nil
}

// Contains 判断区间是否完整落在值域内。
func (d Domain) Contains(iv contract.Interval) bool {
	return d.Min <= iv.Start && iv.End <= d.Max
}

// Cover: 单个 Stage 规范化后的全覆盖划分。
// Rules 按 Start 升序、两两不交、并集恰为整个 Domain。
// Clipped 记录因重叠被截断/整体遮蔽、或越出值域被截断的显式规则数。
type Cover struct {
	Rules   []contract.Rule
	Clipped int
}

// Normalize 将一个 Stage 的原始规则集合规范化为值域上的全覆盖。
// 约束：
//  1. 空规则集返回 ErrEmptyStage；Start>End 或完全落在值域外返回 ErrMalformedRule；
//  2. 先按 (Start,End) 稳定排序；与已放置规则重叠的部分被截去（先到者优先）；
//  3. 在首条之前、真实空隙（prev.End+1 < next.Start）与末条之后插入零偏移填充规则；
//  4. 相邻（prev.End+1 == next.Start）不需要填充。
func Normalize(rules []contract.Rule, dom Domain) (Cover, error) {
	if err := dom.Validate(); err != nil {
		return Cover{}, err
	}
	if len(rules) == 0 {
		return Cover{}, contract.ErrEmptyStage
	}
	clipped := 0
	sorted := make([]contract.Rule, 0, len(rules))
	for i, r := range rules {
		if err := contract.ValidateRule(r); err != nil {
			return Cover{}, fmt.Errorf("rule %d: %w", i, err)
		}
		if r.End < dom.Min || r.Start > dom.Max {
			return Cover{}, fmt.Errorf("rule %d: %w: [%d,%d] outside domain [%d,%d]", i, contract.ErrMalformedRule, r.Start, r.End, dom.Min, dom.Max)
		}
		if r.Start < dom.Min || r.End > dom.Max {
			r.Start = max(r.Start, dom.Min)
			r.End = min(r.End, dom.Max)
			clipped++
		}
		r.Pad = false
		sorted = append(sorted, r)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	out := make([]contract.Rule, 0, 2*len(sorted)+1)
	next := dom.Min // 第一个尚未覆盖的值
	full := false   // 已覆盖到 dom.Max；此时 next 不再有意义
	for _, r := range sorted {
		if full || r.End < next {
			clipped++
			continue
		}
		if r.Start < next {
			r.Start = next
			clipped++
		}
		if r.Start > next {
			out = append(out, pad(next, r.Start-1))
		}
		out = append(out, r)
		if r.End == dom.Max {
			full = true
		} else {
			next = r.End + 1
		}
	}
	if !full {
		out = append(out, pad(next, dom.Max))
	}
	return Cover{Rules: out, Clipped: clipped}, nil
}

func pad(start, end int64) contract.Rule {
	return contract.Rule{Start: start, End: end, Shift: 0, Pad: true}
}
