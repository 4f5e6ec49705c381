package remap

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"remap/pkg/contract"
)

// Scope: 驱动处理哪些初始区间。
type Scope int

const (
	// ScopeAll 处理全部初始区间（默认）。
	ScopeAll Scope = iota
	// ScopeFirst 仅处理第一个初始区间，复现早期实现的行为，仅用于对照。
	ScopeFirst
)

func (s Scope) String() string {
	switch s {
	case ScopeFirst:
		return "first"
	default:
		return "all"
	}
}

// ParseScope 解析 "all"/"first"（大小写不敏感，空串为 all）。
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ScopeAll, nil
	case "first":
		return ScopeFirst, nil
	default:
		return ScopeAll, fmt.Errorf("%w: scope %q (want all|first)", contract.ErrInvalidInput, s)
	}
}

// SolveOptions: 驱动选项。
type SolveOptions struct {
	Scope Scope
	// Concurrency: 初始区间并行展开的上限；<=1 顺序执行。
	Concurrency int
	// Merge: 输出区间是否合并相邻/重叠（仅影响报告，不影响 Min）。
	Merge bool
	// OnSplit: 可选的切分观测回调。
	OnSplit SplitObserver
}

// Result: 驱动输出。
type Result struct {
	// Min: 所有到达 terminal 的区间下界最小值，即对外答案。
	Min       int64
	Intervals []contract.Interval
	// Seeds: 实际处理的初始区间数。
	Seeds int
	// Pieces: 合并前到达 terminal 的区间片数。
	Pieces int
}

// Solve 对每个初始区间调用 Convert，展平并取最小下界。
// 各初始区间互不依赖，按 Concurrency 并行；任一失败即取消其余并返回首错。
func Solve(ctx context.Context, chain *Chain, seeds []contract.Interval, opt SolveOptions) (Result, error) {
	if chain == nil {
		return Result{}, fmt.Errorf("%w: nil chain", contract.ErrInvalidInput)
	}
	if err := contract.ValidateSeeds(seeds); err != nil {
		return Result{}, err
	}
	if opt.Scope == ScopeFirst {
		seeds = seeds[:1]
	}
	conc := opt.Concurrency
	if conc < 1 {
		conc = 1
	}

	parts := make([][]contract.Interval, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conc)
	for i, seed := range seeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := chain.convertAt(0, seed, opt.OnSplit)
			if err != nil {
				return fmt.Errorf("seed %d %s: %w", i, seed, err)
			}
			parts[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	n := 0
	for _, p := range parts {
		n += len(p)
	}
	all := make([]contract.Interval, 0, n)
	for _, p := range parts {
		all = append(all, p...)
	}
	if len(all) == 0 {
		return Result{}, fmt.Errorf("%w: no interval reached %q", contract.ErrInvariantViolation, chain.Terminal())
	}
	SortIntervals(all)
	res := Result{Min: all[0].Start, Seeds: len(seeds), Pieces: n, Intervals: all}
	if opt.Merge {
		res.Intervals = Coalesce(all)
	}
	return res, nil
}

// SortIntervals 按 (Start, End) 原地升序排序。
func SortIntervals(ivs []contract.Interval) {
	sort.Slice(ivs, func(i, j int) bool {
		if ivs[i].Start != ivs[j].Start {
			return ivs[i].Start < ivs[j].Start
		}
		return ivs[i].End < ivs[j].End
	})
}

// Coalesce 合并已排序区间中重叠或相邻者，返回新切片。
func Coalesce(sorted []contract.Interval) []contract.Interval {
	if len(sorted) == 0 {
		return nil
	}
	out := []contract.Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if next, ok := contract.AddInt64(last.End, 1); !ok || iv.Start <= next {
			last.End = max(last.End, iv.End)
			continue
		}
		out = append(out, iv)
	}
	return out
}

// TotalLen 返回区间长度之和（不去重）。
func TotalLen(ivs []contract.Interval) uint64 {
	var n uint64
	for _, iv := range ivs {
		n += iv.Len()
	}
	return n
}
