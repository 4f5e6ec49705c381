package contract

import (
	"fmt"
	"math"
)

// FileID: 逻辑输入ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Category: 类别名（如 seed/soil/location），Stage 以 From/To 串联成链。
type Category string

// Interval: 闭区间 [Start, End]，流经流水线的基本单元。
// 约束：构造后 Start <= End；不携带“待应用偏移”（偏移只在切分计算中间态存在）。
type Interval struct {
	Start int64
	End   int64
}

// NewInterval 构造闭区间；start>end 返回 ErrInvalidInterval。
func NewInterval(start, end int64) (Interval, error) {
	if start > end {
		return Interval{}, fmt.Errorf("%w: [%d,%d]", ErrInvalidInterval, start, end)
	}
	return Interval{Start: start, End: end}, nil
}

// IntervalFromLength 以起点+长度构造 [start, start+length-1]。
func IntervalFromLength(start, length int64) (Interval, error) {
	if length < 1 {
		return Interval{}, fmt.Errorf("%w: length %d", ErrInvalidInterval, length)
	}
	end, ok := AddInt64(start, length-1)
	if !ok {
		return Interval{}, fmt.Errorf("%w: %d+%d", ErrOverflow, start, length-1)
	}
	return Interval{Start: start, End: end}, nil
}

// Len 返回区间包含的整数个数。uint64 以容纳 [0, MaxInt64] 这类全域区间。
func (iv Interval) Len() uint64 {
	return uint64(iv.End-iv.Start) + 1
}

// Contains 判断 v 是否落在区间内。
func (iv Interval) Contains(v int64) bool { return iv.Start <= v && v <= iv.End }

// Shift 将两端同时平移 delta；溢出返回 ErrOverflow，不回绕。
func (iv Interval) Shift(delta int64) (Interval, error) {
	s, ok1 := AddInt64(iv.Start, delta)
	e, ok2 := AddInt64(iv.End, delta)
	if !ok1 || !ok2 {
		return Interval{}, fmt.Errorf("%w: %s%+d", ErrOverflow, iv, delta)
	}
	return Interval{Start: s, End: e}, nil
}

func (iv Interval) String() string { return fmt.Sprintf("[%d,%d]", iv.Start, iv.End) }

// Rule: 域 [Start, End] 内的任意值 v 映射为 v+Shift。
// Pad 标记由规范化合成的零偏移填充规则。
type Rule struct {
	Start int64
	End   int64
	Shift int64
	Pad   bool
}

// Domain 返回规则的源域。
func (r Rule) Domain() Interval { return Interval{Start: r.Start, End: r.End} }

// RawRule: 输入格式原生三元组 (dst, src, len)。
type RawRule struct {
	Dst int64
	Src int64
	Len int64
}

// Rule 转换为 (Start, End, Shift) 形式：Start=Src，End=Src+Len-1，Shift=Dst-Src。
func (rr RawRule) Rule() (Rule, error) {
	if rr.Len < 1 {
		return Rule{}, fmt.Errorf("%w: length %d", ErrMalformedRule, rr.Len)
	}
	end, ok := AddInt64(rr.Src, rr.Len-1)
	if !ok {
		return Rule{}, fmt.Errorf("%w: src %d len %d", ErrOverflow, rr.Src, rr.Len)
	}
	if _, ok := AddInt64(rr.Dst, rr.Len-1); !ok {
		return Rule{}, fmt.Errorf("%w: dst %d len %d", ErrOverflow, rr.Dst, rr.Len)
	}
	shift, ok := SubInt64(rr.Dst, rr.Src)
	if !ok {
		return Rule{}, fmt.Errorf("%w: dst %d src %d", ErrOverflow, rr.Dst, rr.Src)
	}
	return Rule{Start: rr.Src, End: end, Shift: shift}, nil
}

// Stage: 一次命名变换：From 类别 → To 类别，规则集合无序，可能重叠或留空隙。
type Stage struct {
	From  Category
	To    Category
	Rules []Rule
}

// Almanac: Parser 的产物，包含初始区间与按 From 索引的 Stage 表。
// 构造后只读。
type Almanac struct {
	Seeds  []Interval
	Stages map[Category]Stage
}

// AddInt64 带溢出检测的加法。
func AddInt64(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// SubInt64 带溢出检测的减法。
func SubInt64(a, b int64) (int64, bool) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, false
	}
	return a - b, true
}
