package remap

import (
	"fmt"

	"remap/pkg/contract"
)

// Piece: 区间与单条规范化规则的一个非空交集。
// Source 为交集本身（平移前），Target 为平移后的结果。
type Piece struct {
	Source contract.Interval
	Target contract.Interval
	Shift  int64
	Pad    bool
}

// Split 将 iv 与一个 Stage 的规范化规则逐条求交，每个非空交集按规则偏移平移后输出一片。
// rules 须为 Normalize 的输出（有序、不交、全覆盖），因此各片不重不漏。
// 四种端点关系（均为闭区间）：
//  1. 规则包含区间：[iv.Start, iv.End]
//  2. 区间包含规则：[r.Start, r.End]
//  3. 规则覆盖区间左段：[iv.Start, r.End]
//  4. 规则覆盖区间右段：[r.Start, iv.End]
func Split(iv contract.Interval, rules []contract.Rule) ([]Piece, error) {
	if iv.Start > iv.End {
		return nil, fmt.Errorf("%w: %s", contract.ErrInvalidInterval, iv)
	}
	var pieces []Piece
	for _, r := range rules {
		if r.Start > iv.End {
			break // 有序：其后规则均在区间右侧
		}
		var lo, hi int64
		switch {
		case r.Start <= iv.Start && r.End >= iv.End:
			lo, hi = iv.Start, iv.End
		case r.Start > iv.Start && r.End < iv.End:
			lo, hi = r.Start, r.End
		case r.Start <= iv.Start && r.End < iv.End:
			lo, hi = iv.Start, r.End
		default:
			lo, hi = r.Start, iv.End
		}
		if lo > hi {
			continue // 空交集：剪枝，不是错误
		}
		src := contract.Interval{Start: lo, End: hi}
		dst, err := src.Shift(r.Shift)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, Piece{Source: src, Target: dst, Shift: r.Shift, Pad: r.Pad})
	}
	return pieces, nil
}
