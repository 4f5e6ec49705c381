package almanac

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"remap/pkg/contract"
)

// 文本格式：
//
//	seeds: 79 14 55 13
//
//	seed-to-soil map:
//	50 98 2
//	52 50 48
//
// 首个非空行为 seeds 行；其后每个块以 "<from>-to-<to> map:" 开头，
// 接若干 "dst src len" 规则行，空行或 EOF 结束。CRLF 容忍。

// SeedMode: seeds 行的解释方式。
type SeedMode string

const (
	// SeedRanges: 成对 (start, length)，每对为一个区间（默认）。
	SeedRanges SeedMode = "ranges"
	// SeedValues: 每个数 v 为单点区间 [v, v]。
	SeedValues SeedMode = "values"
)

// Options 为 Almanac Parser 的可选配置。
type Options struct {
	// Seeds: ranges|values；空为 ranges。
	Seeds SeedMode `json:"seeds"`
	// MaxLineBytes: 单行最大字节数；<=0 使用默认 1 MiB。
	MaxLineBytes int `json:"max_line_bytes"`
}

// Parser 实现 contract.Parser。
type Parser struct {
	mode    SeedMode
	maxLine int
}

// New 创建 Almanac Parser。
func New(opts *Options) (*Parser, error) {
	p := &Parser{mode: SeedRanges, maxLine: 1 << 20}
	if opts == nil {
		return p, nil
	}
	switch strings.ToLower(string(opts.Seeds)) {
	case "", string(SeedRanges):
	case string(SeedValues):
		p.mode = SeedValues
	default:
		return nil, fmt.Errorf("%w: almanac seeds mode %q (want ranges|values)", contract.ErrConfig, opts.Seeds)
	}
	if opts.MaxLineBytes > 0 {
		p.maxLine = opts.MaxLineBytes
	}
	return p, nil
}

var _ contract.Parser = (*Parser)(nil)

// Parse 读取完整文本并构造 Almanac。
// 错误均包装 ErrParse 并带行号；区间/规则的数值错误同时包装对应哨兵（ErrInvalidInterval、ErrMalformedRule、ErrOverflow）。
func (p *Parser) Parse(ctx context.Context, fileID contract.FileID, r io.Reader) (contract.Almanac, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(64*1024, p.maxLine)), p.maxLine)

	alm := contract.Almanac{Stages: make(map[contract.Category]contract.Stage)}
	var (
		lineNo   int
		haveSeed bool
		cur      *contract.Stage
	)
	flush := func() {
		if cur != nil {
			alm.Stages[cur.From] = *cur
			cur = nil
		}
	}
	for sc.Scan() {
		lineNo++
		if lineNo%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return contract.Almanac{}, err
			}
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "seeds:"):
			if haveSeed {
				return contract.Almanac{}, parseErr(fileID, lineNo, "duplicate seeds line")
			}
			if cur != nil || len(alm.Stages) > 0 {
				return contract.Almanac{}, parseErr(fileID, lineNo, "seeds line after map blocks")
			}
			seeds, err := p.parseSeeds(strings.TrimPrefix(line, "seeds:"))
			if err != nil {
				return contract.Almanac{}, fmt.Errorf("%s:%d: %w: %w", fileID, lineNo, contract.ErrParse, err)
			}
			alm.Seeds = seeds
			haveSeed = true
		case strings.HasSuffix(line, "map:"):
			from, to, ok := parseHeader(line)
			if !ok {
				return contract.Almanac{}, parseErr(fileID, lineNo, "bad map header %q", line)
			}
			if !haveSeed {
				return contract.Almanac{}, parseErr(fileID, lineNo, "map block before seeds line")
			}
			flush()
			if _, dup := alm.Stages[from]; dup {
				return contract.Almanac{}, parseErr(fileID, lineNo, "duplicate map from %q", from)
			}
			cur = &contract.Stage{From: from, To: to}
		default:
			if cur == nil {
				return contract.Almanac{}, parseErr(fileID, lineNo, "rule line outside a map block")
			}
			rule, err := parseRule(line)
			if err != nil {
				return contract.Almanac{}, fmt.Errorf("%s:%d: %w: %w", fileID, lineNo, contract.ErrParse, err)
			}
			cur.Rules = append(cur.Rules, rule)
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return contract.Almanac{}, parseErr(fileID, lineNo+1, "line exceeds %d bytes", p.maxLine)
		}
		return contract.Almanac{}, err
	}
	flush()
	if !haveSeed {
		return contract.Almanac{}, fmt.Errorf("%s: %w: %w", fileID, contract.ErrParse, contract.ErrNoSeeds)
	}
	return alm, nil
}

func (p *Parser) parseSeeds(s string) ([]contract.Interval, error) {
	nums, err := parseInts(s)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, contract.ErrNoSeeds
	}
	if p.mode == SeedValues {
		out := make([]contract.Interval, 0, len(nums))
		for _, v := range nums {
			iv, err := contract.NewInterval(v, v)
			if err != nil {
				return nil, err
			}
			out = append(out, iv)
		}
		return out, nil
	}
	if len(nums)%2 != 0 {
		return nil, fmt.Errorf("seed ranges need (start length) pairs, got %d numbers", len(nums))
	}
	out := make([]contract.Interval, 0, len(nums)/2)
	for i := 0; i < len(nums); i += 2 {
		iv, err := contract.IntervalFromLength(nums[i], nums[i+1])
		if err != nil {
			return nil, fmt.Errorf("seed pair %d: %w", i/2, err)
		}
		out = append(out, iv)
	}
	return out, nil
}

// parseHeader 解析 "<from>-to-<to> map:"。
func parseHeader(line string) (contract.Category, contract.Category, bool) {
	name, ok := strings.CutSuffix(line, "map:")
	if !ok {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	from, to, ok := strings.Cut(name, "-to-")
	if !ok || from == "" || to == "" || strings.ContainsAny(name, " \t") {
		return "", "", false
	}
	return contract.Category(from), contract.Category(to), true
}

func parseRule(line string) (contract.Rule, error) {
	nums, err := parseInts(line)
	if err != nil {
		return contract.Rule{}, err
	}
	if len(nums) != 3 {
		return contract.Rule{}, fmt.Errorf("rule needs 3 numbers (dst src len), got %d", len(nums))
	}
	return contract.RawRule{Dst: nums[0], Src: nums[1], Len: nums[2]}.Rule()
}

func parseInts(s string) ([]int64, error) {
	fields := strings.Fields(s)
	out := make([]int64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", f, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseErr(fileID contract.FileID, line int, format string, args ...any) error {
	return fmt.Errorf("%s:%d: %w: %s", fileID, line, contract.ErrParse, fmt.Sprintf(format, args...))
}
