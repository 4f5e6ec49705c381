package table

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"remap/pkg/contract"
)

// 结构化格式（YAML；JSON 作为 YAML 子集同样可读）：
//
//	seeds: [[79, 14], [55, 13]]   # (start, length) 对；或 values: [79, 14, 55, 13]
//	stages:
//	  - from: seed
//	    to: soil
//	    rules: [[50, 98, 2], [52, 50, 48]]   # dst src len
//
// 未知字段即报错（KnownFields）。

// Options: 表格 Parser 的可选配置。
type Options struct {
	// MaxBytes: 输入上限；<=0 使用默认 16 MiB。
	MaxBytes int64 `json:"max_bytes"`
}

type document struct {
	Seeds  [][]int64  `yaml:"seeds"`
	Values []int64    `yaml:"values"`
	Stages []stageDoc `yaml:"stages"`
}

type stageDoc struct {
	From  string    `yaml:"from"`
	To    string    `yaml:"to"`
	Rules [][]int64 `yaml:"rules"`
}

// Parser 实现 contract.Parser。
type Parser struct {
	maxBytes int64
}

// New 创建表格 Parser。
func New(opts *Options) *Parser {
	p := &Parser{maxBytes: 16 << 20}
	if opts != nil && opts.MaxBytes > 0 {
		p.maxBytes = opts.MaxBytes
	}
	return p
}

var _ contract.Parser = (*Parser)(nil)

// Parse 解码单个文档并转换为 Almanac。
func (p *Parser) Parse(ctx context.Context, fileID contract.FileID, r io.Reader) (contract.Almanac, error) {
	if err := ctx.Err(); err != nil {
		return contract.Almanac{}, err
	}
	lr := &io.LimitedReader{R: r, N: p.maxBytes + 1}
	dec := yaml.NewDecoder(lr)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return contract.Almanac{}, fmt.Errorf("%s: %w: empty document", fileID, contract.ErrParse)
		}
		return contract.Almanac{}, fmt.Errorf("%s: %w: %v", fileID, contract.ErrParse, err)
	}
	if lr.N <= 0 {
		return contract.Almanac{}, fmt.Errorf("%s: %w: input exceeds %d bytes", fileID, contract.ErrParse, p.maxBytes)
	}
	alm, err := doc.almanac()
	if err != nil {
		return contract.Almanac{}, fmt.Errorf("%s: %w", fileID, err)
	}
	return alm, nil
}

func (d document) almanac() (contract.Almanac, error) {
	seeds, err := d.seeds()
	if err != nil {
		return contract.Almanac{}, err
	}
	alm := contract.Almanac{Seeds: seeds, Stages: make(map[contract.Category]contract.Stage, len(d.Stages))}
	for i, sd := range d.Stages {
		if sd.From == "" || sd.To == "" {
			return contract.Almanac{}, fmt.Errorf("%w: stages[%d]: from/to required", contract.ErrParse, i)
		}
		from := contract.Category(sd.From)
		if _, dup := alm.Stages[from]; dup {
			return contract.Almanac{}, fmt.Errorf("%w: stages[%d]: duplicate from %q", contract.ErrParse, i, sd.From)
		}
		st := contract.Stage{From: from, To: contract.Category(sd.To), Rules: make([]contract.Rule, 0, len(sd.Rules))}
		for j, raw := range sd.Rules {
			if len(raw) != 3 {
				return contract.Almanac{}, fmt.Errorf("%w: stages[%d].rules[%d]: want [dst, src, len], got %d numbers", contract.ErrParse, i, j, len(raw))
			}
			rule, err := contract.RawRule{Dst: raw[0], Src: raw[1], Len: raw[2]}.Rule()
			if err != nil {
				return contract.Almanac{}, fmt.Errorf("%w: stages[%d].rules[%d]: %w", contract.ErrParse, i, j, err)
			}
			st.Rules = append(st.Rules, rule)
		}
		alm.Stages[from] = st
	}
	return alm, nil
}

func (d document) seeds() ([]contract.Interval, error) {
	switch {
	case len(d.Seeds) > 0 && len(d.Values) > 0:
		return nil, fmt.Errorf("%w: seeds and values are mutually exclusive", contract.ErrParse)
	case len(d.Values) > 0:
		out := make([]contract.Interval, 0, len(d.Values))
		for _, v := range d.Values {
			iv, err := contract.NewInterval(v, v)
			if err != nil {
				return nil, err
			}
			out = append(out, iv)
		}
		return out, nil
	case len(d.Seeds) > 0:
		out := make([]contract.Interval, 0, len(d.Seeds))
		for i, pair := range d.Seeds {
			if len(pair) != 2 {
				return nil, fmt.Errorf("%w: seeds[%d]: want [start, length], got %d numbers", contract.ErrParse, i, len(pair))
			}
			iv, err := contract.IntervalFromLength(pair[0], pair[1])
			if err != nil {
				return nil, fmt.Errorf("%w: seeds[%d]: %w", contract.ErrParse, i, err)
			}
			out = append(out, iv)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %w", contract.ErrParse, contract.ErrNoSeeds)
	}
}
