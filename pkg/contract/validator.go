package contract

import "fmt"

// 校验库函数（纯函数，无 I/O）：
// - ValidateRule:  单条规则 Start<=End
// - ValidateStage: 类别名非空、From!=To、规则非空且逐条合法
// - ValidateSeeds: 初始区间非空且逐个合法
func ValidateRule(r Rule) error {
	if r.Start > r.End {
		return fmt.Errorf("%w: [%d,%d]", ErrMalformedRule, r.Start, r.End)
	}
	return nil
}

func ValidateStage(s Stage) error {
	if s.From == "" || s.To == "" {
		return fmt.Errorf("%w: stage %q->%q: empty category", ErrInvalidInput, s.From, s.To)
	}
	if s.From == s.To {
		return fmt.Errorf("%w: stage %q maps to itself", ErrCycle, s.From)
	}
	if len(s.Rules) == 0 {
		return fmt.Errorf("stage %q: %w", s.From, ErrEmptyStage)
	}
	for i, r := range s.Rules {
		if err := ValidateRule(r); err != nil {
			return fmt.Errorf("stage %q rule %d: %w", s.From, i, err)
		}
	}
	return nil
}

func ValidateSeeds(seeds []Interval) error {
	if len(seeds) == 0 {
		return ErrNoSeeds
	}
	for i, iv := range seeds {
		if iv.Start > iv.End {
			return fmt.Errorf("seed %d: %w: %s", i, ErrInvalidInterval, iv)
		}
	}
	return nil
}

// CloneAlmanac 深拷贝 Almanac，避免调用方后续修改影响只读视图。
func CloneAlmanac(a Almanac) Almanac {
	out := Almanac{Seeds: append([]Interval(nil), a.Seeds...)}
	if a.Stages != nil {
		out.Stages = make(map[Category]Stage, len(a.Stages))
		for k, s := range a.Stages {
			out.Stages[k] = Stage{From: s.From, To: s.To, Rules: append([]Rule(nil), s.Rules...)}
		}
	}
	return out
}
