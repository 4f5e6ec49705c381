package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
// 指针字段区分“未设置”与显式零值，便于分层覆盖。
type Config struct {
	Inputs []string `json:"inputs"`
	// Source/Terminal: 链的起止类别。
	Source   string `json:"source"`
	Terminal string `json:"terminal"`
	// Scope: all|first。
	Scope       string  `json:"scope"`
	Concurrency int     `json:"concurrency"`
	Domain      Domain  `json:"domain"`
	Report      Report  `json:"report"`
	Logging     Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`
	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Domain: 规范化覆盖的值域；未设置的一端取默认 [0, MaxInt64]。
type Domain struct {
	Min *int64 `json:"min,omitempty"`
	Max *int64 `json:"max,omitempty"`
}

// Report: 报告内容开关。
type Report struct {
	Intervals *bool `json:"intervals,omitempty"`
	Merge     *bool `json:"merge,omitempty"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader string `json:"reader"`
	Parser string `json:"parser"`
	Writer string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader json.RawMessage `json:"reader,omitempty"`
	Parser json.RawMessage `json:"parser,omitempty"`
	Writer json.RawMessage `json:"writer,omitempty"`
}
