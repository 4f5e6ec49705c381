package config

import "encoding/json"

// DefaultTemplateConfig 返回一个可直接运行的配置模板：
// 默认输入为 STDIN（"-"），报告写到 ./out，选项列出全部键。
func DefaultTemplateConfig() Config {
	d := Defaults()
	intervals, merge := false, true
	cfg := Config{
		Inputs:      []string{"-"},
		Source:      d.Source,
		Terminal:    d.Terminal,
		Scope:       d.Scope,
		Concurrency: 4,
		Report:      Report{Intervals: &intervals, Merge: &merge},
		Logging:     Logging{Level: "info"},
		Components:  d.Components,
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git", "out"],
  "extensions": [".txt", ".yaml", ".yml", ".json"],
  "include_hidden": false
}`)
	cfg.Options.Parser = json.RawMessage(`{
  "almanac": {"seeds": "ranges", "max_line_bytes": 1048576},
  "table": {"max_bytes": 16777216}
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0
}`)
	return cfg
}
