package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"remap/internal/diag"
	"remap/internal/pipeline"
	"remap/internal/remap"
	"remap/pkg/contract"
	"remap/pkg/registry"
)

// Validate 对最小必要边界做静态校验；错误均包装 ErrConfig。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return configErr("inputs empty")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		switch strings.TrimSpace(r) {
		case "":
			return configErr("input path cannot be empty")
		case "-":
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return configErr("'-' cannot be mixed with other roots")
	}
	if strings.TrimSpace(cfg.Source) == "" || strings.TrimSpace(cfg.Terminal) == "" {
		return configErr("source and terminal categories required")
	}
	if _, err := remap.ParseScope(cfg.Scope); err != nil {
		return configErr("scope %q (want all|first)", cfg.Scope)
	}
	if cfg.Concurrency < 1 {
		return configErr("concurrency must be >= 1")
	}
	if d := cfg.EffectiveDomain(); d.Min > d.Max {
		return configErr("domain min %d > max %d", d.Min, d.Max)
	}
	if cfg.Logging.Level != "" && !diag.ValidLevel(cfg.Logging.Level) {
		return configErr("logging.level %q", cfg.Logging.Level)
	}
	d := Defaults().Components
	if name := effName(cfg.Components.Reader, d.Reader); registry.Reader[name] == nil {
		return configErr("reader %q not registered (have %v)", name, registry.Names(registry.Reader))
	}
	if name := effName(cfg.Components.Parser, d.Parser); registry.Parser[name] == nil {
		return configErr("parser %q not registered (have %v)", name, registry.Names(registry.Parser))
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return configErr("writer %q not registered (have %v)", name, registry.Names(registry.Writer))
	}
	return nil
}

// EffectiveDomain 以默认值补齐未设置的一端。
func (c Config) EffectiveDomain() remap.Domain {
	d := remap.DefaultDomain()
	if c.Domain.Min != nil {
		d.Min = *c.Domain.Min
	}
	if c.Domain.Max != nil {
		d.Max = *c.Domain.Max
	}
	return d
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults().Components
	r, err := registry.Reader[effName(cfg.Components.Reader, d.Reader)](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader: %w", err)
	}
	p, err := registry.Parser[effName(cfg.Components.Parser, d.Parser)](cfg.Options.Parser)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("parser: %w", err)
	}
	wn := effName(cfg.Components.Writer, d.Writer)
	wopts := cfg.Options.Writer
	if len(wopts) == 0 && wn == "fs" {
		wopts = defaultFSWriterOptions
	}
	w, err := registry.Writer[wn](wopts)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer: %w", err)
	}
	scope, _ := remap.ParseScope(cfg.Scope)
	set := pipeline.Settings{
		Inputs:      cloneStrings(cfg.Inputs),
		Source:      contract.Category(strings.TrimSpace(cfg.Source)),
		Terminal:    contract.Category(strings.TrimSpace(cfg.Terminal)),
		Domain:      cfg.EffectiveDomain(),
		Scope:       scope,
		Concurrency: cfg.Concurrency,
		Intervals:   cfg.Report.Intervals != nil && *cfg.Report.Intervals,
		Merge:       cfg.Report.Merge != nil && *cfg.Report.Merge,
	}
	return pipeline.Components{Reader: r, Parser: p, Writer: w}, set, nil
}

// defaultFSWriterOptions: fs Writer 未给出选项时写到 ./out。
var defaultFSWriterOptions = json.RawMessage(`{"output_dir":"out"}`)

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: config: %s", contract.ErrConfig, fmt.Sprintf(format, args...))
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
