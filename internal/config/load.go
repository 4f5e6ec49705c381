package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"remap/pkg/contract"
)

// EnvPrefix: 环境变量覆盖的统一前缀。
const EnvPrefix = "REMAP_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Source:      "seed",
		Terminal:    "location",
		Scope:       "all",
		Concurrency: runtime.NumCPU(),
		Logging:     Logging{Level: "info"},
		Components: Components{
			Reader: "fs",
			Parser: "auto",
			Writer: "fs",
		},
	}
}

// Load 按扩展名读取配置文件：.yaml/.yml 为 YAML，其余按 JSON。
func Load(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer f.Close()
		cfg, err := LoadYAML(f)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, nil
	default:
		return LoadJSON(path, nil)
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer f.Close()
		r = f
	default:
		return Config{}, fmt.Errorf("%w: no config source provided", contract.ErrConfig)
	}
	return decodeStrict(r)
}

// LoadYAML 解析 YAML 配置：先转换为等价 JSON，再走与 JSON 相同的严格解码。
// options 子树因此可以直接用 YAML 书写。
func LoadYAML(r io.Reader) (Config, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("%w: yaml: %v", contract.ErrConfig, err)
	}
	if doc == nil {
		return Config{}, nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("%w: yaml: %v", contract.ErrConfig, err)
	}
	return decodeStrict(bytes.NewReader(b))
}

func decodeStrict(r io.Reader) (Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if s := strings.TrimSpace(over.Source); s != "" {
		out.Source = s
	}
	if s := strings.TrimSpace(over.Terminal); s != "" {
		out.Terminal = s
	}
	if s := strings.TrimSpace(over.Scope); s != "" {
		out.Scope = s
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.Domain.Min != nil {
		out.Domain.Min = cloneInt(over.Domain.Min)
	}
	if over.Domain.Max != nil {
		out.Domain.Max = cloneInt(over.Domain.Max)
	}
	if over.Report.Intervals != nil {
		out.Report.Intervals = cloneBool(over.Report.Intervals)
	}
	if over.Report.Merge != nil {
		out.Report.Merge = cloneBool(over.Report.Merge)
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Parser != "" {
		out.Components.Parser = over.Components.Parser
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Parser) > 0 {
		out.Options.Parser = cloneRaw(over.Options.Parser)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（前缀 REMAP_）。
// 支持：INPUTS, SOURCE, TERMINAL, SCOPE, CONCURRENCY, DOMAIN_MIN, DOMAIN_MAX,
// REPORT_INTERVALS, REPORT_MERGE, LOG_LEVEL, COMPONENTS_{READER,PARSER,WRITER},
// OPTIONS_{READER,PARSER,WRITER}_JSON。其余键忽略；空值视为未设置。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		var err error
		switch strings.TrimPrefix(key, EnvPrefix) {
		case "INPUTS":
			over.Inputs = splitComma(val)
		case "SOURCE":
			over.Source = val
		case "TERMINAL":
			over.Terminal = val
		case "SCOPE":
			over.Scope = val
		case "CONCURRENCY":
			over.Concurrency, err = strconv.Atoi(val)
		case "DOMAIN_MIN":
			over.Domain.Min, err = parseInt64(val)
		case "DOMAIN_MAX":
			over.Domain.Max, err = parseInt64(val)
		case "REPORT_INTERVALS":
			over.Report.Intervals, err = parseBool(val)
		case "REPORT_MERGE":
			over.Report.Merge, err = parseBool(val)
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "COMPONENTS_READER":
			over.Components.Reader = val
		case "COMPONENTS_PARSER":
			over.Components.Parser = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "OPTIONS_READER_JSON":
			over.Options.Reader, err = rawJSON(val)
		case "OPTIONS_PARSER_JSON":
			over.Options.Parser, err = rawJSON(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer, err = rawJSON(val)
		}
		if err != nil {
			return Config{}, fmt.Errorf("%w: env %s: %v", contract.ErrConfig, key, err)
		}
	}
	return over, nil
}

func parseInt64(s string) (*int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseBool(s string) (*bool, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func rawJSON(s string) (json.RawMessage, error) {
	if !json.Valid([]byte(s)) {
		return nil, errors.New("invalid JSON")
	}
	return json.RawMessage(s), nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func cloneInt(p *int64) *int64 {
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	v := *p
	return &v
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
