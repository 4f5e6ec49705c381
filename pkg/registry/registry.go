package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"remap/pkg/contract"
	palm "remap/plugins/parser/almanac"
	pauto "remap/plugins/parser/auto"
	ptab "remap/plugins/parser/table"
	rfs "remap/plugins/reader/filesystem"
	wfs "remap/plugins/writer/filesystem"
	wstd "remap/plugins/writer/stdout"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段；错误包装 ErrConfig。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: options: %v", contract.ErrConfig, err)
	}
	return nil
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewParser 工厂签名：接收原样 JSON Options。
type NewParser func(raw json.RawMessage) (contract.Parser, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Parser 工厂注册表。
var Parser = map[string]NewParser{
	// auto: 按扩展名在 almanac 与 table 间分派
	"auto": func(raw json.RawMessage) (contract.Parser, error) {
		var opts pauto.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return pauto.New(&opts)
	},
	// almanac: 纯文本 "seeds:" + "<a>-to-<b> map:" 块
	"almanac": func(raw json.RawMessage) (contract.Parser, error) {
		var opts palm.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return palm.New(&opts)
	},
	// table: YAML/JSON 结构化文档
	"table": func(raw json.RawMessage) (contract.Parser, error) {
		var opts ptab.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ptab.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
	// stdout: 报告直接输出到标准输出
	"stdout": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wstd.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wstd.New(&opts), nil
	},
}

// Names 返回注册表中已排序的实现名（用于错误提示与模板）。
func Names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
