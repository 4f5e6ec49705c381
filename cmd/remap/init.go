package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "remap/internal/config"
)

func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "init-config [dir]",
		Short: "在目录（默认当前目录）生成默认配置与 .env 模板；已存在的文件不覆盖",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			if err := initConfig(dir, format, stdout); err != nil {
				fmt.Fprintf(stderr, "生成默认配置失败: %v\n", err)
				return &exitError{code: exitConfig, err: err}
			}
			// .env 生成失败不影响主流程
			if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
				fmt.Fprintf(stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "配置文件格式 json|yaml")
	return cmd
}

func initConfig(dir, format string, stdout io.Writer) error {
	var (
		name string
		body []byte
		err  error
	)
	cfg := cfgpkg.DefaultTemplateConfig()
	switch strings.ToLower(format) {
	case "json":
		name = "config.json"
		body, err = json.MarshalIndent(cfg, "", "  ")
		body = append(body, '\n')
	case "yaml", "yml":
		name = "config.yaml"
		body, err = templateYAML(cfg)
	default:
		return fmt.Errorf("unknown format %q (want json|yaml)", format)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	if err := writeExclusive(path, body); err != nil {
		if errors.Is(err, fs.ErrExist) {
			fmt.Fprintf(stdout, "已存在，跳过: %s\n", path)
			return nil
		}
		return err
	}
	fmt.Fprintf(stdout, "已生成: %s\n", path)
	return nil
}

// templateYAML: JSON 即 YAML；解析为节点后去掉 flow 风格再以块风格输出，保持键序与整数字面量。
func templateYAML(cfg cfgpkg.Config) ([]byte, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// writeExclusive 仅在文件不存在时创建。
func writeExclusive(path string, body []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	var b strings.Builder
	b.WriteString("# remap .env 模板（由 init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件 > 默认值；空值表示未设置。\n\n")
	b.WriteString("# 配置来源（二选一）\n")
	b.WriteString("REMAP_CONFIG_FILE=\n")
	b.WriteString("REMAP_CONFIG_JSON=\n\n")
	b.WriteString("# 运行参数覆盖\n")
	for _, k := range []string{
		"INPUTS", "SOURCE", "TERMINAL", "SCOPE", "CONCURRENCY",
		"DOMAIN_MIN", "DOMAIN_MAX", "REPORT_INTERVALS", "REPORT_MERGE", "LOG_LEVEL",
	} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 组件选择与选项（原样 JSON）\n")
	for _, k := range []string{"READER", "PARSER", "WRITER"} {
		b.WriteString(cfgpkg.EnvPrefix + "COMPONENTS_" + k + "=\n")
		b.WriteString(cfgpkg.EnvPrefix + "OPTIONS_" + k + "_JSON=\n")
	}
	err := writeExclusive(path, []byte(b.String()))
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	return err
}

// loadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
//  1. 文件不存在时忽略；
//  2. 跳过空行与 # 注释；支持可选前缀 "export "；
//  3. 仅按首个 '=' 分割，成对的单/双引号去除，双引号内处理 \n \t \" \\；
//  4. 空值与已存在的环境变量均不写入。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, val, ok := strings.Cut(line, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" {
			continue
		}
		if len(val) >= 2 {
			q := val[0]
			if (q == '\'' || q == '"') && val[len(val)-1] == q {
				val = val[1 : len(val)-1]
				if q == '"' {
					val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`).Replace(val)
				}
			}
		}
		if val == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}
