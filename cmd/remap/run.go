package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cfgpkg "remap/internal/config"
	"remap/internal/diag"
	"remap/internal/pipeline"
)

var pipelineRun = pipeline.Run

// runFlags: run 子命令旗标；仅 Changed 的旗标参与覆盖。
type runFlags struct {
	config      string
	source      string
	terminal    string
	scope       string
	concurrency int
	intervals   bool
	merge       bool
	logLevel    string
	logDir      string
	parser      string
	writer      string
	out         string
	status      bool
	metricsFile string
}

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [inputs...]",
		Short: "读取输入文件（或 '-' 表示 STDIN），求解并写出报告",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, &f, args, stdout, stderr)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "配置文件路径（.json/.yaml）；缺省读取 REMAP_CONFIG_FILE 或 ./config.json、./config.yaml（若存在）")
	fl.StringVar(&f.source, "source", "", "起点类别（默认 seed）")
	fl.StringVar(&f.terminal, "terminal", "", "终点类别（默认 location）")
	fl.StringVar(&f.scope, "scope", "", "all|first：处理全部初始区间或仅第一个")
	fl.IntVar(&f.concurrency, "concurrency", 0, "并发度（文件级与初始区间级）")
	fl.BoolVar(&f.intervals, "intervals", false, "报告中附带到达终点的区间")
	fl.BoolVar(&f.merge, "merge", false, "附带区间时合并相邻/重叠者")
	fl.StringVar(&f.logLevel, "log-level", "", "日志等级 debug|info|warn|error")
	fl.StringVar(&f.logDir, "log-dir", "logs", "日志目录（轮转文件）")
	fl.StringVar(&f.parser, "parser", "", "Parser 实现名（auto|almanac|table）")
	fl.StringVar(&f.writer, "writer", "", "Writer 实现名（fs|stdout）")
	fl.StringVar(&f.out, "out", "", "fs Writer 的输出目录（覆盖 options.writer.output_dir；其他 Writer 忽略）")
	fl.BoolVar(&f.status, "status", true, "终端状态提示（stderr）")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "运行结束后以 Prometheus 文本格式写出指标")
	return cmd
}

func runPipeline(cmd *cobra.Command, f *runFlags, args []string, stdout, stderr io.Writer) error {
	start := time.Now()
	corrID := uuid.NewString()
	logger := diag.NewLogger(corrID, "info", diag.WithDir(f.logDir))
	defer func() { _ = logger.Close() }()

	fail := func(code int, prefix string, err error) error {
		fmt.Fprintf(stderr, "%s: %v\n", prefix, err)
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return &exitError{code: code, err: err}
	}

	cfg, err := resolveConfig(cmd, f, args)
	if err != nil {
		return fail(exitConfig, "配置解析失败", err)
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		_ = dumpConfig(stderr, cfg)
		return fail(exitConfig, "配置校验失败", err)
	}
	// 使用最终配置中的日志级别重建 logger
	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" && diag.ParseLevel(lv) != diag.ParseLevel("info") {
		_ = logger.Close()
		logger = diag.NewLogger(corrID, lv, diag.WithDir(f.logDir))
	}
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return fail(exitConfig, "装配失败", err)
	}
	logger.DebugStart("config", "effective", "", map[string]string{
		"inputs_count": fmt.Sprint(len(cfg.Inputs)),
		"source":       cfg.Source,
		"terminal":     cfg.Terminal,
		"scope":        cfg.Scope,
		"concurrency":  fmt.Sprint(cfg.Concurrency),
		"domain":       fmt.Sprintf("[%d,%d]", set.Domain.Min, set.Domain.Max),
		"reader":       cfg.Components.Reader,
		"parser":       cfg.Components.Parser,
		"writer":       cfg.Components.Writer,
	})

	diag.SetTerminal(diag.NewTerminal(stderr, f.status))
	defer diag.SetTerminal(nil)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	t := logger.Start("pipeline", "run")
	reports, err := pipelineRun(ctx, comp, set, logger)
	if f.metricsFile != "" {
		if merr := diag.WriteMetrics(f.metricsFile); merr != nil {
			fmt.Fprintf(stderr, "提示：指标写出失败：%v\n", merr)
		}
	}
	if err != nil {
		code := diag.Classify(err)
		logger.Error("pipeline", string(code), "first error", &start)
		diag.IncOp("pipeline", "error", "error")
		if code != diag.CodeUnknown {
			diag.IncError("pipeline", string(code))
		}
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(stderr, "运行失败: %v\n", err)
		}
		return &exitError{code: exitRuntime, err: err}
	}
	d := t.Finish("run", int64(len(reports)))
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", d.Milliseconds())

	// stdout Writer 已直接输出报告，不再追加摘要
	if effWriter(cfg) != "stdout" {
		for _, r := range reports {
			fmt.Fprintf(stdout, "%s: %d\n", r.File, r.Min)
		}
	}
	return nil
}

// resolveConfig: Defaults < 配置文件或 REMAP_CONFIG_JSON < ENV < CLI。
func resolveConfig(cmd *cobra.Command, f *runFlags, args []string) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()

	path := f.config
	if path == "" {
		path = os.Getenv("REMAP_CONFIG_FILE")
	}
	if path == "" {
		for _, p := range []string{"config.json", "config.yaml", "config.yml"} {
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				path = p
				break
			}
		}
	}
	switch raw := os.Getenv("REMAP_CONFIG_JSON"); {
	case raw != "":
		base, err := cfgpkg.LoadJSON("", []byte(raw))
		if err != nil {
			return cfg, fmt.Errorf("REMAP_CONFIG_JSON: %w", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	case path != "":
		base, err := cfgpkg.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	env, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, env)

	var cli cfgpkg.Config
	cli.Inputs = args
	cli.Source = f.source
	cli.Terminal = f.terminal
	cli.Scope = f.scope
	cli.Concurrency = f.concurrency
	cli.Logging.Level = f.logLevel
	cli.Components.Parser = f.parser
	cli.Components.Writer = f.writer
	fl := cmd.Flags()
	if fl.Changed("intervals") {
		cli.Report.Intervals = &f.intervals
	}
	if fl.Changed("merge") {
		cli.Report.Merge = &f.merge
	}
	cfg = cfgpkg.Merge(cfg, cli)

	if f.out != "" && effWriter(cfg) == "fs" {
		raw, err := setOutputDir(cfg.Options.Writer, f.out)
		if err != nil {
			return cfg, err
		}
		cfg.Options.Writer = raw
	}
	return cfg, nil
}

// setOutputDir 在保留其余键的前提下改写 output_dir。
func setOutputDir(raw json.RawMessage, dir string) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("options.writer: %w", err)
		}
	}
	b, err := json.Marshal(dir)
	if err != nil {
		return nil, err
	}
	m["output_dir"] = b
	return json.Marshal(m)
}

func effWriter(cfg cfgpkg.Config) string {
	if cfg.Components.Writer == "" {
		return cfgpkg.Defaults().Components.Writer
	}
	return cfg.Components.Writer
}

func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "有效配置:\n%s\n", b)
	return err
}
