package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"remap/internal/diag"
	"remap/internal/remap"
	"remap/pkg/contract"
)

// - 单点并发：仅此层与 remap.Solve 管理并发；Reader/Parser/Writer 均为同步实现。
// - 读取与解析按 Reader 的稳定顺序串行；求解与写出按文件并行，受 Concurrency 限制。
// - 首错取消：任一文件失败即 cancel 其余文件，排空后返回该错误。
// - 返回的 Report 顺序与 Reader 产出顺序一致。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader contract.Reader
	Parser contract.Parser
	Writer contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Inputs []string
	// Source/Terminal: 链的起止类别。
	Source   contract.Category
	Terminal contract.Category
	Domain   remap.Domain
	Scope    remap.Scope
	// Concurrency: 文件级与初始区间级并行上限（>=1）。
	Concurrency int
	// Intervals: 报告中是否附带到达 terminal 的区间。
	Intervals bool
	// Merge: 附带区间时是否合并相邻/重叠者。
	Merge bool
}

// Report 为单个输入文件的求解结果，同时是写出工件的 JSON 结构。
type Report struct {
	File      string     `json:"file"`
	Source    string     `json:"source"`
	Terminal  string     `json:"terminal"`
	Path      []string   `json:"path"`
	Scope     string     `json:"scope"`
	Seeds     int        `json:"seeds"`
	Pieces    int        `json:"pieces"`
	Min       int64      `json:"min"`
	Clipped   int        `json:"clipped,omitempty"`
	Unused    []string   `json:"unused,omitempty"`
	Intervals [][2]int64 `json:"intervals,omitempty"`
}

// ReportID 返回报告工件标识：去扩展名后追加 .json。
func ReportID(fid contract.FileID) contract.ArtifactID {
	s := string(fid)
	if ext := path.Ext(s); ext != "" {
		s = strings.TrimSuffix(s, ext)
	}
	return contract.ArtifactID(s + ".json")
}

// Run 执行完整流水线：Reader → Parser → BuildChain → Solve → Report → Writer。
// 约束：
//  1. 链的构造错误（未知类别、环、非法规则）在求解前返回，不会写出任何该文件的工件；
//  2. 同一文件只写出一个报告工件；
//  3. 任一文件失败则整体失败（首错）。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) ([]Report, error) {
	if err := sanity(comp, &set); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	if t := diag.GetTerminal(); t != nil {
		t.RunStart(len(set.Inputs), fmt.Sprintf("%s>%s", set.Source, set.Terminal), set.Scope.String(), set.Concurrency)
	}
	runStart := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(set.Concurrency)
	// yield 由 Reader 串行调用；各槽位由对应 worker 填写，Wait 之后读取。
	var results []*Report

	rtimer := logger.Start("reader", "iterate")
	ierr := comp.Reader.Iterate(gctx, set.Inputs, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		alm, err := parseOne(gctx, comp.Parser, fid, rc, logger)
		if err != nil {
			fileFailed(fid, 0)
			return err
		}
		slot := &Report{}
		results = append(results, slot)
		g.Go(func() error {
			rep, err := solveOne(gctx, comp.Writer, set, fid, alm, logger)
			if err != nil {
				return err
			}
			*slot = rep
			return nil
		})
		return nil
	})
	if ierr != nil {
		cancel()
	}
	// 取首个真实错误：worker 出错会令 Reader 以 context.Canceled 退出；
	// Reader/Parser 出错后的 cancel() 也会令在途 worker 以 context.Canceled 退出。
	werr := g.Wait()
	if werr != nil && (ierr == nil || !errors.Is(werr, context.Canceled) || errors.Is(ierr, context.Canceled)) {
		runFinished(false, runStart)
		return nil, werr
	}
	if ierr != nil {
		code := diag.Classify(ierr)
		logger.ErrorWith("reader", string(code), "iterate failed", rtimer.Since(), "")
		countError("reader", code)
		runFinished(false, runStart)
		return nil, fmt.Errorf("reader iterate: %w", ierr)
	}
	d := rtimer.Finish("iterate", int64(len(results)))
	diag.IncOp("reader", "finish", "success")
	diag.ObserveDuration("reader", "iterate", d.Milliseconds())
	logger.InfoFinish("pipeline", "run", runStart, int64(len(results)))
	runFinished(true, runStart)

	out := make([]Report, len(results))
	for i, r := range results {
		out[i] = *r
	}
	return out, nil
}

func parseOne(ctx context.Context, p contract.Parser, fid contract.FileID, r io.Reader, logger *diag.Logger) (contract.Almanac, error) {
	tm := logger.StartWith("parser", "parse", string(fid))
	alm, err := p.Parse(ctx, fid, r)
	if err != nil {
		code := diag.Classify(err)
		logger.ErrorWith("parser", string(code), "parse failed", tm.Since(), string(fid))
		countError("parser", code)
		return contract.Almanac{}, fmt.Errorf("parser parse %s: %w", fid, err)
	}
	d := tm.FinishKV("parse", int64(len(alm.Stages)), map[string]string{"seeds": strconv.Itoa(len(alm.Seeds))})
	diag.IncOp("parser", "finish", "success")
	diag.ObserveDuration("parser", "parse", d.Milliseconds())
	return alm, nil
}

func solveOne(ctx context.Context, w contract.Writer, set Settings, fid contract.FileID, alm contract.Almanac, logger *diag.Logger) (Report, error) {
	fileStart := time.Now()

	ctm := logger.StartWith("chain", "build", string(fid))
	chain, err := remap.BuildChain(alm.Stages, set.Source, set.Terminal, set.Domain)
	if err != nil {
		code := diag.Classify(err)
		logger.ErrorWith("chain", string(code), "build failed", ctm.Since(), string(fid))
		countError("chain", code)
		fileFailed(fid, time.Since(fileStart))
		return Report{}, fmt.Errorf("chain %s: %w", fid, err)
	}
	ctm.Finish("build", int64(chain.Len()))
	diag.IncOp("chain", "finish", "success")
	if unused := chain.Unused(); len(unused) > 0 {
		logger.Warn("chain", "stages not on path", string(fid), map[string]string{"unused": joinCats(unused)})
	}
	if n := chain.Clipped(); n > 0 {
		logger.Warn("chain", "overlapping or out-of-domain rules clipped", string(fid), map[string]string{"clipped": strconv.Itoa(n)})
	}

	stm := logger.StartWithKV("solve", "solve", string(fid), map[string]string{"scope": set.Scope.String()})
	res, err := remap.Solve(ctx, chain, alm.Seeds, remap.SolveOptions{
		Scope:       set.Scope,
		Concurrency: set.Concurrency,
		Merge:       set.Merge,
		OnSplit: func(from contract.Category, pieces int) {
			diag.AddIntervals(string(from), pieces)
		},
	})
	if err != nil {
		code := diag.Classify(err)
		logger.ErrorWith("solve", string(code), "solve failed", stm.Since(), string(fid))
		countError("solve", code)
		fileFailed(fid, time.Since(fileStart))
		return Report{}, fmt.Errorf("solve %s: %w", fid, err)
	}
	d := stm.FinishKV("solve", int64(res.Pieces), map[string]string{"min": strconv.FormatInt(res.Min, 10)})
	diag.IncOp("solve", "finish", "success")
	diag.ObserveDuration("solve", "solve", d.Milliseconds())

	rep := buildReport(fid, chain, set, res)
	body, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return Report{}, fmt.Errorf("report %s: %w", fid, err)
	}
	body = append(body, '\n')

	wtm := logger.StartWith("writer", "write", string(fid))
	if err := w.Write(ctx, ReportID(fid), bytes.NewReader(body)); err != nil {
		code := diag.Classify(err)
		logger.ErrorWith("writer", string(code), "write failed", wtm.Since(), string(fid))
		countError("writer", code)
		fileFailed(fid, time.Since(fileStart))
		return Report{}, fmt.Errorf("writer write %s: %w", fid, err)
	}
	wtm.Finish("write", int64(len(body)))
	diag.IncOp("writer", "finish", "success")

	if t := diag.GetTerminal(); t != nil {
		t.FileFinish(string(fid), true, res.Min, time.Since(fileStart))
	}
	return rep, nil
}

func buildReport(fid contract.FileID, chain *remap.Chain, set Settings, res remap.Result) Report {
	rep := Report{
		File:     string(fid),
		Source:   string(chain.Source()),
		Terminal: string(chain.Terminal()),
		Scope:    set.Scope.String(),
		Seeds:    res.Seeds,
		Pieces:   res.Pieces,
		Min:      res.Min,
		Clipped:  chain.Clipped(),
	}
	for _, c := range chain.Path() {
		rep.Path = append(rep.Path, string(c))
	}
	for _, c := range chain.Unused() {
		rep.Unused = append(rep.Unused, string(c))
	}
	if set.Intervals {
		rep.Intervals = make([][2]int64, 0, len(res.Intervals))
		for _, iv := range res.Intervals {
			rep.Intervals = append(rep.Intervals, [2]int64{iv.Start, iv.End})
		}
	}
	return rep
}

func countError(comp string, code diag.Code) {
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func fileFailed(fid contract.FileID, d time.Duration) {
	if t := diag.GetTerminal(); t != nil {
		t.FileFinish(string(fid), false, 0, d)
	}
}

func runFinished(ok bool, start time.Time) {
	if t := diag.GetTerminal(); t != nil {
		t.RunFinish(ok, time.Since(start))
	}
}

func joinCats(cs []contract.Category) string {
	ss := make([]string, len(cs))
	for i, c := range cs {
		ss[i] = string(c)
	}
	return strings.Join(ss, ",")
}

func sanity(c Components, s *Settings) error {
	if c.Reader == nil || c.Parser == nil || c.Writer == nil {
		return fmt.Errorf("%w: pipeline: missing components", contract.ErrConfig)
	}
	if len(s.Inputs) == 0 {
		return fmt.Errorf("%w: pipeline: empty inputs", contract.ErrConfig)
	}
	if s.Source == "" || s.Terminal == "" {
		return fmt.Errorf("%w: pipeline: source/terminal not set", contract.ErrConfig)
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if err := s.Domain.Validate(); err != nil {
		return fmt.Errorf("%w: pipeline: %v", contract.ErrConfig, err)
	}
	return nil
}
