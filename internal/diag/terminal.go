package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Terminal: 终端状态提示（非日志）。
// - 输出到提供的 io.Writer（默认 stderr），每个关键节点一行。
// - 并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool

	filesDone int
	failed    int
	mu        sync.Mutex
}

var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal 设置全局终端指针（nil 可清除）。
func SetTerminal(t *Terminal) { termMu.Lock(); term = t; termMu.Unlock() }

// GetTerminal 返回全局终端（可能为 nil）。
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return term }

// NewTerminal 构造终端提示器；enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	return &Terminal{w: w, enabled: enabled}
}

// RunStart: 运行上下文。
func (t *Terminal) RunStart(files int, path string, scope string, concurrency int) {
	t.printf("[run] 文件=%d | 链=%s | scope=%s | 并发=%d", files, safe(path), scope, concurrency)
}

// FileFinish: 单个文件完成。
func (t *Terminal) FileFinish(fileID string, ok bool, min int64, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.filesDone++
	if !ok {
		t.failed++
	}
	t.mu.Unlock()
	if ok {
		t.printf("[done] %s | min=%d | 用时 %s", shortenBase(fileID, 48), min, formatDur(dur))
		return
	}
	t.printf("[fail] %s | 用时 %s", shortenBase(fileID, 48), formatDur(dur))
}

// RunFinish: 结束总览。
func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	done, failed := t.filesDone, t.failed
	t.mu.Unlock()
	tag := "ok"
	if !ok {
		tag = "fail"
	}
	t.printf("[%s] 全部完成 | 文件 %d | 失败 %d | 总用时 %s", tag, done, failed, formatDur(dur))
}

func (t *Terminal) printf(format string, args ...any) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	if _, err := fmt.Fprintf(t.w, format+"\n", args...); err != nil {
		t.enabled = false
	}
}

// shortenBase: 取基名并按 rune 截断（尾部省略号）。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	rs := []rune(base)
	if len(rs) <= max {
		return base
	}
	return string(rs[:max-1]) + "…"
}

func safe(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

func formatDur(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", max(d.Milliseconds(), 0))
	}
	return fmt.Sprintf("%.1fs", float64(d.Milliseconds())/1000.0)
}
