package diag

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"remap/pkg/contract"
)

func decodeLines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), "行不是合法 JSON: %s", sc.Text())
		out = append(out, m)
	}
	return out
}

func TestRotatingFileRotates(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	require.NoError(t, w.WriteLine([]byte("first line that is very long")))
	require.NoError(t, w.WriteLine([]byte("second")))
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	hasCurrent, hasRotated := false, false
	for _, e := range ents {
		switch {
		case e.Name() == "remap-current.log":
			hasCurrent = true
		case strings.HasPrefix(e.Name(), "remap-") && strings.HasSuffix(e.Name(), ".log"):
			hasRotated = true
		}
	}
	assert.True(t, hasCurrent, "应存在 current 文件")
	assert.True(t, hasRotated, "应存在轮转文件")

	cur, err := os.ReadFile(filepath.Join(dir, "remap-current.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(cur))
}

func TestRotatingFileSyncBeforeOpen(t *testing.T) {
	w := NewRotatingFile(t.TempDir(), 0)
	assert.NoError(t, w.Sync())
	assert.NoError(t, w.Close())
}

func TestRotatingFileBadDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	w := NewRotatingFile(filepath.Join(blocker, "sub"), 10)
	_, err := w.Write([]byte("x\n"))
	require.Error(t, err)
}

func TestLoggerJSONEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("cid-1", "info", WithSink(zapcore.AddSync(&buf)))
	tm := l.StartWithKV("parser", "parse", "a.txt", map[string]string{"z": "1", "a": "2"})
	tm.Finish("parsed", 7)
	l.ErrorWith("writer", string(CodeIO), "write failed", tm.Since(), "a.txt")
	require.NoError(t, l.Sync())

	evs := decodeLines(t, buf.Bytes())
	require.Len(t, evs, 3)
	assert.Equal(t, "cid-1", evs[0]["corr_id"])
	assert.Equal(t, "parser", evs[0]["comp"])
	assert.Equal(t, "start", evs[0]["stage"])
	assert.Equal(t, "a.txt", evs[0]["file_id"])
	assert.Equal(t, map[string]any{"a": "2", "z": "1"}, evs[0]["kv"])
	assert.NotEmpty(t, evs[0]["ts"])

	assert.Equal(t, "finish", evs[1]["stage"])
	assert.EqualValues(t, 7, evs[1]["count"])
	assert.Equal(t, "parsed", evs[1]["msg"])

	assert.Equal(t, "error", evs[2]["level"])
	assert.Equal(t, "io", evs[2]["code"])
	assert.Equal(t, "a.txt", evs[2]["file_id"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("cid", "warn", WithSink(zapcore.AddSync(&buf)))
	l.Start("pipeline", "run")
	l.DebugStart("pipeline", "debug", "", nil)
	l.Warn("chain", "unused stages", "", map[string]string{"unused": "x"})
	require.NoError(t, l.Sync())
	evs := decodeLines(t, buf.Bytes())
	require.Len(t, evs, 1)
	assert.Equal(t, "warn", evs[0]["stage"])
}

func TestLoggerObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core))
	l.DebugStart("chain", "build", "f", map[string]string{"k": "v"})
	l.Error("solve", string(CodeOverflow), "boom", nil)
	l.InfoFinish("pipeline", "done", time.Now(), 2)

	require.Equal(t, 3, logs.Len())
	assert.Equal(t, 1, logs.FilterField(zap.String("stage", "error")).Len())
	assert.Equal(t, 1, logs.FilterField(zap.String("code", "overflow")).Len())
	assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
}

func TestLoggerDefaultFileSink(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger("cid-file", "debug", WithDir(dir), WithMaxBytes(1<<20))
	l.Start("pipeline", "run").Finish("done", 1)
	require.NoError(t, l.Close())
	b, err := os.ReadFile(filepath.Join(dir, "remap-current.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"corr_id":"cid-file"`)
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Start("x", "y").Finish("z", 1)
		l.Warn("x", "y", "", nil)
		l.Error("x", "y", "z", nil)
		_ = l.Close()
	})
	var tm *Timer
	assert.Zero(t, tm.Finish("x", 0))
	assert.Nil(t, tm.Since())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.True(t, ValidLevel("Warn"))
	assert.False(t, ValidLevel("verbose"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{errors.New("x"), CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), CodeCancel},
		{fmt.Errorf("%w: inputs empty", contract.ErrConfig), CodeConfig},
		{fmt.Errorf("line 3: %w", contract.ErrParse), CodeParse},
		{contract.ErrMalformedRule, CodeConfig},
		{contract.ErrNoSeeds, CodeParse},
		{contract.ErrOverflow, CodeOverflow},
		{contract.ErrOutOfDomain, CodeOverflow},
		{contract.ErrCycle, CodeConfig},
		{fmt.Errorf("stage %q: %w", "x", contract.ErrUnknownCategory), CodeConfig},
		{contract.ErrInvalidInput, CodeInvariant},
		{contract.ErrPathInvalid, CodeInvariant},
		{&fs.PathError{Op: "open", Path: "x", Err: fs.ErrNotExist}, CodeIO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "err=%v", tt.err)
	}
}

func TestMetrics(t *testing.T) {
	before := testutil.ToFloat64(opTotal.WithLabelValues("parser", "finish", "success"))
	IncOp("parser", "finish", "success")
	IncOp("parser", "finish", "success")
	assert.Equal(t, before+2, testutil.ToFloat64(opTotal.WithLabelValues("parser", "finish", "success")))

	errBefore := testutil.ToFloat64(errorTotal.WithLabelValues("solve", "overflow"))
	IncError("solve", "overflow")
	assert.Equal(t, errBefore+1, testutil.ToFloat64(errorTotal.WithLabelValues("solve", "overflow")))

	ivBefore := testutil.ToFloat64(intervalsTotal.WithLabelValues("seed"))
	AddIntervals("seed", 3)
	AddIntervals("seed", 0)
	assert.Equal(t, ivBefore+3, testutil.ToFloat64(intervalsTotal.WithLabelValues("seed")))

	ObserveDuration("solve", "finish", 12)
	assert.Positive(t, testutil.CollectAndCount(opDuration))

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, WriteMetrics(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, name := range []string{"remap_op_total", "remap_error_total", "remap_op_duration_ms", "remap_intervals_total"} {
		assert.Contains(t, string(b), name)
	}
}

type failWriter struct{ n int }

func (w *failWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errors.New("closed")
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, true)
	term.RunStart(2, "seed>soil", "all", 4)
	term.FileFinish("dir/a.txt", true, 46, 1500*time.Millisecond)
	term.FileFinish("b.txt", false, 0, 20*time.Millisecond)
	term.RunFinish(false, 2*time.Second)

	out := buf.String()
	assert.Contains(t, out, "[run] 文件=2 | 链=seed>soil | scope=all | 并发=4")
	assert.Contains(t, out, "[done] a.txt | min=46 | 用时 1.5s")
	assert.Contains(t, out, "[fail] b.txt | 用时 20ms")
	assert.Contains(t, out, "[fail] 全部完成 | 文件 2 | 失败 1")

	var quiet bytes.Buffer
	NewTerminal(&quiet, false).RunStart(1, "x", "all", 1)
	assert.Empty(t, quiet.String())

	fw := &failWriter{}
	ft := NewTerminal(fw, true)
	ft.RunStart(1, "x", "all", 1)
	ft.RunFinish(true, time.Second)
	assert.Equal(t, 1, fw.n, "写失败后应禁用")

	SetTerminal(term)
	assert.Same(t, term, GetTerminal())
	SetTerminal(nil)
	assert.Nil(t, GetTerminal())
}

func TestShortenBase(t *testing.T) {
	assert.Equal(t, "a.txt", shortenBase("/x/y/a.txt", 10))
	assert.Equal(t, "abcd…", shortenBase("abcdefghij", 5))
	assert.Equal(t, "", shortenBase("abc", 0))
}
