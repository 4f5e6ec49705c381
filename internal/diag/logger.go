package diag

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger: 组件事件日志，底层为 zap JSON 编码。
// 事件字段：comp / stage(start|finish|error|warn) / code / dur_ms / count / file_id / kv，
// 以及进程级 corr_id。nil *Logger 上的全部方法为 no-op。
type Logger struct {
	z    *zap.Logger
	sink *RotatingFile
}

type options struct {
	ws  zapcore.WriteSyncer
	dir string
	max int64
}

// Option 配置 NewLogger。
type Option func(*options)

// WithSink 指定输出目标（替代默认的轮转文件）。
func WithSink(ws zapcore.WriteSyncer) Option { return func(o *options) { o.ws = ws } }

// WithDir 指定轮转文件目录（默认 logs）。
func WithDir(dir string) Option { return func(o *options) { o.dir = dir } }

// WithMaxBytes 指定单个日志文件上限。
func WithMaxBytes(n int64) Option { return func(o *options) { o.max = n } }

// NewLogger 以 level 初始化；默认写入 logs/remap-current.log，10 MiB 轮转。
func NewLogger(corrID, level string, opts ...Option) *Logger {
	o := options{dir: "logs", max: 10 * 1024 * 1024}
	for _, fn := range opts {
		fn(&o)
	}
	l := &Logger{}
	ws := o.ws
	if ws == nil {
		l.sink = NewRotatingFile(o.dir, o.max)
		ws = l.sink
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), ws, ParseLevel(level))
	l.z = zap.New(core).With(zap.String("corr_id", corrID))
	return l
}

// NewFromZap 包装已有 zap.Logger（测试或嵌入场景）。
func NewFromZap(z *zap.Logger) *Logger { return &Logger{z: z} }

// NewNop 返回丢弃全部事件的 Logger。
func NewNop() *Logger { return &Logger{z: zap.NewNop()} }

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.CallerKey = zapcore.OmitKey
	cfg.StacktraceKey = zapcore.OmitKey
	return cfg
}

// ParseLevel 解析 debug|info|warn|error；未知值回退 info。
func ParseLevel(s string) zapcore.Level {
	lv, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lv
}

// ValidLevel 判断 s 是否为可识别的日志等级。
func ValidLevel(s string) bool {
	_, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	return err == nil
}

// Sync 刷新缓冲。
func (l *Logger) Sync() error {
	if l == nil || l.z == nil {
		return nil
	}
	return l.z.Sync()
}

// Close 刷新并关闭默认轮转文件。
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	_ = l.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

// kv 以稳定键序输出为嵌套对象。
type kv map[string]string

func (m kv) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		enc.AddString(k, m[k])
	}
	return nil
}

type event struct {
	comp   string
	stage  string
	code   string
	dur    int64
	count  int64
	fileID string
	kv     map[string]string
}

func (l *Logger) log(lv zapcore.Level, msg string, ev event) {
	if l == nil || l.z == nil {
		return
	}
	ce := l.z.Check(lv, msg)
	if ce == nil {
		return
	}
	fields := make([]zap.Field, 0, 7)
	fields = append(fields, zap.String("comp", ev.comp), zap.String("stage", ev.stage))
	if ev.code != "" {
		fields = append(fields, zap.String("code", ev.code))
	}
	if ev.dur > 0 {
		fields = append(fields, zap.Int64("dur_ms", ev.dur))
	}
	if ev.count > 0 {
		fields = append(fields, zap.Int64("count", ev.count))
	}
	if ev.fileID != "" {
		fields = append(fields, zap.String("file_id", ev.fileID))
	}
	if len(ev.kv) > 0 {
		fields = append(fields, zap.Object("kv", kv(ev.kv)))
	}
	ce.Write(fields...)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWithKV(comp, msg, "", nil)
}

// StartWith 记录带 file_id 的 start。
func (l *Logger) StartWith(comp, msg, fileID string) *Timer {
	return l.StartWithKV(comp, msg, fileID, nil)
}

// StartWithKV 记录带 file_id 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, fileID string, kv map[string]string) *Timer {
	l.log(zapcore.InfoLevel, msg, event{comp: comp, stage: "start", fileID: fileID, kv: kv})
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// DebugStart 仅在 level=debug 时输出。
func (l *Logger) DebugStart(comp, msg, fileID string, kv map[string]string) {
	l.log(zapcore.DebugLevel, msg, event{comp: comp, stage: "start", fileID: fileID, kv: kv})
}

// Warn 记录可继续的异常（例如规则被截断、存在未使用的 Stage）。
func (l *Logger) Warn(comp, msg, fileID string, kv map[string]string) {
	l.log(zapcore.WarnLevel, msg, event{comp: comp, stage: "warn", fileID: fileID, kv: kv})
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", nil)
}

// ErrorWith 支持 file_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID string) {
	l.ErrorWithKV(comp, code, msg, durSince, fileID, nil)
}

// ErrorWithKV 支持附带键值对。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(zapcore.ErrorLevel, msg, event{comp: comp, stage: "error", code: code, dur: dur, fileID: fileID, kv: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(zapcore.InfoLevel, msg, event{comp: comp, stage: "finish", dur: time.Since(start).Milliseconds(), count: count})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish 记录 finish；可选 count。返回耗时供指标使用。
func (t *Timer) Finish(msg string, count int64) time.Duration {
	if t == nil {
		return 0
	}
	d := time.Since(t.t0)
	t.l.log(zapcore.InfoLevel, msg, event{comp: t.comp, stage: "finish", dur: d.Milliseconds(), count: count, fileID: t.fileID})
	return d
}

// FinishKV 同 Finish，附带键值。
func (t *Timer) FinishKV(msg string, count int64, kv map[string]string) time.Duration {
	if t == nil {
		return 0
	}
	d := time.Since(t.t0)
	t.l.log(zapcore.InfoLevel, msg, event{comp: t.comp, stage: "finish", dur: d.Milliseconds(), count: count, fileID: t.fileID, kv: kv})
	return d
}

// Since 返回计时起点（用于 ErrorWith 的 durSince）。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}
