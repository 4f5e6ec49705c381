package diag

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 进程级指标，注册在私有 Registry 上（不污染默认全局注册表）：
// - remap_op_total{comp,stage,result}
// - remap_error_total{comp,code}
// - remap_op_duration_ms{comp,stage}
// - remap_intervals_total{stage}
var (
	registry = prometheus.NewRegistry()

	opTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remap_op_total",
		Help: "Component operations by result.",
	}, []string{"comp", "stage", "result"})

	errorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remap_error_total",
		Help: "Errors by component and classified code.",
	}, []string{"comp", "code"})

	opDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remap_op_duration_ms",
		Help:    "Operation duration in milliseconds.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"comp", "stage"})

	intervalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remap_intervals_total",
		Help: "Interval pieces produced per stage split.",
	}, []string{"stage"})
)

func init() {
	registry.MustRegister(opTotal, errorTotal, opDuration, intervalsTotal)
}

// Registry 返回进程级指标注册表（供导出或测试读取）。
func Registry() *prometheus.Registry { return registry }

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	opTotal.WithLabelValues(comp, stage, result).Inc()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	errorTotal.WithLabelValues(comp, code).Inc()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	opDuration.WithLabelValues(comp, stage).Observe(float64(durMS))
}

// AddIntervals 累加某 Stage 切分产出的区间片数。
func AddIntervals(stage string, n int) {
	if n > 0 {
		intervalsTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// WriteMetrics 以 Prometheus 文本格式原子写出全部指标。
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}
