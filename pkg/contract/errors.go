package contract

import "errors"

// 最小错误分类（用于上层策略判定与退出码映射）。
var (
	// ErrInvalidInput: 调用方参数非法（通用哨兵）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrConfig: 配置缺失或取值非法。
	ErrConfig = errors.New("invalid config")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrInvalidInterval: 区间 start>end 或长度非正。
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrMalformedRule: 规则 start>end、长度非正或完全落在值域之外。
	ErrMalformedRule = errors.New("malformed rule")
	// ErrEmptyStage: Stage 无任何规则。
	ErrEmptyStage = errors.New("stage has no rules")
	// ErrUnknownCategory: 链上引用了未定义的类别。
	ErrUnknownCategory = errors.New("unknown category")
	// ErrCycle: 沿 To 前进回到已访问类别。
	ErrCycle = errors.New("category cycle")
	// ErrOverflow: 偏移应用越过 int64 表示范围。
	ErrOverflow = errors.New("integer overflow")
	// ErrOutOfDomain: 区间越出规范化覆盖的值域。
	ErrOutOfDomain = errors.New("interval out of domain")
	// ErrNoSeeds: 没有任何初始区间。
	ErrNoSeeds = errors.New("no seeds")
	// ErrParse: 输入文本格式错误。
	ErrParse = errors.New("parse error")
)
