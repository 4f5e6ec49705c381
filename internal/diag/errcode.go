package diag

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"remap/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
// config 覆盖配置本身以及链/规则构造失败（未知类别、环、空 Stage、非法规则）。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeConfig    Code = "config"
	CodeParse     Code = "parse"
	CodeOverflow  Code = "overflow"
	CodeInvariant Code = "invariant"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return CodeCancel
	case errors.Is(err, contract.ErrConfig),
		errors.Is(err, contract.ErrUnknownCategory),
		errors.Is(err, contract.ErrCycle),
		errors.Is(err, contract.ErrMalformedRule),
		errors.Is(err, contract.ErrEmptyStage):
		return CodeConfig
	case errors.Is(err, contract.ErrParse),
		errors.Is(err, contract.ErrInvalidInterval),
		errors.Is(err, contract.ErrNoSeeds):
		return CodeParse
	case errors.Is(err, contract.ErrOverflow), errors.Is(err, contract.ErrOutOfDomain):
		return CodeOverflow
	case errors.Is(err, contract.ErrInvariantViolation),
		errors.Is(err, contract.ErrInvalidInput),
		errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
