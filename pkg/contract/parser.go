package contract

import (
	"context"
	"io"
)

// Parser: 将单个输入字节流解析为 Almanac。
// 约束：
// 1) 不跨文件合并；
// 2) 仅做格式解析与 (dst,src,len)→Rule 转换，不做规范化/链解析；
// 3) 无内部并发、幂等；
// 4) 格式错误返回包装了 ErrParse 的错误（带行号）。
type Parser interface {
	Parse(ctx context.Context, fileID FileID, r io.Reader) (Almanac, error)
}
