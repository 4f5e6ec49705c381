package stdout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"remap/pkg/contract"
)

// Options: 标准输出 Writer 选项。
type Options struct {
	// Header: 每个工件前输出 "# <id>" 行。
	Header bool `json:"header,omitempty"`
}

// Writer 将工件整体写到同一个 io.Writer；多个工件之间不交错。
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	header bool
}

// New 创建写往 os.Stdout 的 Writer。
func New(opts *Options) *Writer {
	return NewTo(os.Stdout, opts)
}

// NewTo 创建写往 w 的 Writer；w 为 nil 时丢弃输出。
func NewTo(w io.Writer, opts *Options) *Writer {
	if w == nil {
		w = io.Discard
	}
	sw := &Writer{out: w}
	if opts != nil {
		sw.header = opts.Header
	}
	return sw
}

var _ contract.Writer = (*Writer)(nil)

func (w *Writer) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if w.header {
		fmt.Fprintf(&buf, "# %s\n", id)
	}
	if _, err := buf.ReadFrom(r); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.out.Write(buf.Bytes())
	return err
}
