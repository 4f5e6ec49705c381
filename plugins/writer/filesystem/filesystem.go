package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"remap/pkg/contract"
)

// Options: 报告落盘选项。
type Options struct {
	// OutputDir: 输出根目录（必需）。
	OutputDir string `json:"output_dir"`
	// Atomic: 同目录临时文件 + rename；未提供时为 true。
	Atomic *bool `json:"atomic,omitempty"`
	// Flat: 仅保留文件名；未提供时为 true。扁平模式下不同工件映射到同名文件视为冲突。
	Flat *bool `json:"flat,omitempty"`
	// PermFile/PermDir: 为 0 时使用 0644/0755。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
}

// Writer 将工件写入 OutputDir 下由 ArtifactID 映射的路径。并发安全。
type Writer struct {
	root   string
	atomic bool
	flat   bool
	permF  os.FileMode
	permD  os.FileMode

	mu    sync.Mutex
	owner map[string]contract.ArtifactID
}

// New 创建文件系统 Writer。
func New(opts *Options) (*Writer, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("%w: writer fs: output_dir required", contract.ErrConfig)
	}
	w := &Writer{
		root:   opts.OutputDir,
		atomic: true,
		flat:   true,
		permF:  0o644,
		permD:  0o755,
		owner:  make(map[string]contract.ArtifactID),
	}
	if opts.Atomic != nil {
		w.atomic = *opts.Atomic
	}
	if opts.Flat != nil {
		w.flat = *opts.Flat
	}
	if opts.PermFile != 0 {
		w.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		w.permD = opts.PermDir
	}
	return w, nil
}

var _ contract.Writer = (*Writer)(nil)

// Write 将 r 的全部字节写入 id 对应路径；同一 id 重复写入为替换。
func (w *Writer) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := w.mapPath(id)
	if err != nil {
		return err
	}
	if err := w.claim(dest, id); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
		return err
	}
	if w.atomic {
		return w.writeAtomic(ctx, dest, r)
	}
	return w.writeDirect(ctx, dest, r)
}

// mapPath: Clean + Join + 越界校验。
func (w *Writer) mapPath(id contract.ArtifactID) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(string(id)))
	if w.flat {
		rel = filepath.Base(rel)
	}
	switch {
	case rel == "." || rel == ".." || rel == string(filepath.Separator):
		return "", contract.ErrPathInvalid
	case filepath.IsAbs(rel) || filepath.VolumeName(rel) != "":
		return "", contract.ErrPathInvalid
	case strings.HasPrefix(rel, ".."+string(filepath.Separator)):
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(w.root, rel), nil
}

// claim 记录 dest 的归属；不同 id 争用同一路径时报错。
func (w *Writer) claim(dest string, id contract.ArtifactID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.owner[dest]; ok && prev != id {
		return fmt.Errorf("%w: %q and %q both map to %s", contract.ErrPathInvalid, prev, id, dest)
	}
	w.owner[dest] = id
	return nil
}

func (w *Writer) writeDirect(ctx context.Context, dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
	if err != nil {
		return err
	}
	if err := copyBuffered(ctx, f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (w *Writer) writeAtomic(ctx context.Context, dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(w.permF); err != nil {
		return fail(err)
	}
	if err := copyBuffered(ctx, tmp, r); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// os.Rename 在 Windows 上同样以替换语义覆盖已有目标。
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	syncDir(dir)
	return nil
}

func copyBuffered(ctx context.Context, f *os.File, r io.Reader) error {
	bw := bufio.NewWriter(f)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return err
	}
	return bw.Flush()
}

// syncDir 尽力同步父目录元数据；不支持的平台忽略错误。
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
