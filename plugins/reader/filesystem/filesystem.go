package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"remap/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置。
type Options struct {
	// BufSize: 读缓冲区大小（字节），默认 64KiB。
	BufSize int `json:"buf_size"`
	// ExcludeDirNames: 目录递归时跳过的目录基名（大小写不敏感）。
	ExcludeDirNames []string `json:"exclude_dir_names"`
	// Extensions: 目录递归时仅接受这些扩展名（如 ".txt"）；空表示全部。显式给出的文件不受限制。
	Extensions []string `json:"extensions"`
	// IncludeHidden: 目录递归时是否包含以 "." 开头的文件与目录。
	IncludeHidden bool `json:"include_hidden"`
}

// FileSystem 实现基于文件系统与 STDIN 的 Reader。
// 约束：1) 目录按字典序，先子目录后文件；2) 目录符号链接不跟随；3) 同一 FileID 只产出一次。
type FileSystem struct {
	bufSize    int
	excludeDir map[string]struct{}
	exts       map[string]struct{}
	hidden     bool
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	r := &FileSystem{
		bufSize:    64 * 1024,
		excludeDir: make(map[string]struct{}),
		exts:       make(map[string]struct{}),
	}
	if opts == nil {
		return r
	}
	if opts.BufSize > 0 {
		r.bufSize = opts.BufSize
	}
	for _, name := range opts.ExcludeDirNames {
		if name = strings.Trim(name, `/\`); name != "" {
			r.excludeDir[strings.ToLower(name)] = struct{}{}
		}
	}
	for _, ext := range opts.Extensions {
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.exts[strings.ToLower(ext)] = struct{}{}
	}
	r.hidden = opts.IncludeHidden
	return r
}

var _ contract.Reader = (*FileSystem)(nil)

type yieldFunc = func(contract.FileID, io.ReadCloser) error

// Iterate 遍历 roots，按稳定顺序对每个常规文件调用 yield。
// roots 为空或仅为 "-" 时读取 STDIN，FileID 为 "stdin"。
func (r *FileSystem) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, rc io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(roots) == 0 || (len(roots) == 1 && roots[0] == "-") {
		return yield(contract.FileID("stdin"), newBufferedCloser(io.NopCloser(os.Stdin), r.bufSize))
	}
	for _, s := range roots {
		if s == "-" {
			return fmt.Errorf("%w: stdin '-' cannot be mixed with other roots", contract.ErrInvalidInput)
		}
	}
	w := &walker{FileSystem: r, ctx: ctx, yield: yield, seen: make(map[contract.FileID]struct{})}
	for _, root := range roots {
		if err := w.root(root); err != nil {
			return err
		}
	}
	return nil
}

// walker: 单次 Iterate 的遍历状态。
type walker struct {
	*FileSystem
	ctx   context.Context
	yield yieldFunc
	seen  map[contract.FileID]struct{}
}

func (w *walker) root(root string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	info, err := os.Lstat(root)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t, err := os.Stat(root)
		if err != nil {
			return err
		}
		// 目录符号链接忽略
		if t.Mode().IsRegular() {
			return w.emit(root)
		}
		return nil
	}
	if info.IsDir() {
		return w.walkDir(root)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return w.emit(root)
}

func (w *walker) walkDir(dir string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if !e.IsDir() || !w.visible(e.Name()) {
			continue
		}
		if _, skip := w.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		if err := w.walkDir(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !w.visible(e.Name()) || !w.accepts(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		ok, err := regularTarget(p, e)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := w.emit(p); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) visible(name string) bool {
	return w.hidden || !strings.HasPrefix(name, ".")
}

func (w *walker) accepts(name string) bool {
	if len(w.exts) == 0 {
		return true
	}
	_, ok := w.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// regularTarget: 常规文件或指向常规文件的符号链接。
func regularTarget(p string, e fs.DirEntry) (bool, error) {
	if e.Type()&os.ModeSymlink != 0 {
		t, err := os.Stat(p)
		if err != nil {
			return false, err
		}
		return t.Mode().IsRegular(), nil
	}
	return e.Type().IsRegular(), nil
}

func (w *walker) emit(p string) error {
	id := contract.NormalizeFileID(p)
	if _, dup := w.seen[id]; dup {
		return nil
	}
	w.seen[id] = struct{}{}
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	brc := newBufferedCloser(f, w.bufSize)
	if err := w.yield(id, brc); err != nil {
		_ = brc.Close()
		return err
	}
	return nil
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser；重复 Close 无副作用。
type bufferedCloser struct {
	*bufio.Reader
	c      io.Closer
	closed bool
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	err := b.c.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
