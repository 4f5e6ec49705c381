package auto

import (
	"context"
	"io"
	"path"
	"strings"

	"remap/pkg/contract"
	palm "remap/plugins/parser/almanac"
	ptab "remap/plugins/parser/table"
)

// Options: 两种格式各自的选项原样透传。
type Options struct {
	Almanac palm.Options `json:"almanac"`
	Table   ptab.Options `json:"table"`
}

// Parser 按 FileID 扩展名分派：.yaml/.yml/.json 走 table，其余走 almanac 文本格式。
type Parser struct {
	text  *palm.Parser
	table *ptab.Parser
}

// New 创建分派 Parser。
func New(opts *Options) (*Parser, error) {
	if opts == nil {
		opts = &Options{}
	}
	text, err := palm.New(&opts.Almanac)
	if err != nil {
		return nil, err
	}
	return &Parser{text: text, table: ptab.New(&opts.Table)}, nil
}

var _ contract.Parser = (*Parser)(nil)

func (p *Parser) Parse(ctx context.Context, fileID contract.FileID, r io.Reader) (contract.Almanac, error) {
	if Structured(fileID) {
		return p.table.Parse(ctx, fileID, r)
	}
	return p.text.Parse(ctx, fileID, r)
}

// Structured 判断 FileID 是否为结构化文档。
func Structured(fileID contract.FileID) bool {
	switch strings.ToLower(path.Ext(string(fileID))) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
