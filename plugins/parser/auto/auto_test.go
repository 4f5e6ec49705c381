package auto

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remap/pkg/contract"
	palm "remap/plugins/parser/almanac"
)

func TestDispatch(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)
	ctx := context.Background()

	alm, err := p.Parse(ctx, "in/a.txt", strings.NewReader("seeds: 5 2\n\na-to-b map:\n10 5 2\n"))
	require.NoError(t, err)
	assert.Equal(t, []contract.Interval{{Start: 5, End: 6}}, alm.Seeds)

	alm, err = p.Parse(ctx, "in/a.YML", strings.NewReader("seeds: [[5, 2]]\nstages: [{from: a, to: b, rules: [[10, 5, 2]]}]\n"))
	require.NoError(t, err)
	assert.Equal(t, []contract.Rule{{Start: 5, End: 6, Shift: 5}}, alm.Stages["a"].Rules)

	// 文本内容交给 table 解析必然失败
	_, err = p.Parse(ctx, "a.json", strings.NewReader("seeds: 5 2\n"))
	require.ErrorIs(t, err, contract.ErrParse)
}

func TestOptionsPassThrough(t *testing.T) {
	p, err := New(&Options{Almanac: palm.Options{Seeds: palm.SeedValues}})
	require.NoError(t, err)
	alm, err := p.Parse(context.Background(), "stdin", strings.NewReader("seeds: 5 2\n"))
	require.NoError(t, err)
	assert.Equal(t, []contract.Interval{{Start: 5, End: 5}, {Start: 2, End: 2}}, alm.Seeds)

	_, err = New(&Options{Almanac: palm.Options{Seeds: "x"}})
	require.ErrorIs(t, err, contract.ErrConfig)
}

func TestStructured(t *testing.T) {
	for id, want := range map[contract.FileID]bool{
		"a.yaml": true, "b/c.JSON": true, "x.yml": true,
		"a.txt": false, "stdin": false, "dir.json/a": false,
	} {
		assert.Equal(t, want, Structured(id), string(id))
	}
}
