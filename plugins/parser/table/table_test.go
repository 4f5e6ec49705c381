package table

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remap/pkg/contract"
)

const yamlDoc = `
seeds: [[79, 14], [55, 13]]
stages:
  - from: seed
    to: soil
    rules:
      - [50, 98, 2]
      - [52, 50, 48]
  - from: soil
    to: location
    rules: [[0, 15, 37]]
`

func TestParseYAML(t *testing.T) {
	alm, err := New(nil).Parse(context.Background(), "a.yaml", strings.NewReader(yamlDoc))
	require.NoError(t, err)
	if diff := cmp.Diff([]contract.Interval{{Start: 79, End: 92}, {Start: 55, End: 67}}, alm.Seeds); diff != "" {
		t.Fatalf("seeds mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, alm.Stages, 2)
	assert.Equal(t, []contract.Rule{{Start: 98, End: 99, Shift: -48}, {Start: 50, End: 97, Shift: 2}}, alm.Stages["seed"].Rules)
	assert.Equal(t, contract.Category("location"), alm.Stages["soil"].To)
}

func TestParseJSON(t *testing.T) {
	doc := `{"values":[79,14],"stages":[{"from":"seed","to":"location","rules":[[1,0,100]]}]}`
	alm, err := New(nil).Parse(context.Background(), "a.json", strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []contract.Interval{{Start: 79, End: 79}, {Start: 14, End: 14}}, alm.Seeds)
	assert.Equal(t, []contract.Rule{{Start: 0, End: 99, Shift: 1}}, alm.Stages["seed"].Rules)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		opts *Options
		want error
	}{
		{"empty", "", nil, contract.ErrParse},
		{"unknown field", "seeds: [[1,2]]\nextra: 1\n", nil, contract.ErrParse},
		{"not yaml", "seeds: [[1,2]\n", nil, contract.ErrParse},
		{"no seeds", "stages: []\n", nil, contract.ErrNoSeeds},
		{"both seed forms", "seeds: [[1,2]]\nvalues: [3]\n", nil, contract.ErrParse},
		{"seed pair arity", "seeds: [[1,2,3]]\n", nil, contract.ErrParse},
		{"seed zero length", "seeds: [[1,0]]\n", nil, contract.ErrInvalidInterval},
		{"rule arity", "values: [1]\nstages: [{from: a, to: b, rules: [[1,2]]}]\n", nil, contract.ErrParse},
		{"rule zero length", "values: [1]\nstages: [{from: a, to: b, rules: [[1,2,0]]}]\n", nil, contract.ErrMalformedRule},
		{"missing to", "values: [1]\nstages: [{from: a, rules: [[1,2,3]]}]\n", nil, contract.ErrParse},
		{"duplicate from", "values: [1]\nstages: [{from: a, to: b, rules: [[1,2,3]]}, {from: a, to: c, rules: [[1,2,3]]}]\n", nil, contract.ErrParse},
		{"too large", yamlDoc, &Options{MaxBytes: 10}, contract.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts).Parse(context.Background(), "f.yaml", strings.NewReader(tt.in))
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "f.yaml")
		})
	}
}

func TestParseCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Parse(ctx, "f", strings.NewReader(yamlDoc))
	require.ErrorIs(t, err, context.Canceled)
}
