package remap

import (
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remap/pkg/contract"
)

func sources(ps []Piece) []contract.Interval {
	var out []contract.Interval
	for _, p := range ps {
		out = append(out, p.Source)
	}
	return out
}

func targets(ps []Piece) []contract.Interval {
	var out []contract.Interval
	for _, p := range ps {
		out = append(out, p.Target)
	}
	return out
}

func TestSplitEndpointCases(t *testing.T) {
	in := iv(10, 20)
	tests := []struct {
		name string
		rule contract.Rule
		want []contract.Interval
	}{
		{"rule contains interval", contract.Rule{Start: 5, End: 25}, []contract.Interval{iv(10, 20)}},
		{"interval contains rule", contract.Rule{Start: 12, End: 18}, []contract.Interval{iv(12, 18)}},
		{"rule covers left", contract.Rule{Start: 5, End: 15}, []contract.Interval{iv(10, 15)}},
		{"rule covers right", contract.Rule{Start: 15, End: 25}, []contract.Interval{iv(15, 20)}},
		{"exact match", contract.Rule{Start: 10, End: 20}, []contract.Interval{iv(10, 20)}},
		{"single value left edge", contract.Rule{Start: 0, End: 10}, []contract.Interval{iv(10, 10)}},
		{"single value right edge", contract.Rule{Start: 20, End: 30}, []contract.Interval{iv(20, 20)}},
		{"disjoint left", contract.Rule{Start: 0, End: 5}, nil},
		{"disjoint right", contract.Rule{Start: 25, End: 30}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(in, []contract.Rule{tt.rule})
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, sources(got)); diff != "" {
				t.Fatalf("pieces mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// 空隙场景：[0,100] 经单条 [50,51] 规范化后得三片，总长 101。
func TestSplitGapScenario(t *testing.T) {
	cov, err := Normalize([]contract.Rule{{Start: 50, End: 51, Shift: 0}}, DefaultDomain())
	require.NoError(t, err)
	got, err := Split(iv(0, 100), cov.Rules)
	require.NoError(t, err)
	want := []contract.Interval{iv(0, 49), iv(50, 51), iv(52, 100)}
	if diff := cmp.Diff(want, sources(got)); diff != "" {
		t.Fatalf("pieces mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(101), TotalLen(sources(got)))
	assert.True(t, got[0].Pad)
	assert.False(t, got[1].Pad)
	assert.True(t, got[2].Pad)
}

// 重叠边界：[10,20] 对规则 [15,25]+5，左段经填充原样保留，右段整体平移。
func TestSplitOverlapBoundary(t *testing.T) {
	cov, err := Normalize([]contract.Rule{{Start: 15, End: 25, Shift: 5}}, DefaultDomain())
	require.NoError(t, err)
	got, err := Split(iv(10, 20), cov.Rules)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, iv(10, 14), got[0].Source)
	assert.Equal(t, iv(10, 14), got[0].Target)
	assert.Equal(t, iv(15, 20), got[1].Source)
	assert.Equal(t, iv(20, 25), got[1].Target)
	assert.Equal(t, uint64(11), TotalLen(targets(got)))
}

func TestSplitShiftsNegative(t *testing.T) {
	cov, err := Normalize([]contract.Rule{{Start: 98, End: 99, Shift: -48}}, DefaultDomain())
	require.NoError(t, err)
	got, err := Split(iv(97, 99), cov.Rules)
	require.NoError(t, err)
	want := []contract.Interval{iv(97, 97), iv(50, 51)}
	if diff := cmp.Diff(want, targets(got)); diff != "" {
		t.Fatalf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitOverflow(t *testing.T) {
	cov, err := Normalize([]contract.Rule{{Start: 10, End: math.MaxInt64, Shift: 1}}, DefaultDomain())
	require.NoError(t, err)
	_, err = Split(iv(math.MaxInt64-5, math.MaxInt64), cov.Rules)
	require.ErrorIs(t, err, contract.ErrOverflow)
}

func TestSplitInvalidInterval(t *testing.T) {
	_, err := Split(iv(5, 4), []contract.Rule{{Start: 0, End: 10}})
	require.ErrorIs(t, err, contract.ErrInvalidInterval)
}

// 守恒性质：各片源区间按序首尾相接，恰好拼回输入区间。
func TestSplitConservationProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for round := 0; round < 300; round++ {
		n := 1 + rng.IntN(8)
		rules := make([]contract.Rule, 0, n)
		for i := 0; i < n; i++ {
			start := rng.Int64N(500)
			rules = append(rules, contract.Rule{Start: start, End: start + rng.Int64N(80), Shift: rng.Int64N(1000)})
		}
		cov, err := Normalize(rules, DefaultDomain())
		require.NoError(t, err)
		start := rng.Int64N(600)
		in := iv(start, start+rng.Int64N(200))

		got, err := Split(in, cov.Rules)
		require.NoError(t, err)
		src := sources(got)
		require.True(t, sort.SliceIsSorted(src, func(i, j int) bool { return src[i].Start < src[j].Start }))
		require.Equal(t, in.Start, src[0].Start, "round %d", round)
		require.Equal(t, in.End, src[len(src)-1].End, "round %d", round)
		for i := 1; i < len(src); i++ {
			require.Equal(t, src[i-1].End+1, src[i].Start, "round %d piece %d", round, i)
		}
		require.Equal(t, in.Len(), TotalLen(targets(got)), "round %d", round)
		for _, p := range got {
			require.Equal(t, p.Source.Start+p.Shift, p.Target.Start)
			require.Equal(t, p.Source.Len(), p.Target.Len())
		}
	}
}
