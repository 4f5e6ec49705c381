package remap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"remap/pkg/contract"
)

// stage 以 (dst, src, len) 三元组构造 Stage。
func stage(t testing.TB, from, to contract.Category, raws ...[3]int64) contract.Stage {
	t.Helper()
	st := contract.Stage{From: from, To: to}
	for _, r := range raws {
		rule, err := contract.RawRule{Dst: r[0], Src: r[1], Len: r[2]}.Rule()
		require.NoError(t, err)
		st.Rules = append(st.Rules, rule)
	}
	return st
}

func stageMap(stages ...contract.Stage) map[contract.Category]contract.Stage {
	m := make(map[contract.Category]contract.Stage, len(stages))
	for _, s := range stages {
		m[s.From] = s
	}
	return m
}

// exampleStages: 谜题样例的 7 个 Stage（seed → ... → location）。
func exampleStages(t testing.TB) map[contract.Category]contract.Stage {
	return stageMap(
		stage(t, "seed", "soil", [3]int64{50, 98, 2}, [3]int64{52, 50, 48}),
		stage(t, "soil", "fertilizer", [3]int64{0, 15, 37}, [3]int64{37, 52, 2}, [3]int64{39, 0, 15}),
		stage(t, "fertilizer", "water", [3]int64{49, 53, 8}, [3]int64{0, 11, 42}, [3]int64{42, 0, 7}, [3]int64{57, 7, 4}),
		stage(t, "water", "light", [3]int64{88, 18, 7}, [3]int64{18, 25, 70}),
		stage(t, "light", "temperature", [3]int64{45, 77, 23}, [3]int64{81, 45, 19}, [3]int64{68, 64, 13}),
		stage(t, "temperature", "humidity", [3]int64{0, 69, 1}, [3]int64{1, 0, 69}),
		stage(t, "humidity", "location", [3]int64{60, 56, 37}, [3]int64{56, 93, 4}),
	)
}

func exampleChain(t testing.TB) *Chain {
	c, err := BuildChain(exampleStages(t), "seed", "location", DefaultDomain())
	require.NoError(t, err)
	return c
}

func iv(start, end int64) contract.Interval { return contract.Interval{Start: start, End: end} }
