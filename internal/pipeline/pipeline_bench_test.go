package pipeline

import (
	"context"
	"fmt"
	"testing"

	"remap/pkg/contract"
)

// BenchmarkRunFiles 衡量多文件并行求解的编排开销。
func BenchmarkRunFiles(b *testing.B) {
	files := make([]contract.FileID, 64)
	alms := make(map[string]contract.Almanac, len(files))
	for i := range files {
		files[i] = contract.FileID(fmt.Sprintf("f%02d.txt", i))
		alms[string(files[i])] = twoStage(
			contract.Interval{Start: int64(i), End: int64(i + 100)},
			contract.Interval{Start: 50, End: 99},
		)
	}
	comp := Components{Reader: stubReader{files: files}, Parser: stubParser{alms: alms}, Writer: &stubWriter{}}
	set := baseSettings()
	set.Concurrency = 8
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Run(context.Background(), comp, set, nil); err != nil {
			b.Fatal(err)
		}
	}
}
