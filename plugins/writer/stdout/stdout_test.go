package stdout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePassThrough(t *testing.T) {
	var out bytes.Buffer
	w := NewTo(&out, nil)
	require.NoError(t, w.Write(context.Background(), "a.json", strings.NewReader("{\"min\":46}\n")))
	assert.Equal(t, "{\"min\":46}\n", out.String())
}

func TestWriteHeader(t *testing.T) {
	var out bytes.Buffer
	w := NewTo(&out, &Options{Header: true})
	require.NoError(t, w.Write(context.Background(), "dir/a.json", strings.NewReader("x\n")))
	assert.Equal(t, "# dir/a.json\nx\n", out.String())
}

func TestWriteCanceled(t *testing.T) {
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTo(&out, nil).Write(ctx, "a", strings.NewReader("x"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, out.Len())
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriteSinkError(t *testing.T) {
	err := NewTo(failWriter{}, nil).Write(context.Background(), "a", strings.NewReader("x"))
	require.EqualError(t, err, "closed")
}

func TestWriteNoInterleave(t *testing.T) {
	var out bytes.Buffer
	w := NewTo(&out, &Options{Header: true})
	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := strings.Repeat(fmt.Sprintf("%02d", i), 512) + "\n"
			assert.NoError(t, w.Write(context.Background(), "f", strings.NewReader(body)))
		}(i)
	}
	wg.Wait()
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2*n)
	for i := 0; i < len(lines); i += 2 {
		assert.Equal(t, "# f", lines[i])
		body := lines[i+1]
		assert.Equal(t, strings.Repeat(body[:2], 512), body)
	}
}
