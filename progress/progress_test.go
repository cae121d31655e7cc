package progress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadCounter(t *testing.T) {
	counter := NewReadCounter(strings.NewReader("0123456789"))
	buf := make([]byte, 4)

	n, err := counter.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.EqualValues(t, 4, counter.Count())

	for err == nil {
		_, err = counter.Read(buf)
	}
	require.EqualValues(t, 10, counter.Count())
}

func TestCalcProgress(t *testing.T) {
	tests := []struct {
		count, size uint64
		expected    float64
	}{
		{0, 100, 0},
		{50, 100, 0.5},
		{99, 100, 0.99},
		{100, 100, 0.99},
		{150, 100, 0.99},
		{333, 1000, 0.33},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, calcProgress(tt.count, tt.size), "count=%d size=%d", tt.count, tt.size)
	}
}

func TestProgressBucket(t *testing.T) {
	require.Equal(t, 0, progressBucket(0))
	require.Equal(t, 0, progressBucket(0.1))
	require.Equal(t, 1, progressBucket(0.25))
	require.Equal(t, 2, progressBucket(0.6))
	require.Equal(t, 3, progressBucket(0.75))
	require.Equal(t, 4, progressBucket(1))
}
