package compression

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []int{
		0, 1, -1, 63, 64, -64, -65,
		127, 128, 255, 256, 1023, 1024,
		(1 << 20) - 1, 1 << 20, -(1 << 20),
		(1 << 30) - 1, -(1 << 30),
	}

	for _, want := range values {
		buf := AppendVarint(nil, want)
		require.LessOrEqual(t, len(buf), maxBytesInVarint)

		got, n := Varint(buf)
		require.Equal(t, len(buf), n, "value %d", want)
		require.Equal(t, want, got)
	}
}

func TestVarintTruncated(t *testing.T) {
	buf := AppendVarint(nil, 1<<20)
	require.Greater(t, len(buf), 1)

	_, n := Varint(buf[:len(buf)-1])
	require.Equal(t, 0, n)

	_, n = Varint(nil)
	require.Equal(t, 0, n)
}

func TestVarintOverflow(t *testing.T) {
	data := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80}
	_, n := Varint(data)
	require.Negative(t, n)
}
