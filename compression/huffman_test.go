package compression

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHuffmanRoundTrip(t *testing.T) {
	h := NewHuffman(DefaultFrequencyTable)

	tests := [][]byte{
		nil,
		{0},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 0},
		bytes.Repeat([]byte{0}, 512),
		[]byte("the quick brown fox jumps over the lazy dog"),
	}

	for _, input := range tests {
		compressed := make([]byte, 2*len(input)+16)
		n, err := h.Compress(input, compressed)
		require.NoError(t, err)

		decompressed := make([]byte, len(input))
		m, err := h.Decompress(compressed[:n], decompressed)
		require.NoError(t, err)
		require.Equal(t, len(input), m)
		require.True(t, bytes.Equal(input, decompressed[:m]))
	}
}

func TestHuffmanRoundTripRandom(t *testing.T) {
	h := NewHuffman(DefaultFrequencyTable)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 32; i++ {
		input := make([]byte, rng.Intn(1024))
		for j := range input {
			input[j] = byte(rng.Intn(256))
		}

		compressed := make([]byte, 4*len(input)+16)
		n, err := h.Compress(input, compressed)
		require.NoError(t, err)

		decompressed := make([]byte, len(input))
		m, err := h.Decompress(compressed[:n], decompressed)
		require.NoError(t, err)
		require.Equal(t, input, decompressed[:m])
	}
}

func TestHuffmanZerosCompress(t *testing.T) {
	h := NewHuffman(DefaultFrequencyTable)

	input := bytes.Repeat([]byte{0}, 1024)
	compressed := make([]byte, 2*len(input))
	n, err := h.Compress(input, compressed)
	require.NoError(t, err)
	require.Less(t, n, len(input), "zero runs must shrink")
}

func TestHuffmanCorruptData(t *testing.T) {
	h := NewHuffman(DefaultFrequencyTable)

	// stream without an EOF symbol
	_, err := h.Decompress(nil, make([]byte, 16))
	require.ErrorIs(t, err, ErrCorruptCompressedData)
}

func TestHuffmanBufferTooSmall(t *testing.T) {
	h := NewHuffman(DefaultFrequencyTable)

	input := []byte("some payload that will not fit")
	_, err := h.Compress(input, make([]byte, 1))
	require.ErrorIs(t, err, ErrCompressionBufferTooSmall)

	compressed := make([]byte, 4*len(input)+16)
	n, err := h.Compress(input, compressed)
	require.NoError(t, err)

	_, err = h.Decompress(compressed[:n], make([]byte, 1))
	require.ErrorIs(t, err, ErrCompressionBufferTooSmall)
}
