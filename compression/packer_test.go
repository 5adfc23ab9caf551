package compression

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackerUnpackerRoundTrip(t *testing.T) {
	p := NewPacker()
	p.AddByte(0x42)
	p.AddUint16(0xbeef)
	p.AddUint32(0xdeadbeef)
	p.AddUint64(0x0123456789abcdef)
	p.AddInt(-12345)
	p.AddString("protonet")
	p.AddBytes([]byte{1, 2, 3})

	u := NewUnpacker(p.Bytes())

	b, err := u.NextByte()
	require.NoError(t, err)
	require.Equal(t, byte(0x42), b)

	u16, err := u.NextUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(0xbeef), u16)

	u32, err := u.NextUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), u32)

	u64, err := u.NextUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0123456789abcdef), u64)

	i, err := u.NextInt()
	require.NoError(t, err)
	require.Equal(t, -12345, i)

	s, err := u.NextString()
	require.NoError(t, err)
	require.Equal(t, "protonet", s)

	rest, err := u.NextBytes(3)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, rest)

	require.Equal(t, 0, u.Size())
}

func TestPackerLittleEndian(t *testing.T) {
	p := NewPacker()
	p.AddUint16(0x0201)
	p.AddUint32(0x06050403)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, p.Bytes())
}

func TestUnpackerTruncated(t *testing.T) {
	u := NewUnpacker([]byte{1})

	_, err := u.NextUint16()
	require.ErrorIs(t, err, ErrNoDataToUnpack)

	_, err = u.NextUint32()
	require.ErrorIs(t, err, ErrNoDataToUnpack)

	_, err = u.NextUint64()
	require.ErrorIs(t, err, ErrNoDataToUnpack)

	_, err = u.NextBytes(2)
	require.ErrorIs(t, err, ErrNoDataToUnpack)

	_, err = u.NextString()
	require.ErrorIs(t, err, ErrNotAString)
}

func TestPackerReset(t *testing.T) {
	p := NewPacker()
	p.AddUint32(1)
	require.Equal(t, 4, p.Size())

	p.Reset()
	require.Equal(t, 0, p.Size())

	p.Reset([]byte{1, 2, 3})
	require.Equal(t, 3, p.Size())
}
