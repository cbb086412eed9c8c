package bitio

import (
	"bytes"
	"io"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBitsMSBFirst(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bw := NewWriter(&buf)
	require.NoError(t, bw.WriteBits(4, 0b1010))
	require.NoError(t, bw.WriteBits(4, 0b0101))
	require.NoError(t, bw.Flush())
	assert.Equal(t, []byte{0b10100101}, buf.Bytes())
}

func TestFlushPadsResidualBits(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bw := NewWriter(&buf)
	require.NoError(t, bw.WriteBits(3, 0b101))
	require.NoError(t, bw.Flush())
	assert.Equal(t, []byte{0b10100000}, buf.Bytes())
}

func TestWriteUint64IsBigEndian(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bw := NewWriter(&buf)
	require.NoError(t, bw.WriteUint64(math.Float64bits(-1000.0)))
	require.NoError(t, bw.Flush())
	assert.Equal(t, []byte{0xc0, 0x8f, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00}, buf.Bytes())
}

func TestWriteBitsRejectsBadArguments(t *testing.T) {
	t.Parallel()

	bw := NewWriter(&bytes.Buffer{})
	assert.Error(t, bw.WriteBits(0, 0))
	assert.Error(t, bw.WriteBits(65, 0))
	assert.Error(t, bw.WriteBits(3, 8))
}

func TestRoundTripRandomBitFields(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	type field struct {
		n uint
		v uint64
	}
	fields := make([]field, 1000)
	var buf bytes.Buffer
	bw := NewWriter(&buf)
	for i := range fields {
		n := uint(rng.Intn(64)) + 1
		v := rng.Uint64()
		if n < 64 {
			v &= 1<<n - 1
		}
		fields[i] = field{n, v}
		require.NoError(t, bw.WriteBits(n, v))
	}
	require.NoError(t, bw.Flush())

	br := NewReader(&buf)
	for i, f := range fields {
		got, err := br.ReadBits(f.n)
		require.NoError(t, err)
		require.Equal(t, f.v, got, "field %d width %d", i, f.n)
	}
}

func TestUnalignedReadsAcrossByteBoundaries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bw := NewWriter(&buf)
	require.NoError(t, bw.WriteBits(3, 0b101))
	require.NoError(t, bw.WriteBits(13, 0x1abc&0x1fff))
	require.NoError(t, bw.WriteBits(64, 0xdeadbeefcafebabe))
	require.NoError(t, bw.Flush())

	br := NewReader(&buf)
	v, err := br.ReadBits(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b101), v)
	v, err = br.ReadBits(13)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1abc&0x1fff), v)
	v, err = br.ReadBits(64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeefcafebabe), v)
}

func TestReadAtEOF(t *testing.T) {
	t.Parallel()

	br := NewReader(bytes.NewReader(nil))
	_, err := br.ReadBits(1)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	br = NewReader(bytes.NewReader([]byte{0xff}))
	_, err = br.ReadBits(16)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestUnsignedVarLong(t *testing.T) {
	t.Parallel()

	values := []uint64{0, 1, 127, 128, 300, 16383, 16384, 1 << 32, math.MaxUint64}
	var buf bytes.Buffer
	bw := NewWriter(&buf)
	for _, v := range values {
		require.NoError(t, bw.WriteUnsignedVarLong(v))
	}
	require.NoError(t, bw.Flush())

	// Known encodings.
	var one bytes.Buffer
	bw2 := NewWriter(&one)
	require.NoError(t, bw2.WriteUnsignedVarLong(300))
	require.NoError(t, bw2.Flush())
	assert.Equal(t, []byte{0xac, 0x02}, one.Bytes())

	br := NewReader(&buf)
	for _, v := range values {
		got, err := br.ReadUnsignedVarLong()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestSignedVarInt(t *testing.T) {
	t.Parallel()

	values := []int32{0, -1, 1, -2, 2, 63, -64, 64, math.MaxInt32, math.MinInt32}
	var buf bytes.Buffer
	bw := NewWriter(&buf)
	for _, v := range values {
		require.NoError(t, bw.WriteSignedVarInt(v))
	}
	require.NoError(t, bw.Flush())

	br := NewReader(&buf)
	for _, v := range values {
		got, err := br.ReadSignedVarInt()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestSignedVarIntZigZagEncoding(t *testing.T) {
	t.Parallel()

	// Small magnitudes stay single-byte: 0 -> 0, -1 -> 1, 1 -> 2, ...
	for _, tc := range []struct {
		in  int32
		out byte
	}{{0, 0x00}, {-1, 0x01}, {1, 0x02}, {-2, 0x03}, {2, 0x04}} {
		var buf bytes.Buffer
		bw := NewWriter(&buf)
		require.NoError(t, bw.WriteSignedVarInt(tc.in))
		require.NoError(t, bw.Flush())
		assert.Equal(t, []byte{tc.out}, buf.Bytes())
	}
}
