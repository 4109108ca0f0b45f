package fragment

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSplitAndReassemble(t *testing.T) {
	data := bytes.Repeat([]byte("relaygram"), 200) // comfortably larger than one fragment
	frags, err := Split(data, 64, 42)
	require.NoError(t, err)
	require.Greater(t, len(frags), 1)

	r := NewReassembler()
	now := time.Now()
	var out []byte
	var done bool
	for i, f := range frags {
		hdr, err := DecodeHeader(f)
		require.NoError(t, err)
		require.Equal(t, uint32(42), hdr.GroupID)
		require.Equal(t, uint16(i), hdr.Index)

		out, done, err = r.Add(hdr, f[HeaderSize:], now)
		require.NoError(t, err)
	}
	require.True(t, done)
	require.Equal(t, data, out)
}

func TestReassemblerIgnoresDuplicateFragment(t *testing.T) {
	frags, err := Split([]byte("hello world"), 4, 1)
	require.NoError(t, err)

	r := NewReassembler()
	now := time.Now()
	hdr, err := DecodeHeader(frags[0])
	require.NoError(t, err)

	_, done, err := r.Add(hdr, frags[0][HeaderSize:], now)
	require.NoError(t, err)
	require.False(t, done)

	// Re-adding the same fragment must not double-count toward completion.
	_, done, err = r.Add(hdr, frags[0][HeaderSize:], now)
	require.NoError(t, err)
	require.False(t, done)
}

func TestSplitRejectsTooManyFragments(t *testing.T) {
	data := make([]byte, MaxFragments*10+1)
	_, err := Split(data, 1, 1)
	require.Error(t, err)
}

func TestExpireOlderThanDropsStaleGroups(t *testing.T) {
	frags, err := Split([]byte("partial"), 3, 9)
	require.NoError(t, err)
	require.Greater(t, len(frags), 1)

	r := NewReassembler()
	hdr, err := DecodeHeader(frags[0])
	require.NoError(t, err)
	old := time.Now().Add(-2 * Timeout)
	_, done, err := r.Add(hdr, frags[0][HeaderSize:], old)
	require.NoError(t, err)
	require.False(t, done)

	dropped := r.ExpireOlderThan(time.Now())
	require.Equal(t, 1, dropped)
}

func TestNeedsSplit(t *testing.T) {
	require.False(t, NeedsSplit(10, 100))
	require.True(t, NeedsSplit(100, 50))
}
