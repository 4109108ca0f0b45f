package compress

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("relaygram frame payload "), 50)

	compressed, err := Compress(data)
	require.NoError(t, err)

	out, err := Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestDecompressRejectsBomb(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(bytes.Repeat([]byte{0}, MaxDecompressedSize+1024))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = Decompress(buf.Bytes())
	require.Error(t, err)
}

func TestDecompressRejectsEmptyInput(t *testing.T) {
	_, err := Decompress(nil)
	require.Error(t, err)
}

func TestCompressDoesNotRejectIneffectiveCompression(t *testing.T) {
	// Unlike the teacher's optimize.Compress, small/incompressible frames
	// (e.g. a bare control byte) must still round-trip instead of erroring.
	data := []byte{0x01}
	compressed, err := Compress(data)
	require.NoError(t, err)

	out, err := Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, data, out)
}
