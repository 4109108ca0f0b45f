// Package compress wraps zlib compression of frame payloads.
//
// It uses klauspost/compress's zlib implementation rather than the
// standard library's: same wire format, faster in practice, and already the
// pack's choice for this exact concern (nishisan-dev/n-backup reaches for
// klauspost/compress and klauspost/pgzip for backup-stream compression).
package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// Level is the zlib compression level used for every frame.
const Level = zlib.DefaultCompression

// MaxDecompressedSize caps Decompress's output to guard against
// decompression bombs: a small compressed buffer expanding without bound.
const MaxDecompressedSize = 10 * 1024 * 1024

// Compress deflates data at Level. Unlike the teacher's version this never
// rejects an ineffective compression: the caller (protocol engine) is free
// to compare sizes and skip compressing tiny control frames, but a
// reliability header plus a few bytes of payload should still round-trip
// correctly even when it grows slightly.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, Level)
	if err != nil {
		return nil, errors.Wrap(err, "compress: new writer")
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, errors.Wrap(err, "compress: write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "compress: close")
	}
	return buf.Bytes(), nil
}

// Decompress inflates data, refusing to produce more than
// MaxDecompressedSize bytes of output.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("compress: empty input")
	}

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "compress: new reader")
	}
	defer r.Close()

	limited := io.LimitReader(r, MaxDecompressedSize+1)
	var out bytes.Buffer
	if _, err := io.Copy(&out, limited); err != nil {
		return nil, errors.Wrap(err, "compress: inflate")
	}
	if out.Len() > MaxDecompressedSize {
		return nil, errors.New("compress: decompressed data too large")
	}
	return out.Bytes(), nil
}
