// Package wire defines the on-the-wire frame header and the in-memory
// Packet record tracked by the reliable store.
package wire

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// HeaderSize is the fixed size, in bytes, of the reliability header that is
// compressed and encrypted together with the application payload.
const HeaderSize = 12

// MaxAttempts bounds per-frame retransmission; a frame abandoned at this
// count triggers the Disconnecting transition.
const MaxAttempts = 5

// Header is the 12-byte big-endian seq|ack|ack_bits record carried inside
// the AEAD-sealed payload, per spec: the wire format never exposes these
// fields in cleartext.
type Header struct {
	Seq     uint32
	Ack     uint32
	AckBits uint32
}

// Encode serializes h into its 12-byte big-endian wire form.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Seq)
	binary.BigEndian.PutUint32(buf[4:8], h.Ack)
	binary.BigEndian.PutUint32(buf[8:12], h.AckBits)
	return buf
}

// DecodeHeader parses the first 12 bytes of data as a Header.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errors.New("wire: buffer shorter than header")
	}
	return Header{
		Seq:     binary.BigEndian.Uint32(data[0:4]),
		Ack:     binary.BigEndian.Uint32(data[4:8]),
		AckBits: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// Packet is the immutable-after-construction record tracked by the
// reliable store between send and ack (or abandonment).
type Packet struct {
	Sequence  uint32
	Ack       uint32
	AckBits   uint32
	Data      []byte // opaque payload, already compressed+encrypted
	Timestamp time.Time
	Attempts  uint8
}

// SeqDistance returns a-b interpreted as a signed 32-bit modulo distance,
// the comparison idiom used throughout for wrapping sequence arithmetic.
func SeqDistance(a, b uint32) int32 {
	return int32(a - b)
}

// SeqLess reports whether a precedes b under modulo-2^32 wrap ordering.
func SeqLess(a, b uint32) bool {
	return SeqDistance(a, b) < 0
}
