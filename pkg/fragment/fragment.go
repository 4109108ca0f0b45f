// Package fragment splits an application payload too large for one frame
// into several, and reassembles them on the receiving side.
//
// Adapted from the teacher's core.FragmentContext/FragmentPacket, which
// fragmented at the OverProto wire-header level (FragID/TotalFrags fields
// in a 24-byte header). relaygram's wire header is fixed at 12 bytes
// (seq|ack|ack_bits, per spec.md §4.5.1) with no room for fragmentation
// metadata, so that metadata instead travels as an 8-byte sub-header
// prefixed to the plaintext payload before it is compressed and encrypted
// like any other reliable frame — each fragment is still its own tracked,
// retransmitted, acked frame.
package fragment

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// HeaderSize is the size of the fragmentation sub-header prefixed to each
// fragment's payload.
const HeaderSize = 8

// MaxFragments bounds how many pieces a single payload may be split into.
const MaxFragments = 256

// Timeout is how long an incomplete reassembly group is kept before being
// discarded.
const Timeout = 30 * time.Second

// Header identifies one fragment's place within its reassembly group.
type Header struct {
	GroupID uint32
	Index   uint16
	Total   uint16
}

// Encode serializes h to its 8-byte wire form.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.GroupID)
	binary.BigEndian.PutUint16(buf[4:6], h.Index)
	binary.BigEndian.PutUint16(buf[6:8], h.Total)
	return buf
}

// DecodeHeader parses the first 8 bytes of data as a Header.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errors.New("fragment: buffer shorter than fragment header")
	}
	return Header{
		GroupID: binary.BigEndian.Uint32(data[0:4]),
		Index:   binary.BigEndian.Uint16(data[4:6]),
		Total:   binary.BigEndian.Uint16(data[6:8]),
	}, nil
}

// Split divides data into fragments of at most maxPayload original bytes
// each, every fragment prefixed with its Header (so maxPayload should
// already exclude HeaderSize from the frame's real budget). groupID must
// be unique for the lifetime of the reassembly; the protocol engine uses
// the sequence number assigned to the group's first fragment.
func Split(data []byte, maxPayload int, groupID uint32) ([][]byte, error) {
	if maxPayload <= 0 {
		return nil, errors.New("fragment: maxPayload must be positive")
	}

	total := (len(data) + maxPayload - 1) / maxPayload
	if total == 0 {
		total = 1
	}
	if total > MaxFragments {
		return nil, errors.Errorf("fragment: payload needs %d fragments, max is %d", total, MaxFragments)
	}

	out := make([][]byte, 0, total)
	for i := 0; i < total; i++ {
		start := i * maxPayload
		end := start + maxPayload
		if end > len(data) {
			end = len(data)
		}
		hdr := Header{GroupID: groupID, Index: uint16(i), Total: uint16(total)}
		frag := make([]byte, 0, HeaderSize+end-start)
		frag = append(frag, hdr.Encode()...)
		frag = append(frag, data[start:end]...)
		out = append(out, frag)
	}
	return out, nil
}

// NeedsSplit reports whether a payload of the given length requires
// fragmentation to fit within maxFramePayload once the fragment sub-header
// is accounted for.
func NeedsSplit(payloadLen, maxFramePayload int) bool {
	return payloadLen+HeaderSize > maxFramePayload
}
