package protocol

import (
	"github.com/pkg/errors"

	"github.com/nickolajgrishuk/relaygram/pkg/compress"
	"github.com/nickolajgrishuk/relaygram/pkg/fragment"
	"github.com/nickolajgrishuk/relaygram/pkg/wire"
)

// frameKind tags what follows the 12-byte reliability header inside a
// frame's plaintext, once it has been stripped of compression and
// encryption. The fixed header has no spare bits for this (spec.md
// §4.5.1 fixes it at seq|ack|ack_bits only), so relaygram carries it as a
// one-byte prefix to the application payload instead — the same job the
// teacher's PacketHeader.Flags byte does with FlagFragment/FlagCompressed,
// just moved below the header since ours has no room left.
type frameKind byte

const (
	kindControl  frameKind = 0
	kindWhole    frameKind = 1
	kindFragment frameKind = 2
)

// frameOverheadMargin is a conservative allowance for zlib's worst-case
// expansion of small, already-dense payloads (header bytes, fragment
// sub-headers), so frameBudget never has to actually compress to find out
// it guessed too high.
const frameOverheadMargin = 64

// frameBudget returns the largest application-payload length that should
// fit in one frame at the configured MTU, after the wire header, kind byte,
// AEAD tag and nonce counter, and compression slack are all accounted for.
func (p *NetworkProtocol) frameBudget() int {
	budget := int(p.mtu) - wire.HeaderSize - 1 - p.crypt.Overhead() - frameOverheadMargin
	if budget < 64 {
		budget = 64
	}
	return budget
}

// buildFrame assembles header || kind || body, compresses, and seals it.
func (p *NetworkProtocol) buildFrame(kind frameKind, body []byte, hdr wire.Header) ([]byte, error) {
	plain := make([]byte, 0, wire.HeaderSize+1+len(body))
	plain = append(plain, hdr.Encode()...)
	plain = append(plain, byte(kind))
	plain = append(plain, body...)

	compressed, err := compress.Compress(plain)
	if err != nil {
		return nil, errors.Wrap(err, "protocol: compress frame")
	}
	return p.crypt.Seal(compressed), nil
}

// openFrame reverses buildFrame: authenticate, decompress, split the
// header from the tagged body. A non-nil error here always means "drop
// this datagram silently", never a fatal condition.
func (p *NetworkProtocol) openFrame(sealed []byte) (wire.Header, frameKind, []byte, error) {
	compressed, err := p.crypt.Open(sealed)
	if err != nil {
		return wire.Header{}, 0, nil, err
	}

	plain, err := compress.Decompress(compressed)
	if err != nil {
		return wire.Header{}, 0, nil, err
	}

	hdr, err := wire.DecodeHeader(plain)
	if err != nil {
		return wire.Header{}, 0, nil, err
	}
	rest := plain[wire.HeaderSize:]
	if len(rest) < 1 {
		return wire.Header{}, 0, nil, errors.New("protocol: frame missing kind byte")
	}
	return hdr, frameKind(rest[0]), rest[1:], nil
}

// fragmentBudget is the largest original-data slice that fits in one
// fragment once its 8-byte sub-header is accounted for.
func (p *NetworkProtocol) fragmentBudget() int {
	b := p.frameBudget() - fragment.HeaderSize
	if b < 1 {
		b = 1
	}
	return b
}
