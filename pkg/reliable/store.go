// Package reliable implements the unacked-packet table keyed by sequence
// number and the ack-bit bookkeeping that lets a single frame acknowledge
// up to 33 peer sequences at once.
package reliable

import (
	"time"

	"github.com/nickolajgrishuk/relaygram/pkg/congestion"
	"github.com/nickolajgrishuk/relaygram/pkg/wire"
)

// Store tracks reliable outbound frames from send until ack or
// abandonment, and the peer's received-sequence window used to synthesize
// this side's own ack_bits.
//
// Grounded on the teacher's transport.ReliableContext (sendWindow /
// ProcessACK / updateRTT / updateCongestionWindow), generalized to the
// spec's map-keyed table instead of a fixed-size ring, and fixed per
// spec.md §9: generate_ack_bits reads RecvWindow (peer-received sequences),
// never the outbound table.
type Store struct {
	packets map[uint32]*wire.Packet
	Recv    *RecvWindow
}

// NewStore returns an empty reliable store.
func NewStore() *Store {
	return &Store{
		packets: make(map[uint32]*wire.Packet),
		Recv:    NewRecvWindow(),
	}
}

// Record inserts seq -> packet when a reliable frame is (re)sent.
func (s *Store) Record(p *wire.Packet) {
	s.packets[p.Sequence] = p
}

// Get returns the tracked packet for seq, if any.
func (s *Store) Get(seq uint32) (*wire.Packet, bool) {
	p, ok := s.packets[seq]
	return p, ok
}

// Delete removes seq from the table unconditionally (used when a frame is
// abandoned after exceeding MaxAttempts).
func (s *Store) Delete(seq uint32) {
	delete(s.packets, seq)
}

// Len reports how many reliable frames are currently unacked.
func (s *Store) Len() int { return len(s.packets) }

// Pending returns every currently-unacked packet, for the retransmit scan.
// Order is unspecified; callers that need determinism should sort by
// Sequence.
func (s *Store) Pending() []*wire.Packet {
	out := make([]*wire.Packet, 0, len(s.packets))
	for _, p := range s.packets {
		out = append(out, p)
	}
	return out
}

// HandleAck removes ack and every sequence ack-(i+1) for a set bit i, under
// wrapping subtraction. For each removed packet that was never
// retransmitted (Attempts == 0, per Karn's algorithm) it feeds an RTT
// sample to cong and calls cong.OnAck() once per newly-acked packet.
func (s *Store) HandleAck(ack, ackBits uint32, cong *congestion.Control, now time.Time) {
	s.ackOne(ack, cong, now)
	for i := uint32(1); i <= 32; i++ {
		if ackBits&(1<<(i-1)) == 0 {
			continue
		}
		s.ackOne(ack-i, cong, now)
	}
}

func (s *Store) ackOne(seq uint32, cong *congestion.Control, now time.Time) {
	p, ok := s.packets[seq]
	if !ok {
		return
	}
	if p.Attempts == 0 {
		cong.UpdateRTT(now.Sub(p.Timestamp))
	}
	cong.OnAck()
	delete(s.packets, seq)
}
