// Package buffer implements the bounded FIFO queues that sit between the
// wire and the protocol engine: one for frames pulled off the socket, one
// for frames waiting to go out.
package buffer

import "github.com/nickolajgrishuk/relaygram/pkg/wire"

// DefaultMaxSize is the shared capacity of the incoming and outgoing
// queues. A full queue rejects new pushes silently; it never evicts.
const DefaultMaxSize = 1024

// PacketBuffer holds the incoming and outgoing queues for one connection.
// Single-owner, no internal locking: the engine's update() tick is the only
// caller and there are no suspension points within it.
type PacketBuffer struct {
	incoming []wire.Packet
	outgoing []wire.Packet
	maxSize  int
}

// New creates a PacketBuffer bounded at maxSize entries per queue.
func New(maxSize int) *PacketBuffer {
	return &PacketBuffer{maxSize: maxSize}
}

// PushIncoming enqueues p for delivery to the application. Returns false,
// without modifying the queue, if it is already at capacity.
func (b *PacketBuffer) PushIncoming(p wire.Packet) bool {
	if len(b.incoming) >= b.maxSize {
		return false
	}
	b.incoming = append(b.incoming, p)
	return true
}

// PushOutgoing enqueues p to be sent on the next send-drain step. Returns
// false, without modifying the queue, if it is already at capacity.
func (b *PacketBuffer) PushOutgoing(p wire.Packet) bool {
	if len(b.outgoing) >= b.maxSize {
		return false
	}
	b.outgoing = append(b.outgoing, p)
	return true
}

// PopIncoming removes and returns the oldest queued inbound packet.
func (b *PacketBuffer) PopIncoming() (wire.Packet, bool) {
	return pop(&b.incoming)
}

// PopOutgoing removes and returns the oldest queued outbound packet.
func (b *PacketBuffer) PopOutgoing() (wire.Packet, bool) {
	return pop(&b.outgoing)
}

// PeekIncoming returns the oldest queued inbound packet without removing it.
func (b *PacketBuffer) PeekIncoming() (wire.Packet, bool) {
	return peek(b.incoming)
}

// PeekOutgoing returns the oldest queued outbound packet without removing it.
func (b *PacketBuffer) PeekOutgoing() (wire.Packet, bool) {
	return peek(b.outgoing)
}

// LenIncoming reports the number of frames currently queued for delivery.
func (b *PacketBuffer) LenIncoming() int { return len(b.incoming) }

// LenOutgoing reports the number of frames currently queued to send.
func (b *PacketBuffer) LenOutgoing() int { return len(b.outgoing) }

func pop(q *[]wire.Packet) (wire.Packet, bool) {
	if len(*q) == 0 {
		return wire.Packet{}, false
	}
	p := (*q)[0]
	*q = (*q)[1:]
	if len(*q) == 0 {
		*q = nil // drop the backing array instead of holding it open indefinitely
	}
	return p, true
}

func peek(q []wire.Packet) (wire.Packet, bool) {
	if len(q) == 0 {
		return wire.Packet{}, false
	}
	return q[0], true
}
