// Package protocol wires pkg/wire, pkg/buffer, pkg/crypto, pkg/compress,
// pkg/congestion, pkg/reliable, pkg/transport, pkg/fragment and pkg/metrics
// into NetworkProtocol: a single-threaded, non-blocking, poll-driven
// reliable-over-UDP engine. There are no internal goroutines or callbacks —
// callers drive everything by calling Update on a tick, exactly as
// original_source's NetworkProtocol::update is driven from a 60Hz client
// loop (see original_source's client.rs), generalized from the teacher's
// (overproto-go) callback-based design to this poll contract per spec.md
// §4.5.
package protocol

import (
	"net"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nickolajgrishuk/relaygram/pkg/buffer"
	"github.com/nickolajgrishuk/relaygram/pkg/congestion"
	"github.com/nickolajgrishuk/relaygram/pkg/crypto"
	"github.com/nickolajgrishuk/relaygram/pkg/fragment"
	"github.com/nickolajgrishuk/relaygram/pkg/metrics"
	"github.com/nickolajgrishuk/relaygram/pkg/reliable"
	"github.com/nickolajgrishuk/relaygram/pkg/transport"
	"github.com/nickolajgrishuk/relaygram/pkg/wire"
)

// NetworkProtocol is one end of a point-to-point reliable, encrypted,
// congestion-controlled UDP connection. It is not safe for concurrent use:
// exactly one goroutine should call Connect/SendReliable/Recv/Update.
type NetworkProtocol struct {
	socket *transport.Socket
	crypt  *crypto.Manager
	cong   *congestion.Control
	store  *reliable.Store
	buf    *buffer.PacketBuffer
	reasm  *fragment.Reassembler

	state State
	seq   uint32

	timeout         time.Duration
	disconnectGrace time.Duration
	mtu             uint
	maxAttempts     uint8
	bufSize         int

	log *zap.Logger
	met *metrics.Metrics

	handshakeDeadline time.Time
	disconnectDeadline time.Time

	synSeq    uint32
	hasSynSeq bool
	finSeq    uint32
	hasFinSeq bool
}

// New binds a UDP socket at bindAddr and returns a NetworkProtocol in
// StateIdle, ready for either Connect (client role) or to passively wait
// for an inbound SYN via Update (server role).
func New(bindAddr string, opts ...Option) (*NetworkProtocol, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	sock, err := transport.Bind(bindAddr)
	if err != nil {
		return nil, err
	}

	var cm *crypto.Manager
	if len(cfg.EncryptionKey) > 0 {
		cm, err = crypto.FromKey(cfg.EncryptionKey, cfg.Logger)
	} else {
		cm, err = crypto.New(cfg.Logger)
	}
	if err != nil {
		_ = sock.Close()
		return nil, err
	}

	mtu := cfg.MTU
	if mtu == 0 {
		mtu = sock.MTU()
	}

	return &NetworkProtocol{
		socket:          sock,
		crypt:           cm,
		cong:            congestion.New(),
		store:           reliable.NewStore(),
		buf:             buffer.New(cfg.BufferSize),
		reasm:           fragment.NewReassembler(),
		state:           StateIdle,
		timeout:         cfg.Timeout,
		disconnectGrace: cfg.DisconnectGrace,
		mtu:             mtu,
		maxAttempts:     cfg.MaxAttempts,
		bufSize:         cfg.BufferSize,
		log:             cfg.Logger,
		met:             cfg.Metrics,
	}, nil
}

// State returns the current connection state.
func (p *NetworkProtocol) State() State { return p.state }

// Close releases the underlying socket.
func (p *NetworkProtocol) Close() error {
	return p.socket.Close()
}

// LocalAddr returns the address this instance is bound to.
func (p *NetworkProtocol) LocalAddr() *net.UDPAddr {
	return p.socket.LocalAddr()
}

// Connect associates remoteAddr as the peer and begins the client-side
// handshake: emit SYN, move to StateConnecting.
func (p *NetworkProtocol) Connect(remoteAddr string) error {
	if err := p.socket.Connect(remoteAddr); err != nil {
		return err
	}
	p.state = StateConnecting
	p.handshakeDeadline = time.Now().Add(p.timeout)
	return p.sendControl(wire.ControlSYN)
}

// SendReliable enqueues data for reliable, ordered-by-retransmission
// delivery, fragmenting it first if it would not fit in one frame at the
// configured MTU. Returns ErrNotConnected outside StateConnected and
// ErrBufferFull if the outgoing queue is already saturated.
func (p *NetworkProtocol) SendReliable(data []byte) error {
	if p.state != StateConnected {
		return ErrNotConnected
	}

	budget := p.frameBudget()
	if !fragment.NeedsSplit(len(data), budget) {
		return p.sendWhole(data)
	}
	return p.sendFragmented(data)
}

// Recv pops the oldest fully-assembled application payload waiting for
// delivery, if any.
func (p *NetworkProtocol) Recv() ([]byte, bool) {
	pkt, ok := p.buf.PopIncoming()
	if !ok {
		return nil, false
	}
	return pkt.Data, true
}

// Update runs one engine tick in the fixed order spec.md §4.5.3 requires:
// retransmit scan, receive drain, send drain (window-gated), then the
// state-transition step that reacts to whatever the first three just
// changed.
func (p *NetworkProtocol) Update() error {
	now := time.Now()

	if err := p.retransmitScan(now); err != nil {
		return err
	}
	if err := p.receiveDrain(now); err != nil {
		return err
	}
	if err := p.sendDrain(); err != nil {
		return err
	}
	p.stateStep(now)

	p.reasm.ExpireOlderThan(now)
	p.reportMetrics()
	return nil
}

// retransmitScan is step 1: any unacked frame whose RTO has elapsed is
// either resent (attempts < maxAttempts), which notifies congestion control
// of a loss, or abandoned (attempts == maxAttempts already), which deletes
// it from the store. A frame reaching maxAttempts, on its last resend or on
// abandonment, forces StateDisconnecting only while StateConnected; in any
// other state the frame is simply dropped.
func (p *NetworkProtocol) retransmitScan(now time.Time) error {
	pending := p.store.Pending()
	sort.Slice(pending, func(i, j int) bool { return wire.SeqLess(pending[i].Sequence, pending[j].Sequence) })

	rto := p.cong.RTO()
	for _, pkt := range pending {
		if now.Sub(pkt.Timestamp) < rto {
			continue
		}

		if pkt.Attempts >= p.maxAttempts {
			p.store.Delete(pkt.Sequence)
			p.log.Warn("protocol: frame abandoned after max attempts", zap.Uint32("seq", pkt.Sequence))
			// The Connected-only Disconnecting transition (spec.md §4.5.2);
			// Connecting has its own, separate exit on handshakeDeadline
			// (§4.5.2/§4.5.3 scenario S3), so a SYN exhausting its
			// attempts must not force Disconnecting here.
			if p.state == StateConnected {
				p.beginDisconnect(now)
			}
			continue
		}

		pkt.Attempts++
		pkt.Timestamp = now
		p.cong.OnLoss(now)
		p.met.IncRetransmits()
		if !p.buf.PushOutgoing(*pkt) {
			p.log.Warn("protocol: outgoing buffer full, dropping retransmit", zap.Uint32("seq", pkt.Sequence))
		}

		if pkt.Attempts == p.maxAttempts && p.state == StateConnected {
			p.beginDisconnect(now)
		}
	}
	return nil
}

// receiveDrain is step 2: drain every datagram currently available without
// blocking, authenticate and decompress it (dropping silently on either
// failure), record its sequence for our own future ack_bits, feed its
// piggybacked ack/ack_bits into the reliable store, and either act on a
// handshake control byte or surface a completed application payload.
func (p *NetworkProtocol) receiveDrain(now time.Time) error {
	for {
		data, addr, err := p.socket.Recv()
		if err == transport.ErrWouldBlock {
			return nil
		}
		if err != nil {
			return err
		}

		if p.socket.Peer() == nil {
			if cerr := p.socket.Connect(addr.String()); cerr != nil {
				p.log.Warn("protocol: failed to lock onto peer", zap.Error(cerr))
				continue
			}
		}

		hdr, kind, body, ferr := p.openFrame(data)
		if ferr != nil {
			if ferr == crypto.ErrAuthFailed {
				p.met.IncAuthFailures()
			} else {
				p.met.IncDropsDecompress()
			}
			p.log.Debug("protocol: dropping unreadable frame", zap.Error(ferr))
			continue
		}

		p.store.Recv.Mark(hdr.Seq)
		p.store.HandleAck(hdr.Ack, hdr.AckBits, p.cong, now)

		switch kind {
		case kindControl:
			if len(body) < 1 {
				continue
			}
			p.onControl(body[0], now)
		case kindWhole:
			payload := make([]byte, len(body))
			copy(payload, body)
			p.deliver(hdr.Seq, payload)
		case kindFragment:
			fhdr, derr := fragment.DecodeHeader(body)
			if derr != nil {
				continue
			}
			assembled, done, _ := p.reasm.Add(fhdr, body[fragment.HeaderSize:], now)
			if done {
				p.deliver(hdr.Seq, assembled)
			}
		}
	}
}

func (p *NetworkProtocol) deliver(seq uint32, payload []byte) {
	if !p.buf.PushIncoming(wire.Packet{Sequence: seq, Data: payload, Timestamp: time.Now()}) {
		p.log.Warn("protocol: incoming buffer full, dropping frame", zap.Uint32("seq", seq))
	}
}

// sendDrain is step 3: send at most the current congestion window's worth
// of queued frames this tick.
func (p *NetworkProtocol) sendDrain() error {
	for i := uint32(0); i < p.cong.WindowSize; i++ {
		pkt, ok := p.buf.PopOutgoing()
		if !ok {
			break
		}
		if _, err := p.socket.Send(pkt.Data); err != nil {
			return err
		}
	}
	return nil
}

// stateStep is step 4: the wall-clock-driven transitions that don't fire
// directly off an inbound event — handshake timeout and disconnect grace.
// Event-driven transitions (receiving SYN/SYN-ACK/FIN) are handled inline
// in receiveDrain, where the triggering frame is actually observed.
func (p *NetworkProtocol) stateStep(now time.Time) {
	switch p.state {
	case StateConnecting:
		if now.After(p.handshakeDeadline) {
			p.log.Warn("protocol: handshake timed out")
			p.resetToIdle()
		}
	case StateDisconnecting:
		finAcked := p.hasFinSeq
		if finAcked {
			if _, stillPending := p.store.Get(p.finSeq); stillPending {
				finAcked = false
			}
		}
		if finAcked || now.After(p.disconnectDeadline) {
			p.resetToIdle()
		}
	}
}

func (p *NetworkProtocol) resetToIdle() {
	p.state = StateIdle
	p.store = reliable.NewStore()
	p.buf = buffer.New(p.bufSize)
	p.reasm = fragment.NewReassembler()
	p.hasSynSeq, p.hasFinSeq = false, false
}

func (p *NetworkProtocol) beginDisconnect(now time.Time) {
	if p.state == StateDisconnecting {
		return
	}
	p.state = StateDisconnecting
	p.disconnectDeadline = now.Add(p.disconnectGrace)
	if err := p.sendControl(wire.ControlFIN); err != nil {
		p.log.Warn("protocol: failed to send FIN", zap.Error(err))
	}
}

// onControl applies the state transitions spec.md §4.5.2 defines for each
// handshake control byte, observed here in receiveDrain at the moment the
// triggering frame arrives.
func (p *NetworkProtocol) onControl(b byte, now time.Time) {
	switch b {
	case wire.ControlSYN:
		switch p.state {
		case StateIdle, StateConnecting:
			p.state = StateConnected
			if err := p.sendControl(wire.ControlSYNACK); err != nil {
				p.log.Warn("protocol: failed to send SYN-ACK", zap.Error(err))
			}
		}
	case wire.ControlSYNACK:
		if p.state == StateConnecting {
			p.state = StateConnected
		}
	case wire.ControlFIN:
		if p.state == StateConnected {
			p.beginDisconnect(now)
		}
	}
}

// sendControl emits a one-byte control frame as a reliable, tracked frame
// — the same send/track/retransmit path as application data, which is how
// the handshake and teardown frames get their own RTO-driven retries for
// free.
func (p *NetworkProtocol) sendControl(b byte) error {
	seq := p.seq
	if err := p.send(kindControl, []byte{b}); err != nil {
		return err
	}
	switch b {
	case wire.ControlSYN, wire.ControlSYNACK:
		p.synSeq, p.hasSynSeq = seq, true
	case wire.ControlFIN:
		p.finSeq, p.hasFinSeq = seq, true
	}
	return nil
}

func (p *NetworkProtocol) sendWhole(data []byte) error {
	return p.send(kindWhole, data)
}

func (p *NetworkProtocol) sendFragmented(data []byte) error {
	groupID := p.seq
	frags, err := fragment.Split(data, p.fragmentBudget(), groupID)
	if err != nil {
		return err
	}
	for _, f := range frags {
		if err := p.send(kindFragment, f); err != nil {
			return err
		}
	}
	return nil
}

// send builds, tracks, and enqueues one frame. The header's ack/ack_bits
// are a snapshot of what we have received as of this instant; they are not
// refreshed on retransmission, matching the data model both spec.md and
// original_source's Packet give each queued send.
func (p *NetworkProtocol) send(kind frameKind, body []byte) error {
	hdr := wire.Header{Seq: p.seq, Ack: p.store.Recv.High(), AckBits: p.store.Recv.AckBits()}

	sealed, err := p.buildFrame(kind, body, hdr)
	if err != nil {
		return err
	}

	pkt := wire.Packet{Sequence: hdr.Seq, Ack: hdr.Ack, AckBits: hdr.AckBits, Data: sealed, Timestamp: time.Now()}
	p.store.Record(&pkt)
	if !p.buf.PushOutgoing(pkt) {
		p.store.Delete(hdr.Seq)
		return ErrBufferFull
	}
	p.seq++
	return nil
}

func (p *NetworkProtocol) reportMetrics() {
	p.met.SetCongestionWindow(float64(p.cong.WindowSize))
	p.met.SetThreshold(float64(p.cong.Threshold))
	p.met.SetRTT(float64(p.cong.RTT().Milliseconds()))
	p.met.SetRTTVar(float64(p.cong.RTTVar().Milliseconds()))
	p.met.SetPendingReliable(float64(p.store.Len()))
}
