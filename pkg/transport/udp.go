// Package transport owns the bound UDP socket: binding, connecting,
// non-blocking send/recv, and MTU discovery. It knows nothing about
// reliability, compression or encryption — it moves opaque byte slices.
package transport

import (
	"context"
	"net"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// RecvBufferSize is the per-call read buffer; large enough for any
// unfragmented frame plus the AEAD overhead and wire-carried nonce counter.
const RecvBufferSize = 64 * 1024

// ErrWouldBlock is returned by Recv when no datagram is currently
// available. It is not a fatal error: the engine's receive-drain loop
// treats it as "stop polling this tick", matching a non-blocking socket's
// EWOULDBLOCK.
var ErrWouldBlock = errors.New("transport: would block")

// Socket is a bound, optionally peer-associated UDP socket.
type Socket struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
}

// Bind opens a UDP socket listening on addr (host:port, host may be empty
// for all interfaces) with SO_REUSEADDR set.
func Bind(addr string) (*Socket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "transport: resolve bind address")
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var setErr error
			if ctrlErr := c.Control(func(fd uintptr) {
				setErr = setSockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			}); ctrlErr != nil {
				return ctrlErr
			}
			return setErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp", udpAddr.String())
	if err != nil {
		return nil, errors.Wrap(err, "transport: bind")
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, errors.New("transport: listen did not return a UDP connection")
	}
	return &Socket{conn: conn}, nil
}

// Connect associates remoteAddr as this socket's sole peer. relaygram is
// point-to-point: every Send after this goes to remoteAddr and Recv
// silently discards datagrams from any other source.
func (s *Socket) Connect(remoteAddr string) error {
	addr, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return errors.Wrap(err, "transport: resolve remote address")
	}
	s.remote = addr
	return nil
}

// Close releases the underlying socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// Send writes data to the connected peer. Returns a fatal, wrapped error
// if the write fails, and an error as well on a short write.
func (s *Socket) Send(data []byte) (int, error) {
	if s.remote == nil {
		return 0, errors.New("transport: no peer, call Connect first")
	}
	n, err := s.conn.WriteToUDP(data, s.remote)
	if err != nil {
		return n, errors.Wrap(err, "transport: send")
	}
	if n != len(data) {
		return n, errors.Errorf("transport: short write: sent %d of %d bytes", n, len(data))
	}
	return n, nil
}

// Recv polls for exactly one datagram without blocking: ErrWouldBlock if
// none is ready, a wrapped error for anything else fatal. Once a peer is
// connected, datagrams from any other source are silently treated as
// ErrWouldBlock — this is a point-to-point transport (see spec.md
// Non-goals: no multi-peer demultiplexing). Before a peer is connected
// (server side, awaiting the first SYN) any source is accepted and
// returned so the caller can lock onto it via Connect.
func (s *Socket) Recv() ([]byte, *net.UDPAddr, error) {
	if err := s.conn.SetReadDeadline(time.Now()); err != nil {
		return nil, nil, errors.Wrap(err, "transport: set read deadline")
	}

	buf := make([]byte, RecvBufferSize)
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, nil, ErrWouldBlock
		}
		return nil, nil, errors.Wrap(err, "transport: recv")
	}

	if s.remote != nil && (!addr.IP.Equal(s.remote.IP) || addr.Port != s.remote.Port) {
		return nil, nil, ErrWouldBlock
	}

	out := make([]byte, n)
	copy(out, buf[:n])
	return out, addr, nil
}

// Peer returns the currently connected remote address, or nil if none.
func (s *Socket) Peer() *net.UDPAddr { return s.remote }

// LocalAddr returns the address this socket is bound to, useful after
// binding to port 0 and letting the OS choose one.
func (s *Socket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// MTU reports the path MTU for this socket, falling back to a conservative
// default where the platform cannot report it.
func (s *Socket) MTU() uint {
	mtu, err := getMTU(s.conn)
	if err != nil {
		return DefaultMTU
	}
	return mtu
}
