package protocol

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nickolajgrishuk/relaygram/pkg/crypto"
)

// drive runs Update on both ends in lockstep for up to timeout, stopping
// early once cond reports true. Mirrors the 60Hz poll loop cmd/relaygram-demo
// and original_source's client.rs both use, compressed for test speed.
func drive(t *testing.T, a, b *NetworkProtocol, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		require.NoError(t, a.Update())
		require.NoError(t, b.Update())
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// newPairBoundToLoopback builds two NetworkProtocol instances sharing one
// out-of-band-provisioned key (spec.md has no key exchange: both ends of a
// real deployment are handed the same key via WithEncryptionKey). Without
// this, each instance's New would generate its own independent random key
// (pkg/crypto.New) and neither side could ever authenticate a frame from
// the other.
func newPairBoundToLoopback(t *testing.T, opts ...Option) (client, server *NetworkProtocol) {
	t.Helper()

	key := make([]byte, crypto.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	keyOpt := WithEncryptionKey(key)
	serverOpts := append([]Option{keyOpt}, opts...)
	clientOpts := append([]Option{keyOpt}, opts...)

	server, err = New("127.0.0.1:0", serverOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })

	client, err = New("127.0.0.1:0", clientOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, server
}

func TestHandshakeReachesConnected(t *testing.T) {
	client, server := newPairBoundToLoopback(t)

	require.NoError(t, client.Connect(server.LocalAddr().String()))

	drive(t, client, server, 2*time.Second, func() bool {
		return client.State() == StateConnected && server.State() == StateConnected
	})
}

func TestSendReliableDeliversPayload(t *testing.T) {
	client, server := newPairBoundToLoopback(t)
	require.NoError(t, client.Connect(server.LocalAddr().String()))
	drive(t, client, server, 2*time.Second, func() bool {
		return client.State() == StateConnected && server.State() == StateConnected
	})

	require.NoError(t, client.SendReliable([]byte("hello server")))

	var received []byte
	drive(t, client, server, 2*time.Second, func() bool {
		payload, ok := server.Recv()
		if ok {
			received = payload
			return true
		}
		return false
	})
	require.Equal(t, "hello server", string(received))
}

func TestSendReliableRejectsWhenNotConnected(t *testing.T) {
	client, _ := newPairBoundToLoopback(t)
	err := client.SendReliable([]byte("too early"))
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestFragmentedPayloadReassembles(t *testing.T) {
	client, server := newPairBoundToLoopback(t, WithMTU(300))
	require.NoError(t, client.Connect(server.LocalAddr().String()))
	drive(t, client, server, 2*time.Second, func() bool {
		return client.State() == StateConnected && server.State() == StateConnected
	})

	big := make([]byte, 4000)
	for i := range big {
		big[i] = byte(i)
	}
	require.NoError(t, client.SendReliable(big))

	var received []byte
	drive(t, client, server, 3*time.Second, func() bool {
		payload, ok := server.Recv()
		if ok {
			received = payload
			return true
		}
		return false
	})
	require.Equal(t, big, received)
}

func TestHandshakeTimesOutBackToIdle(t *testing.T) {
	client, err := New("127.0.0.1:0", WithTimeout(30*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	// Bind a peer that never calls Update: its socket accepts the SYN
	// datagram but never answers it, so the handshake should time out
	// rather than erroring (a closed port would instead risk an ICMP
	// port-unreachable surfacing as a socket error on some platforms).
	silent, err := New("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = silent.Close() })

	require.NoError(t, client.Connect(silent.LocalAddr().String()))
	require.Equal(t, StateConnecting, client.State())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && client.State() != StateIdle {
		require.NoError(t, client.Update())
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, StateIdle, client.State())
}
