package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nickolajgrishuk/relaygram/pkg/wire"
)

func TestPushPopOrder(t *testing.T) {
	b := New(2)

	require.True(t, b.PushIncoming(wire.Packet{Sequence: 1}))
	require.True(t, b.PushIncoming(wire.Packet{Sequence: 2}))
	require.False(t, b.PushIncoming(wire.Packet{Sequence: 3}), "push beyond capacity should fail")

	p, ok := b.PopIncoming()
	require.True(t, ok)
	require.Equal(t, uint32(1), p.Sequence)

	p, ok = b.PopIncoming()
	require.True(t, ok)
	require.Equal(t, uint32(2), p.Sequence)

	_, ok = b.PopIncoming()
	require.False(t, ok)
}

func TestPeekDoesNotRemove(t *testing.T) {
	b := New(4)
	require.True(t, b.PushOutgoing(wire.Packet{Sequence: 7}))

	p, ok := b.PeekOutgoing()
	require.True(t, ok)
	require.Equal(t, uint32(7), p.Sequence)
	require.Equal(t, 1, b.LenOutgoing())

	p, ok = b.PopOutgoing()
	require.True(t, ok)
	require.Equal(t, uint32(7), p.Sequence)
	require.Equal(t, 0, b.LenOutgoing())
}

func TestIncomingAndOutgoingAreIndependent(t *testing.T) {
	b := New(1)
	require.True(t, b.PushIncoming(wire.Packet{Sequence: 1}))
	require.True(t, b.PushOutgoing(wire.Packet{Sequence: 2}))
	require.Equal(t, 1, b.LenIncoming())
	require.Equal(t, 1, b.LenOutgoing())
}
