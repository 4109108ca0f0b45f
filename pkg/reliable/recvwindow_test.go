package reliable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAckBitsReflectReceivedGaps(t *testing.T) {
	w := NewRecvWindow()
	w.Mark(10)
	w.Mark(9)
	// 8 is missing
	w.Mark(7)

	require.Equal(t, uint32(10), w.High())
	bits := w.AckBits()
	require.NotZero(t, bits&(1<<0), "seq 9 (high-1) should be marked received")
	require.Zero(t, bits&(1<<1), "seq 8 (high-2) was never received")
	require.NotZero(t, bits&(1<<2), "seq 7 (high-3) should be marked received")
}

func TestHighAdvancesOnOutOfOrderArrival(t *testing.T) {
	// spec.md's fix: ack_number must advance to max(ack_number, seq) under
	// wrap-aware ordering, not require strict contiguity.
	w := NewRecvWindow()
	w.Mark(5)
	w.Mark(20)
	w.Mark(12) // arrives late, behind the current high-water mark

	require.Equal(t, uint32(20), w.High())
	require.True(t, w.Has(12))
}

func TestHighAdvancesAcrossWraparound(t *testing.T) {
	w := NewRecvWindow()
	w.Mark(0xFFFFFFFE)
	w.Mark(1)

	require.Equal(t, uint32(1), w.High(), "a sequence just past the wrap should become the new high mark")
}

func TestPruneKeepsRecentHistoryOnly(t *testing.T) {
	w := NewRecvWindow()
	for seq := uint32(0); seq < uint32(horizon*3); seq++ {
		w.Mark(seq)
	}
	require.True(t, w.Has(w.High()))
	require.False(t, w.Has(0), "sequences far behind the high-water mark should have been pruned")
}
