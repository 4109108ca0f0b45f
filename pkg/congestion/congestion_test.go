package congestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSlowStartGrowsByOnePerAck(t *testing.T) {
	c := New()
	require.Equal(t, uint32(1), c.WindowSize)

	for i := 0; i < 5; i++ {
		c.OnAck()
	}
	require.Equal(t, uint32(6), c.WindowSize)
	require.Less(t, c.WindowSize, c.Threshold)
}

func TestCongestionAvoidanceGrowsFractionally(t *testing.T) {
	c := New()
	c.WindowSize = c.Threshold // enter congestion avoidance

	before := c.WindowSize
	for i := uint32(0); i < before-2; i++ {
		c.OnAck()
	}
	require.Equal(t, before, c.WindowSize, "well under WindowSize acks should not grow the window yet")

	// About WindowSize acks in total make one full step of growth
	// (1/WindowSize accumulated per ack); four more acks bring the total to
	// WindowSize+2, past the WindowSize-th ack at which the window grows.
	for i := 0; i < 4; i++ {
		c.OnAck()
	}
	require.Equal(t, before+1, c.WindowSize, "about WindowSize acks should grow the window by exactly one")
}

func TestOnLossHalvesThresholdAndResetsWindow(t *testing.T) {
	c := New()
	c.WindowSize = 20
	c.Threshold = 20

	c.OnLoss(time.Now())
	require.Equal(t, uint32(1), c.WindowSize)
	require.Equal(t, uint32(10), c.Threshold)
}

func TestOnLossFloorsThresholdAtTwo(t *testing.T) {
	c := New()
	c.WindowSize = 2
	c.Threshold = 2

	c.OnLoss(time.Now())
	require.Equal(t, uint32(2), c.Threshold)
}

func TestRTOIsClampedToBounds(t *testing.T) {
	c := New()
	require.GreaterOrEqual(t, c.RTO(), MinRTO)
	require.LessOrEqual(t, c.RTO(), MaxRTO)

	c.UpdateRTT(500 * time.Millisecond)
	require.LessOrEqual(t, c.RTO(), MaxRTO)
}

func TestUpdateRTTSmoothsTowardSample(t *testing.T) {
	c := New()
	initial := c.RTT()

	c.UpdateRTT(200 * time.Millisecond)
	require.Greater(t, c.RTT(), initial, "a higher sample should pull the estimate up")
	require.Less(t, c.RTT(), 200*time.Millisecond, "smoothing should not jump straight to the sample")
}
