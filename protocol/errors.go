package protocol

import "github.com/pkg/errors"

// Sentinel errors a caller can compare against with errors.Is. Per-frame
// failures (auth, decompression) never reach the caller as errors at all —
// they are logged and dropped — only connection-level conditions do: these
// sentinels and the wrapped socket errors from New, Connect and Update.
var (
	// ErrBufferFull is returned by SendReliable when the outgoing queue is
	// already at capacity; the caller may retry later.
	ErrBufferFull = errors.New("protocol: outgoing buffer full")

	// ErrNotConnected is returned by SendReliable before a handshake has
	// completed.
	ErrNotConnected = errors.New("protocol: not connected")

	// ErrHandshakeTimeout marks the condition (observable via logs, not
	// returned from Update) where Connecting reverted to Idle.
	ErrHandshakeTimeout = errors.New("protocol: handshake timed out")
)
