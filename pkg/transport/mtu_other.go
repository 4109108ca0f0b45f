//go:build !linux

package transport

import "net"

// DefaultMTU is used whenever the platform cannot report a path MTU.
const DefaultMTU = 1400

// getMTU on macOS and Windows: IP_MTU isn't available through getsockopt,
// so we fall back to DefaultMTU.
func getMTU(_ *net.UDPConn) (uint, error) {
	return DefaultMTU, nil
}
