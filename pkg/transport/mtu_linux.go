//go:build linux

package transport

import (
	"net"
	"syscall"
)

// DefaultMTU is used whenever the platform cannot report a path MTU.
const DefaultMTU = 1400

func getMTU(conn *net.UDPConn) (uint, error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return DefaultMTU, nil
	}

	var mtu int
	var getErr error
	err = rawConn.Control(func(fd uintptr) {
		mtu, getErr = syscall.GetsockoptInt(int(fd), syscall.IPPROTO_IP, syscall.IP_MTU)
	})
	if err != nil || getErr != nil || mtu <= 0 {
		return DefaultMTU, nil
	}
	return uint(mtu), nil
}
