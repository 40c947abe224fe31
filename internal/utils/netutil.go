package utils

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

/**
 * Check whether a TCP port can be bound on all interfaces
 * @param {int} port - Port to try
 * @returns {bool} True if a trial listen succeeded
 * @description
 * - Opens and immediately closes a listener, the same bind the decoy will do
 */
func CheckPortListenable(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

// CheckPortConnectable reports whether something accepts connections on localhost:port.
func CheckPortConnectable(port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func isUDP(proto string) bool {
	return strings.EqualFold(proto, "udp")
}

func checkUDPBindable(port int) bool {
	pc, err := net.ListenPacket("udp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	pc.Close()
	return true
}

/**
 * Check whether a port can be bound for a transport protocol
 * @param {string} proto - "TCP" or "UDP", case-insensitive; anything else means TCP
 * @param {int} port - Port to try
 * @returns {bool} True if a trial bind succeeded
 */
func CheckPortAvailable(proto string, port int) bool {
	if isUDP(proto) {
		return checkUDPBindable(port)
	}
	return CheckPortListenable(port)
}

/**
 * Check whether something serves a port
 * @param {string} proto - "TCP" or "UDP"
 * @param {int} port - Port to check
 * @returns {bool} True if the port is served
 * @description
 * - TCP: a connection to localhost is accepted
 * - UDP has no handshake, so a port counts as served while it can't be bound
 */
func CheckPortServed(proto string, port int) bool {
	if isUDP(proto) {
		return !checkUDPBindable(port)
	}
	return CheckPortConnectable(port)
}

/**
 * Wait until nothing serves a port
 * @param {context.Context} ctx - Cancels the wait
 * @param {string} proto - "TCP" or "UDP"
 * @param {int} port - Port to watch
 * @param {time.Duration} timeout - Upper bound of the wait
 * @returns {error} Returns error if the port is still served after timeout
 */
func WaitPortReleased(ctx context.Context, proto string, port int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if !CheckPortServed(proto, port) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("port %d/%s still in use after %v", port, strings.ToLower(proto), timeout)
		case <-ticker.C:
		}
	}
}

// FreePort asks the kernel for an unused TCP port.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
