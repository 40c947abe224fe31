package server

import (
	"errors"
	"io/fs"
	"net"
	"os"

	"hivekeeper/internal/logger"
)

type ListenAddr struct {
	Network string
	Address string
}

/**
 * Create the listeners of the management server
 * @param {[]ListenAddr} addrs - TCP and unix socket addresses
 * @returns {([]net.Listener, error)} Listeners that could be created, and the last failure
 * @description
 * - A leftover unix socket file is removed before listening
 * - The socket is restricted to the owner
 */
func CreateListeners(addrs []ListenAddr) ([]net.Listener, error) {
	var listeners []net.Listener

	var lastErr error
	for _, addr := range addrs {
		if addr.Network == "unix" {
			if err := os.Remove(addr.Address); err != nil && !errors.Is(err, fs.ErrNotExist) {
				logger.Errorf("Failed to remove existing socket file: %v", err)
				lastErr = err
				continue
			}
		}
		l, err := net.Listen(addr.Network, addr.Address)
		if err != nil {
			logger.Errorf("Failed to create listener on %s://%s: %v", addr.Network, addr.Address, err)
			lastErr = err
			continue
		}
		if addr.Network == "unix" {
			os.Chmod(addr.Address, 0600)
		}
		listeners = append(listeners, l)
	}
	return listeners, lastErr
}
