// Package netutil chooses listen addresses for the HTTP servers.
package netutil

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoBindAddr is returned when neither the preferred address nor any
// candidate can be listened on.
var ErrNoBindAddr = errors.New("no available bind addresses")

// SelectBindAddr picks the preferred address when it is free, otherwise the
// first free candidate if autoFallback is set.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	ln, err := Listen(preferred, candidates, autoFallback)
	if err != nil {
		return "", err
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		return "", err
	}
	return addr, nil
}

// Listen opens a TCP listener on the first usable address. Handing the open
// listener to http.Server.Serve avoids losing the port between probe and bind.
func Listen(preferred string, candidates []string, autoFallback bool) (net.Listener, error) {
	if preferred != "" {
		if ln, err := net.Listen("tcp", preferred); err == nil {
			return ln, nil
		}
		if !autoFallback {
			return nil, fmt.Errorf("preferred bind address in use: %s", preferred)
		}
	}

	seen := map[string]bool{preferred: true}
	for _, addr := range candidates {
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		if ln, err := net.Listen("tcp", addr); err == nil {
			return ln, nil
		}
	}
	return nil, ErrNoBindAddr
}

// IsAddrAvailable returns true when an address can be listened on.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
