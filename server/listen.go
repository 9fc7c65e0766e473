// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package server

import (
	"fmt"
	"net"
	"os"

	"github.com/coreos/go-systemd/v22/activation"
	"golang.org/x/sys/unix"
)

// Listen creates a TCP listening socket on address with SO_REUSEADDR
// set and the given backlog. An empty or unspecified host binds every
// IPv4 interface.
func Listen(address string, backlog int) (net.Listener, error) {
	tcpAddress, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", address, err)
	}

	domain, sockaddr := socketAddress(tcpAddress)
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("creating socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setting SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sockaddr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("binding %s: %w", address, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}

	// FileListener duplicates the descriptor; the file is only a
	// carrier and is closed either way.
	file := os.NewFile(uintptr(fd), "piper-listener")
	defer file.Close()
	listener, err := net.FileListener(file)
	if err != nil {
		return nil, fmt.Errorf("adopting listening socket: %w", err)
	}
	return listener, nil
}

func socketAddress(address *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := address.IP.To4(); ip4 != nil || address.IP == nil {
		sockaddr := &unix.SockaddrInet4{Port: address.Port}
		if ip4 != nil {
			copy(sockaddr.Addr[:], ip4)
		}
		return unix.AF_INET, sockaddr
	}
	sockaddr := &unix.SockaddrInet6{Port: address.Port}
	copy(sockaddr.Addr[:], address.IP.To16())
	return unix.AF_INET6, sockaddr
}

// Inherited returns the first listener passed in by systemd socket
// activation, or nil when the process was not socket-activated.
func Inherited() (net.Listener, error) {
	listeners, err := activation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("reading activated sockets: %w", err)
	}
	var chosen net.Listener
	for _, listener := range listeners {
		if listener == nil {
			continue
		}
		if chosen == nil {
			chosen = listener
			continue
		}
		// Only one endpoint is served.
		listener.Close()
	}
	return chosen, nil
}
