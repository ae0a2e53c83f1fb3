// Package ipc implements the unix-socket channels connecting the
// camera-control service (boothd) and the front-end controller:
//
//   - control: datagrams requesting a still capture (boothd binds)
//   - result: datagrams carrying captured file paths (front-end binds)
//   - preview: a continuous feed of JPEG frames, as datagrams or as a
//     stream socket, optionally with a length-prefix framing
//
// Each channel is independently named and independently lifecycled: the
// binding side removes a stale socket file before listening.
package ipc

import (
	"fmt"
	"net"
	"os"

	"photobooth/internal/debug"
)

// maxDatagram bounds a single datagram receive. Preview frames from
// live view are well under this.
const maxDatagram = 1 << 20

// removeStale unlinks a leftover socket file from a previous run.
func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}

// listenDatagram binds a unix datagram socket at path, replacing any
// stale socket file.
func listenDatagram(path string) (*net.UnixConn, error) {
	if err := removeStale(path); err != nil {
		return nil, err
	}
	addr, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("bind datagram socket %s: %w", path, err)
	}
	debug.Socket("bind", path)
	return conn, nil
}

// dialDatagram connects a send-only unix datagram socket to path.
// The local end stays unbound, like an anonymous client socket.
func dialDatagram(path string) (*net.UnixConn, error) {
	addr, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial datagram socket %s: %w", path, err)
	}
	return conn, nil
}
