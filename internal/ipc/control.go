package ipc

import (
	"context"
	"fmt"

	"photobooth/internal/debug"
)

// triggerPayload is what the front-end sends on the control channel. The
// listener fires on any non-empty datagram; the payload is a courtesy for
// anyone watching the socket, not a protocol.
var triggerPayload = []byte("snap")

// ControlListener receives capture triggers on the control socket.
type ControlListener struct {
	path    string
	trigger func()
}

// NewControlListener fires trigger for every non-empty datagram received
// on the control socket.
func NewControlListener(path string, trigger func()) *ControlListener {
	return &ControlListener{path: path, trigger: trigger}
}

// Run binds the control socket and serves triggers until ctx is
// cancelled. No acknowledgment is ever sent back.
func (l *ControlListener) Run(ctx context.Context) error {
	conn, err := listenDatagram(l.path)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close() // unblocks the read below
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := conn.ReadFromUnix(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("control socket read: %w", err)
		}
		if n == 0 {
			continue
		}
		debug.Live("Capture trigger received")
		l.trigger()
	}
}

// ControlSender sends capture triggers to boothd's control socket.
// A fresh client socket per trigger keeps the sender stateless across
// boothd restarts.
type ControlSender struct {
	path string
}

// NewControlSender targets the given control socket path.
func NewControlSender(path string) *ControlSender {
	return &ControlSender{path: path}
}

// RequestCapture sends one trigger datagram.
func (s *ControlSender) RequestCapture() error {
	conn, err := dialDatagram(s.path)
	if err != nil {
		return fmt.Errorf("capture trigger: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(triggerPayload); err != nil {
		return fmt.Errorf("capture trigger: %w", err)
	}
	debug.Socket("trigger sent", s.path)
	return nil
}
