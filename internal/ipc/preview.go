package ipc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"photobooth/internal/debug"
)

// PreviewTransport moves live-view frames toward whoever wants to render
// them. Implementations are selected by configuration, never layered.
type PreviewTransport interface {
	// Start prepares the transport. For listening transports it begins
	// accepting viewers; it returns once sending is possible.
	Start(ctx context.Context) error

	// SendFrame delivers one complete JPEG frame, best effort. Frame loss
	// is normal; a returned error is terminal for the transport.
	SendFrame(frame []byte) error
}

// When the datagram destination refuses this many consecutive sends the
// transport gives up and boothd exits non-zero. It distinguishes a truly
// broken deployment from the front-end simply starting a beat later
// (frames flow every ~50ms, so the budget spans several seconds).
const maxConsecutiveRefused = 100

// DatagramPreview pushes one JPEG frame per datagram at a fixed
// destination socket. Frames beyond receiver capacity are dropped by the
// kernel; this transport tolerates loss by design of the channel.
type DatagramPreview struct {
	dest    string
	conn    *net.UnixConn
	refused int
}

// NewDatagramPreview targets the front-end's preview socket path.
func NewDatagramPreview(dest string) *DatagramPreview {
	return &DatagramPreview{dest: dest}
}

// Start is a no-op; the destination may not exist yet and that is fine.
func (d *DatagramPreview) Start(ctx context.Context) error { return nil }

// SendFrame sends one frame. Refused sends (destination not bound) are
// dropped and counted; the counter resets on any success.
func (d *DatagramPreview) SendFrame(frame []byte) error {
	if d.conn == nil {
		conn, err := dialDatagram(d.dest)
		if err != nil {
			return d.dropped(err)
		}
		d.conn = conn
	}

	if _, err := d.conn.Write(frame); err != nil {
		d.conn.Close()
		d.conn = nil
		return d.dropped(err)
	}

	d.refused = 0
	debug.Frame("sent", len(frame))
	return nil
}

func (d *DatagramPreview) dropped(err error) error {
	d.refused++
	debug.Retry("preview send", err)
	if d.refused >= maxConsecutiveRefused {
		return fmt.Errorf("preview destination %s refused %d consecutive frames: %w", d.dest, d.refused, err)
	}
	return nil
}

// StreamPreview serves frames over a listening unix stream socket to a
// single live viewer at a time. With framed=true each frame carries a
// 4-byte big-endian length prefix; otherwise raw JPEG bytes are written
// and frame boundaries are implied by the JPEG markers alone.
type StreamPreview struct {
	path   string
	framed bool

	ln *net.UnixListener

	mu   sync.Mutex
	conn net.Conn
}

// NewStreamPreview listens at path. framed selects the length-prefixed
// wire format.
func NewStreamPreview(path string, framed bool) *StreamPreview {
	return &StreamPreview{path: path, framed: framed}
}

// Start binds the socket and begins accepting viewers.
func (s *StreamPreview) Start(ctx context.Context) error {
	if err := removeStale(s.path); err != nil {
		return err
	}
	addr, err := net.ResolveUnixAddr("unix", s.path)
	if err != nil {
		return err
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("bind stream socket %s: %w", s.path, err)
	}
	s.ln = ln
	debug.Socket("listen", s.path)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	go s.acceptLoop(ctx)
	return nil
}

// acceptLoop admits viewers one at a time. A newly accepted connection
// replaces the current viewer, if any.
func (s *StreamPreview) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			debug.Retry("preview accept", err)
			continue
		}
		debug.Live("Preview viewer connected")

		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.conn = conn
		s.mu.Unlock()
	}
}

// SendFrame writes one frame to the current viewer. Without a viewer the
// frame is dropped; a write error drops the viewer and the frame.
func (s *StreamPreview) SendFrame(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	var err error
	if s.framed {
		err = WriteFrame(s.conn, frame)
	} else {
		_, err = s.conn.Write(frame)
	}
	if err != nil {
		debug.Live("Preview viewer disconnected: %v", err)
		s.conn.Close()
		s.conn = nil
		return nil
	}
	debug.Frame("sent", len(frame))
	return nil
}
