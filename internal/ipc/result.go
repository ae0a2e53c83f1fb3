package ipc

import (
	"context"
	"net"
	"time"

	"photobooth/internal/debug"
)

// ResultSender announces completed captures to the front-end's result
// socket. The payload is the UTF-8 path of the captured file.
type ResultSender struct {
	path string
}

// NewResultSender targets the given result socket path.
func NewResultSender(path string) *ResultSender {
	return &ResultSender{path: path}
}

// Send delivers one capture result. If the front-end has not bound its
// socket (yet, or anymore) the result is logged and dropped; the sequence
// controller's wait timeout absorbs the loss.
func (s *ResultSender) Send(capturePath string) {
	conn, err := dialDatagram(s.path)
	if err != nil {
		debug.Error(err)
		return
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(capturePath)); err != nil {
		debug.Error(err)
		return
	}
	debug.Socket("result sent", s.path)
}

// ResultReceiver owns the bound result socket on the front-end side.
// Exactly one result is expected per trigger; WaitResult pairs them.
type ResultReceiver struct {
	conn *net.UnixConn
}

// NewResultReceiver binds the result socket (replacing a stale file).
func NewResultReceiver(path string) (*ResultReceiver, error) {
	conn, err := listenDatagram(path)
	if err != nil {
		return nil, err
	}
	return &ResultReceiver{conn: conn}, nil
}

// WaitResult blocks for the next capture result up to timeout. The second
// return is false on timeout: the caller records the slot as missing and
// moves on.
func (r *ResultReceiver) WaitResult(timeout time.Duration) (string, bool) {
	if err := r.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		debug.Error(err)
		return "", false
	}

	buf := make([]byte, maxDatagram)
	n, _, err := r.conn.ReadFromUnix(buf)
	if err != nil || n == 0 {
		if err != nil {
			debug.Retry("result wait", err)
		}
		return "", false
	}
	return string(buf[:n]), true
}

// Close releases the result socket.
func (r *ResultReceiver) Close() error { return r.conn.Close() }

// Drain discards any results queued from earlier, abandoned waits so they
// are never paired with a later trigger.
func (r *ResultReceiver) Drain(ctx context.Context) {
	buf := make([]byte, maxDatagram)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := r.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
			return
		}
		if _, _, err := r.conn.ReadFromUnix(buf); err != nil {
			return
		}
	}
}
