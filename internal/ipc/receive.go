package ipc

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	"photobooth/internal/debug"
)

// streamRedialInterval is the fixed wait between reconnect attempts of a
// streaming preview consumer. Retries are unbounded; the booth may start
// before boothd does.
const streamRedialInterval = 2 * time.Second

// frameSink is a 1-slot drop-oldest buffer: the consumer only ever wants
// the newest frame, exactly like a display overwriting its pixmap.
type frameSink struct {
	ch chan []byte
}

func newFrameSink() frameSink {
	return frameSink{ch: make(chan []byte, 1)}
}

func (s frameSink) put(frame []byte) {
	for {
		select {
		case s.ch <- frame:
			return
		default:
			select {
			case <-s.ch: // discard the stale frame
			default:
			}
		}
	}
}

// PreviewReceiver binds the preview datagram socket and hands out the
// newest frame. Older undelivered frames are discarded.
type PreviewReceiver struct {
	path string
	sink frameSink
}

// NewPreviewReceiver prepares a receiver for the given socket path.
func NewPreviewReceiver(path string) *PreviewReceiver {
	return &PreviewReceiver{path: path, sink: newFrameSink()}
}

// Frames returns the channel carrying the newest preview frame.
func (r *PreviewReceiver) Frames() <-chan []byte { return r.sink.ch }

// Run binds the socket and receives frames until ctx is cancelled.
func (r *PreviewReceiver) Run(ctx context.Context) error {
	conn, err := listenDatagram(r.path)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := conn.ReadFromUnix(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if n == 0 {
			continue
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		debug.Frame("received", n)
		r.sink.put(frame)
	}
}

// StreamViewer consumes the streaming preview. On any connection failure
// it waits a fixed interval and redials, forever.
type StreamViewer struct {
	path   string
	framed bool
	sink   frameSink
}

// NewStreamViewer prepares a consumer for the stream socket. framed must
// match the sender's wire format: length-prefixed frames, or raw JPEG
// bytes whose boundaries are recovered from the SOI/EOI markers.
func NewStreamViewer(path string, framed bool) *StreamViewer {
	return &StreamViewer{path: path, framed: framed, sink: newFrameSink()}
}

// Frames returns the channel carrying the newest preview frame.
func (v *StreamViewer) Frames() <-chan []byte { return v.sink.ch }

// Run dials and reads frames until ctx is cancelled. A corrupt frame
// (short read, implausible length) drops the connection; the loop then
// redials rather than terminating.
func (v *StreamViewer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := net.Dial("unix", v.path)
		if err != nil {
			debug.Retry("preview dial", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(streamRedialInterval):
			}
			continue
		}

		stop := context.AfterFunc(ctx, func() { conn.Close() })
		if v.framed {
			v.readFrames(conn)
		} else {
			v.readRawFrames(conn)
		}
		stop()
		conn.Close()
	}
}

// readFrames consumes frames from one connection until it breaks.
func (v *StreamViewer) readFrames(conn net.Conn) {
	for {
		frame, err := ReadFrame(conn)
		if err != nil {
			if errors.Is(err, ErrFrameTooLarge) {
				debug.Live("Discarding corrupt preview frame: %v", err)
			} else {
				debug.Retry("preview stream read", err)
			}
			return
		}
		debug.Frame("received", len(frame))
		v.sink.put(frame)
	}
}

// readRawFrames recovers frame boundaries from the JPEG markers of an
// unframed stream: each frame spans SOI (FF D8) through EOI (FF D9).
// Bytes before the first SOI are skipped, so joining mid-stream works.
func (v *StreamViewer) readRawFrames(conn net.Conn) {
	br := bufio.NewReaderSize(conn, 64<<10)
	var frame []byte
	var prev byte

	for {
		b, err := br.ReadByte()
		if err != nil {
			debug.Retry("preview stream read", err)
			return
		}

		if frame == nil {
			if prev == 0xff && b == 0xd8 {
				frame = []byte{0xff, 0xd8}
				prev = 0
				continue
			}
			prev = b
			continue
		}

		frame = append(frame, b)
		if prev == 0xff && b == 0xd9 {
			debug.Frame("received", len(frame))
			v.sink.put(frame)
			frame, prev = nil, 0
			continue
		}
		if len(frame) > MaxFrameSize {
			debug.Live("Discarding preview bytes: no frame end within %d bytes", MaxFrameSize)
			frame, prev = nil, 0
			continue
		}
		prev = b
	}
}
