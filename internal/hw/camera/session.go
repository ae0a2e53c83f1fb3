package camera

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"photobooth/internal/debug"
)

// Result is one completed still capture.
type Result struct {
	Path string // local file holding the full-resolution image
}

// Session owns the camera device and serializes every interaction with it.
// Still capture and preview capture never run concurrently: the session
// mutex is the sole arbiter of device access.
//
// Device errors are never surfaced to callers. Every operation retries at a
// fixed interval with no attempt cap; the passed context is the only bound.
// This trades responsiveness for availability: an unplugged camera stalls
// the booth until it comes back, it does not crash it.
type Session struct {
	dev        Device
	mu         sync.Mutex
	captureDir string

	initInterval time.Duration // wait between failed init/capture attempts
	previewRetry time.Duration // wait between failed preview attempts
}

// NewSession wraps a device. Captured stills land in captureDir under
// freshly generated names.
func NewSession(dev Device, captureDir string) *Session {
	return &Session{
		dev:          dev,
		captureDir:   captureDir,
		initInterval: time.Second,
		previewRetry: 50 * time.Millisecond,
	}
}

// Open initializes the device, retrying at a fixed interval until it
// succeeds or ctx is cancelled.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		err := s.dev.Init()
		if err == nil {
			debug.Info("Camera session open")
			return nil
		}
		debug.Retry("camera init", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.initInterval):
		}
	}
}

// CaptureStill takes one photo and copies it to a uniquely named local
// file. On device error the device is re-initialized and the whole capture
// is retried as a unit; a partially completed attempt is never resumed.
// After a successful capture the device session is re-initialized
// pre-emptively so the next capture starts from a fresh session.
func (s *Session) CaptureStill(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := filepath.Join(s.captureDir, "booth-"+uuid.NewString()+".jpg")
	// The name is fresh, but gphoto2 refuses to clobber and quick repeated
	// captures must never collide with leftovers.
	_ = os.Remove(dst)

	for {
		err := s.dev.CaptureStill(dst)
		if err == nil {
			break
		}
		debug.Retry("still capture", err)
		if err := s.reinit(ctx); err != nil {
			return Result{}, err
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}
	}

	if err := s.dev.Init(); err != nil {
		// Best effort: the retry loop on the next capture covers it.
		debug.Retry("post-capture reinit", err)
	}

	return Result{Path: dst}, nil
}

// CapturePreview returns one live-view frame, retrying at a short fixed
// interval on device error. The frame is never persisted.
func (s *Session) CapturePreview(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		data, err := s.dev.CapturePreview()
		if err == nil {
			return data, nil
		}
		debug.Retry("preview capture", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.previewRetry):
		}
	}
}

// Close releases the device.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev.Close()
}

// reinit re-establishes the device session, retrying until success or ctx
// cancellation. Caller holds the session mutex.
func (s *Session) reinit(ctx context.Context) error {
	for {
		err := s.dev.Init()
		if err == nil {
			return nil
		}
		debug.Retry("camera reinit", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.initInterval):
		}
	}
}
