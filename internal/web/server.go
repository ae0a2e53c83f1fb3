package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"photobooth/internal/debug"
)

// mjpegBoundary separates frames in the multipart preview response.
const mjpegBoundary = "boothframe"

// PreviewServer is the HTTP variant of the preview transport: it serves
// the live feed as MJPEG (multipart/x-mixed-replace) on GET /preview.
type PreviewServer struct {
	addr        string
	broadcaster *FrameBroadcaster
}

// NewPreviewServer creates a server for the given address.
func NewPreviewServer(addr string, broadcaster *FrameBroadcaster) *PreviewServer {
	return &PreviewServer{
		addr:        addr,
		broadcaster: broadcaster,
	}
}

// Start runs the server in the background and returns immediately; it
// satisfies the preview-transport contract together with SendFrame.
func (s *PreviewServer) Start(ctx context.Context) error {
	go func() {
		if err := s.Run(ctx); err != nil {
			debug.Error(err)
		}
	}()
	return nil
}

// SendFrame fans one frame out to all connected MJPEG viewers.
func (s *PreviewServer) SendFrame(frame []byte) error {
	s.broadcaster.Broadcast(frame)
	return nil
}

// Mux returns an http.Handler with all routes registered.
func (s *PreviewServer) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /preview", s.handlePreview)
	return mux
}

// handlePreview streams frames to one viewer until it disconnects.
func (s *PreviewServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	w.WriteHeader(http.StatusOK)

	frames, unsub := s.broadcaster.Subscribe()
	defer unsub()
	debug.Live("MJPEG viewer connected (%d total)", s.broadcaster.Viewers())

	for {
		select {
		case <-r.Context().Done():
			debug.Live("MJPEG viewer disconnected")
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(frame)); err != nil {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *PreviewServer) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("preview server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
