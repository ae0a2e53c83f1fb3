package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"photobooth/internal/config"
	"photobooth/internal/debug"
	"photobooth/internal/hw/camera"
	"photobooth/internal/ipc"
	"photobooth/internal/web"
)

func main() {
	// CLI flags
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	mock := flag.Bool("mock", false, "use the mock camera device instead of the configured driver")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Initialize camera session
	debug.Step(1, "Opening camera session")
	dev, err := newDeviceFromConfig(cfg, *mock)
	if err != nil {
		log.Fatalf("init camera failed: %v", err)
	}
	session := camera.NewSession(dev, cfg.Camera.CaptureDir)
	if err := session.Open(ctx); err != nil {
		log.Fatalf("open camera session failed: %v", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("closing camera session failed: %v", err)
		}
	}()

	// Initialize preview transport
	debug.Step(2, "Starting preview transport")
	debug.Value("Preview mode", cfg.Sockets.PreviewMode)
	transport, err := newPreviewTransport(cfg)
	if err != nil {
		log.Fatalf("init preview transport failed: %v", err)
	}
	if err := transport.Start(ctx); err != nil {
		log.Fatalf("start preview transport failed: %v", err)
	}

	// Capture requests arrive as control datagrams; each one produces a
	// still and announces its path on the result socket.
	debug.Step(3, "Binding control socket")
	results := ipc.NewResultSender(cfg.Sockets.Result)
	listener := ipc.NewControlListener(cfg.Sockets.Control, func() {
		res, err := session.CaptureStill(ctx)
		if err != nil {
			debug.Error(fmt.Errorf("capture still: %w", err))
			return
		}
		results.Send(res.Path)
	})

	errCh := make(chan error, 2)
	go func() { errCh <- listener.Run(ctx) }()
	go func() { errCh <- pumpPreview(ctx, session, transport, cfg.PreviewInterval()) }()

	debug.Section("Serving")
	if err := <-errCh; err != nil && ctx.Err() == nil {
		log.Fatalf("booth daemon: %v", err)
	}
	cancel()
}

// pumpPreview feeds live view frames to the transport at the configured
// interval. Preview pauses automatically while a still capture holds the
// camera. A terminal transport error (e.g. the viewer is gone for good)
// takes the daemon down.
func pumpPreview(ctx context.Context, session *camera.Session, transport ipc.PreviewTransport, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			frame, err := session.CapturePreview(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				debug.Error(fmt.Errorf("capture preview: %w", err))
				continue
			}
			if err := transport.SendFrame(frame); err != nil {
				return fmt.Errorf("preview transport: %w", err)
			}
		}
	}
}

// newDeviceFromConfig selects a camera device implementation based on
// configuration; -mock forces the mock device for bench testing.
func newDeviceFromConfig(cfg *config.Config, forceMock bool) (camera.Device, error) {
	driver := cfg.Camera.Driver
	if forceMock {
		driver = config.DriverMock
	}
	switch driver {
	case config.DriverGPhoto2:
		return camera.NewGPhoto2Device("gphoto2"), nil
	case config.DriverMock:
		return camera.NewMockDevice(), nil
	default:
		return nil, fmt.Errorf("unsupported camera driver: %s", driver)
	}
}

// newPreviewTransport selects the preview delivery mechanism. The unix
// socket variants talk to the booth front-end; http serves MJPEG to any
// browser on the local network.
func newPreviewTransport(cfg *config.Config) (ipc.PreviewTransport, error) {
	switch cfg.Sockets.PreviewMode {
	case config.PreviewDatagram:
		return ipc.NewDatagramPreview(cfg.Sockets.Preview), nil
	case config.PreviewStream:
		return ipc.NewStreamPreview(cfg.Sockets.Preview, false), nil
	case config.PreviewStreamFramed:
		return ipc.NewStreamPreview(cfg.Sockets.Preview, true), nil
	case config.PreviewHTTP:
		return web.NewPreviewServer(cfg.Sockets.HTTPAddr, web.NewFrameBroadcaster()), nil
	default:
		return nil, fmt.Errorf("unsupported preview mode: %s", cfg.Sockets.PreviewMode)
	}
}
