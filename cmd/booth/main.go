package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"photobooth/internal/config"
	"photobooth/internal/debug"
	"photobooth/internal/hw/gpio"
	"photobooth/internal/hw/panel"
	"photobooth/internal/ipc"
	"photobooth/internal/logic/printer"
	"photobooth/internal/logic/sequence"
	"photobooth/internal/logic/strip"
)

func main() {
	// CLI flags
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	mockGPIO := flag.Bool("mock", false, "force mock GPIO (no booth panel hardware)")
	doPrint := flag.Bool("print", false, "actually submit print jobs; default logs them")
	shots := flag.Int("shots", 0, "override shots per strip; 0 means use config")
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

	// Initialize GPIO driver and booth panel
	useMock := cfg.Panel.MockGPIO || *mockGPIO
	debug.Value("Mock GPIO", useMock)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(useMock)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Initialize the IPC channels to the camera daemon
	debug.Step(2, "Connecting capture channels")
	trigger := ipc.NewControlSender(cfg.Sockets.Control)
	results, err := ipc.NewResultReceiver(cfg.Sockets.Result)
	if err != nil {
		log.Fatalf("bind result socket failed: %v", err)
	}
	defer results.Close()

	// Select printer backend
	var prt printer.Printer = printer.NopPrinter{}
	if *doPrint {
		prt = printer.NewCommandPrinter(cfg.Booth.PrintCommand, cfg.Booth.PrintTarget)
	}
	debug.Value("Printing enabled", *doPrint)

	// Build the sequence controller
	debug.Step(3, "Building sequence controller")
	params := sequence.Params{
		ShotsPerStrip:    cfg.Booth.ShotsPerStrip,
		CountdownSeconds: cfg.Booth.CountdownSeconds,
		ShotDelay:        cfg.ShotDelay(),
		CaptureTimeout:   cfg.CaptureTimeout(),
		PrintDwell:       cfg.PrintDwell(),
		Backgrounds:      cfg.Strip.Backgrounds,
		Layout:           layoutFromConfig(cfg.Strip),
	}
	if *shots > 0 {
		params.ShotsPerStrip = *shots
	}

	var ctl *sequence.Controller
	pnl := panel.NewPanel(gpioDriver, cfg.Panel.ButtonPin, cfg.Panel.LampPin, func() {
		// The arcade button counts as a click dead center on the screen:
		// it starts a sequence when idle and confirms during print select.
		ctl.HandleClick(ctx, sequence.Click{X: 0.5, Y: 0.5})
	})
	ctl = sequence.NewController(params, trigger, results, logDisplay{}, prt, pnl)

	go pnl.Watch(ctx)
	go consumePreview(ctx, cfg)

	debug.Section("Ready")
	debug.Info("Press the booth button to start a strip (%d shots)", params.ShotsPerStrip)
	<-ctx.Done()
}

// consumePreview drains live view frames from the daemon so the preview
// channel never backs up. Rendering happens elsewhere; in http mode any
// browser is the viewer and there is nothing to consume here.
func consumePreview(ctx context.Context, cfg *config.Config) {
	var frames <-chan []byte
	switch cfg.Sockets.PreviewMode {
	case config.PreviewDatagram:
		recv := ipc.NewPreviewReceiver(cfg.Sockets.Preview)
		frames = recv.Frames()
		go func() {
			if err := recv.Run(ctx); err != nil && ctx.Err() == nil {
				debug.Error(err)
			}
		}()
	case config.PreviewStream, config.PreviewStreamFramed:
		framed := cfg.Sockets.PreviewMode == config.PreviewStreamFramed
		viewer := ipc.NewStreamViewer(cfg.Sockets.Preview, framed)
		frames = viewer.Frames()
		go func() {
			if err := viewer.Run(ctx); err != nil && ctx.Err() == nil {
				debug.Error(err)
			}
		}()
	default:
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames:
			debug.Frame("recv", len(frame))
		}
	}
}

// layoutFromConfig maps the strip section onto compositor geometry.
func layoutFromConfig(s config.StripConfig) strip.Layout {
	return strip.Layout{
		Mode:         s.Mode,
		ThumbWidth:   s.ThumbWidth,
		OffsetX:      s.OffsetX,
		OffsetY:      s.OffsetY,
		SkipX:        s.SkipX,
		SkipY:        s.SkipY,
		MarginTop:    s.MarginTop,
		MarginRight:  s.MarginRight,
		MarginBottom: s.MarginBot,
		MarginLeft:   s.MarginLeft,
		OutputPath:   s.OutputPath,
	}
}

// logDisplay narrates overlay updates on the debug stream. The booth
// screen itself is driven by whatever renders the preview frames.
type logDisplay struct{}

func (logDisplay) Overlay(text, topLeft string) {
	if text == "" && topLeft == "" {
		debug.Live("Overlay cleared")
		return
	}
	debug.Live("Overlay %q (top-left %q)", text, topLeft)
}
