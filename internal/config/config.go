package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Preview transport modes.
const (
	PreviewDatagram     = "datagram"      // one JPEG per unix datagram, fire-and-forget
	PreviewStream       = "stream"        // raw JPEG writes on a unix stream socket
	PreviewStreamFramed = "stream_framed" // 4-byte big-endian length prefix per frame
	PreviewHTTP         = "http"          // MJPEG over HTTP
)

// Photostrip layout modes.
const (
	StripSingleVertical = "single_vertical" // one column of thumbnails
	StripDoubleVertical = "double_vertical" // each photo pasted twice, side by side
)

// Camera driver selection.
const (
	DriverGPhoto2 = "gphoto2"
	DriverMock    = "mock"
)

// SocketsConfig names the three IPC channels between boothd and the front-end.
type SocketsConfig struct {
	Control     string `yaml:"control"`      // capture trigger datagrams (boothd binds)
	Result      string `yaml:"result"`       // capture result paths (front-end binds)
	Preview     string `yaml:"preview"`      // preview frames (owner depends on mode)
	PreviewMode string `yaml:"preview_mode"` // datagram | stream | stream_framed | http
	HTTPAddr    string `yaml:"http_addr"`    // listen address for preview_mode=http
}

// CameraConfig describes the camera-control service side.
type CameraConfig struct {
	Driver            string `yaml:"driver"`              // "gphoto2" or "mock"
	CaptureDir        string `yaml:"capture_dir"`         // where captured stills land
	PreviewIntervalMs int    `yaml:"preview_interval_ms"` // throttle between preview frames
}

// BoothConfig drives the sequence state machine.
type BoothConfig struct {
	ShotsPerStrip    int    `yaml:"shots_per_strip"`
	CountdownSeconds int    `yaml:"countdown_seconds"`
	ShotDelayMs      int    `yaml:"shot_delay_ms"`      // inter-shot delay
	CaptureTimeoutMs int    `yaml:"capture_timeout_ms"` // wait on the result channel
	PrintDwellS      int    `yaml:"print_dwell_s"`      // display dwell after printing
	PrintCommand     string `yaml:"print_command"`      // e.g. "lp"
	PrintTarget      string `yaml:"print_target"`       // e.g. "-d selphy"
}

// StripConfig holds the photostrip layout parameters.
type StripConfig struct {
	Mode        string   `yaml:"mode"` // single_vertical | double_vertical
	Backgrounds []string `yaml:"backgrounds"`
	ThumbWidth  int      `yaml:"thumb_width"`
	OffsetX     int      `yaml:"offset_x"` // horizontal offset of the first column
	OffsetY     int      `yaml:"offset_y"` // vertical offset of the first row
	SkipX       int      `yaml:"skip_x"`   // gap between columns (double_vertical)
	SkipY       int      `yaml:"skip_y"`   // gap between stacked thumbnails
	MarginTop   int      `yaml:"margin_top"`
	MarginRight int      `yaml:"margin_right"`
	MarginBot   int      `yaml:"margin_bottom"`
	MarginLeft  int      `yaml:"margin_left"`
	OutputPath  string   `yaml:"output_path"` // printable sheet, overwritten per sequence
}

// PanelConfig describes the physical booth panel (button + lamp).
type PanelConfig struct {
	MockGPIO  bool `yaml:"mock_gpio"` // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	ButtonPin int  `yaml:"button_pin"`
	LampPin   int  `yaml:"lamp_pin"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Sockets  SocketsConfig  `yaml:"sockets"`
	Camera   CameraConfig   `yaml:"camera"`
	Booth    BoothConfig    `yaml:"booth"`
	Strip    StripConfig    `yaml:"strip"`
	Panel    PanelConfig    `yaml:"panel"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
// Validation is eager: a missing required field or an invalid enumerated
// value is an error here, never a degraded startup later.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Defaults first, so validation judges the values the program will
	// actually run with.
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Sockets.PreviewMode {
	case "", PreviewDatagram, PreviewStream, PreviewStreamFramed, PreviewHTTP:
	default:
		return fmt.Errorf("sockets.preview_mode must be one of datagram, stream, stream_framed, http; got %q", c.Sockets.PreviewMode)
	}
	if c.Sockets.PreviewMode == PreviewHTTP && c.Sockets.HTTPAddr == "" {
		return fmt.Errorf("sockets.http_addr is required for preview_mode=http")
	}

	switch c.Camera.Driver {
	case "", DriverGPhoto2, DriverMock:
	default:
		return fmt.Errorf("camera.driver must be %q or %q, got %q", DriverGPhoto2, DriverMock, c.Camera.Driver)
	}

	if c.Booth.ShotsPerStrip < 1 || c.Booth.ShotsPerStrip > 8 {
		return fmt.Errorf("booth.shots_per_strip must be between 1 and 8, got %d", c.Booth.ShotsPerStrip)
	}

	switch c.Strip.Mode {
	case "", StripSingleVertical, StripDoubleVertical:
	default:
		return fmt.Errorf("strip.mode must be %q or %q, got %q", StripSingleVertical, StripDoubleVertical, c.Strip.Mode)
	}
	if len(c.Strip.Backgrounds) == 0 {
		return fmt.Errorf("strip.backgrounds requires at least one background image")
	}
	if c.Strip.ThumbWidth <= 0 {
		return fmt.Errorf("strip.thumb_width must be > 0, got %d", c.Strip.ThumbWidth)
	}
	if c.Strip.SkipX < 0 || c.Strip.SkipY < 0 {
		return fmt.Errorf("strip.skip_x and strip.skip_y must be >= 0")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Sockets.Control == "" {
		c.Sockets.Control = "control.sock"
	}
	if c.Sockets.Result == "" {
		c.Sockets.Result = "capture.sock"
	}
	if c.Sockets.Preview == "" {
		c.Sockets.Preview = "preview.sock"
	}
	if c.Sockets.PreviewMode == "" {
		c.Sockets.PreviewMode = PreviewDatagram
	}

	if c.Camera.Driver == "" {
		c.Camera.Driver = DriverGPhoto2
	}
	if c.Camera.CaptureDir == "" {
		c.Camera.CaptureDir = os.TempDir()
	}
	if c.Camera.PreviewIntervalMs <= 0 {
		c.Camera.PreviewIntervalMs = 50
	}

	if c.Booth.ShotsPerStrip == 0 {
		c.Booth.ShotsPerStrip = 4
	}
	if c.Booth.CountdownSeconds <= 0 {
		c.Booth.CountdownSeconds = 3
	}
	if c.Booth.ShotDelayMs <= 0 {
		c.Booth.ShotDelayMs = 3000
	}
	if c.Booth.CaptureTimeoutMs <= 0 {
		c.Booth.CaptureTimeoutMs = 10000
	}
	if c.Booth.PrintDwellS <= 0 {
		c.Booth.PrintDwellS = 5
	}
	if c.Booth.PrintCommand == "" {
		c.Booth.PrintCommand = "lp"
	}

	if c.Strip.Mode == "" {
		c.Strip.Mode = StripSingleVertical
	}
	if c.Strip.ThumbWidth == 0 {
		c.Strip.ThumbWidth = 800
	}
	if c.Strip.OutputPath == "" {
		c.Strip.OutputPath = "photostrip.png"
	}
}

// PreviewInterval returns the throttle between preview frames.
func (c *Config) PreviewInterval() time.Duration {
	return time.Duration(c.Camera.PreviewIntervalMs) * time.Millisecond
}

// ShotDelay returns the configured inter-shot delay.
func (c *Config) ShotDelay() time.Duration {
	return time.Duration(c.Booth.ShotDelayMs) * time.Millisecond
}

// CaptureTimeout returns the bounded wait for a capture result.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Booth.CaptureTimeoutMs) * time.Millisecond
}

// PrintDwell returns the display dwell after the print phase.
func (c *Config) PrintDwell() time.Duration {
	return time.Duration(c.Booth.PrintDwellS) * time.Second
}
