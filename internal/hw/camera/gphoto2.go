package camera

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"photobooth/internal/debug"
)

// GPhoto2Device drives a PTP camera through the gphoto2 command-line tool.
// The CLI is treated as the device driver: this type only shells out and
// moves files, it knows nothing about the PTP protocol.
type GPhoto2Device struct {
	binary  string // gphoto2 executable, "gphoto2" if empty
	workDir string // scratch dir for preview frames
}

// NewGPhoto2Device creates a gphoto2-backed device.
func NewGPhoto2Device(binary string) *GPhoto2Device {
	if binary == "" {
		binary = "gphoto2"
	}
	return &GPhoto2Device{
		binary:  binary,
		workDir: os.TempDir(),
	}
}

func (d *GPhoto2Device) run(args ...string) error {
	cmd := exec.Command(d.binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w (%s)", d.binary, args, err, out)
	}
	return nil
}

// Init probes the camera. gphoto2 re-opens the USB session on every
// invocation, so a successful probe doubles as a reset.
func (d *GPhoto2Device) Init() error {
	debug.Verbose("gphoto2: probing camera")
	return d.run("--auto-detect", "--summary")
}

// CaptureStill captures a photo and downloads it to dst in one invocation.
func (d *GPhoto2Device) CaptureStill(dst string) error {
	debug.Verbose("gphoto2: capturing still to %s", dst)
	return d.run("--capture-image-and-download", "--filename", dst, "--force-overwrite")
}

// CapturePreview grabs one live-view frame and returns its bytes.
func (d *GPhoto2Device) CapturePreview() ([]byte, error) {
	tmp := filepath.Join(d.workDir, "booth-preview.jpg")
	if err := d.run("--capture-preview", "--filename", tmp, "--force-overwrite"); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("read preview frame: %w", err)
	}
	return data, nil
}

// Close is a no-op: the CLI holds no persistent session between invocations.
func (d *GPhoto2Device) Close() error { return nil }
