package camera

// Device is the capability set the booth needs from a camera, regardless of
// how it is attached (gphoto2 CLI, mock, ...). Implementations talk to the
// actual driver; everything above them only sees these four operations.
//
// Every operation may fail transiently; the Session owns the retry policy.
type Device interface {
	// Init (re)establishes the device session. Called at startup and again
	// whenever another operation reports an error.
	Init() error

	// CaptureStill takes a full-resolution photo and stores it at dst.
	CaptureStill(dst string) error

	// CapturePreview returns one JPEG-encoded live-view frame.
	CapturePreview() ([]byte, error)

	// Close releases the device.
	Close() error
}
