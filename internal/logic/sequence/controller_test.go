package sequence

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"photobooth/internal/logic/strip"
)

// writePNG writes a solid-color test image and returns its path.
func writePNG(t *testing.T, dir, name string, w, h int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeCamera plays both the trigger and the result channel: each
// RequestCapture produces one real PNG and announces its path, except
// for shot indexes marked missing, which simulate a capture timeout.
type fakeCamera struct {
	mu      sync.Mutex
	dir     string
	shots   int
	missing map[int]bool
	results chan string
	block   chan struct{} // non-nil: RequestCapture blocks until closed
}

func newFakeCamera(t *testing.T) *fakeCamera {
	return &fakeCamera{
		dir:     t.TempDir(),
		missing: map[int]bool{},
		results: make(chan string, 8),
	}
}

func (f *fakeCamera) RequestCapture() error {
	f.mu.Lock()
	idx := f.shots
	f.shots++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.missing[idx] {
		return nil // no result: the slot must time out
	}

	img := image.NewRGBA(image.Rect(0, 0, 80, 40))
	path := filepath.Join(f.dir, fmt.Sprintf("shot%d.png", idx))
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return err
	}
	f.results <- path
	return nil
}

func (f *fakeCamera) WaitResult(timeout time.Duration) (string, bool) {
	select {
	case path := <-f.results:
		return path, true
	case <-time.After(timeout):
		return "", false
	}
}

func (f *fakeCamera) shotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shots
}

// recordingDisplay collects overlay writes.
type recordingDisplay struct {
	mu      sync.Mutex
	entries []string
}

func (d *recordingDisplay) Overlay(text, topLeft string) {
	d.mu.Lock()
	d.entries = append(d.entries, text+"|"+topLeft)
	d.mu.Unlock()
}

func (d *recordingDisplay) saw(entry string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entries {
		if e == entry {
			return true
		}
	}
	return false
}

// recordingPrinter records submissions.
type recordingPrinter struct {
	mu     sync.Mutex
	paths  []string
	copies []int
}

func (p *recordingPrinter) Submit(sheetPath string, copies int) error {
	p.mu.Lock()
	p.paths = append(p.paths, sheetPath)
	p.copies = append(p.copies, copies)
	p.mu.Unlock()
	return nil
}

func (p *recordingPrinter) submissions() ([]string, []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...), append([]int(nil), p.copies...)
}

func testParams(t *testing.T) Params {
	dir := t.TempDir()
	bg := writePNG(t, dir, "bg.png", 200, 600, color.RGBA{R: 0xff, A: 0xff})
	return Params{
		ShotsPerStrip:    4,
		CountdownSeconds: 2,
		ShotDelay:        time.Millisecond,
		CaptureTimeout:   50 * time.Millisecond,
		PrintDwell:       time.Millisecond,
		CountdownTick:    time.Millisecond,
		SelectTick:       time.Millisecond,
		SelectIters:      20,
		Backgrounds:      []string{bg},
		Layout: strip.Layout{
			Mode:       strip.ModeSingleVertical,
			ThumbWidth: 50,
			OffsetX:    10, OffsetY: 20, SkipY: 5,
			MarginTop: 3, MarginRight: 3, MarginBottom: 3, MarginLeft: 3,
			OutputPath: filepath.Join(dir, "sheet.png"),
		},
	}
}

func newTestController(t *testing.T, params Params, cam *fakeCamera) (*Controller, *recordingDisplay, *recordingPrinter) {
	t.Helper()
	display := &recordingDisplay{}
	prt := &recordingPrinter{}
	ctl := NewController(params, cam, cam, display, prt, nil)
	return ctl, display, prt
}

func TestRunSequence_FourShotsEndToEnd(t *testing.T) {
	params := testParams(t)
	cam := newFakeCamera(t)
	ctl, display, prt := newTestController(t, params, cam)

	if err := ctl.runSequence(context.Background()); err != nil {
		t.Fatalf("runSequence: %v", err)
	}

	if cam.shotCount() != 4 {
		t.Errorf("shots = %d, want 4", cam.shotCount())
	}
	if !display.saw("2|1/4") || !display.saw("1|4/4") {
		t.Error("countdown overlays missing shot indicators")
	}
	if _, err := os.Stat(params.Layout.OutputPath); err != nil {
		t.Errorf("printable sheet not produced: %v", err)
	}

	// Nobody clicked during print select: auto-proceed with 2 copies.
	paths, copies := prt.submissions()
	if len(paths) != 1 || copies[0] != 2 {
		t.Errorf("print submissions = %v/%v, want one submission of 2 copies", paths, copies)
	}
	if !strings.HasSuffix(paths[0], "sheet.png") {
		t.Errorf("printed %q, want the output sheet", paths[0])
	}
}

func TestCapturePhase_TimeoutLeavesGapAndContinues(t *testing.T) {
	params := testParams(t)
	params.CaptureTimeout = 20 * time.Millisecond
	cam := newFakeCamera(t)
	cam.missing[1] = true
	ctl, _, _ := newTestController(t, params, cam)

	done := make(chan []string, 1)
	go func() {
		photos, err := ctl.capturePhase(context.Background())
		if err != nil {
			t.Errorf("capturePhase: %v", err)
		}
		done <- photos
	}()

	var photos []string
	select {
	case photos = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("capture phase hung on a missing result")
	}

	if len(photos) != 4 {
		t.Fatalf("len(photos) = %d, want 4 slots", len(photos))
	}
	if photos[1] != "" {
		t.Errorf("slot 1 = %q, want empty (timed out)", photos[1])
	}
	populated := 0
	seen := map[string]bool{}
	for _, p := range photos {
		if p == "" {
			continue
		}
		populated++
		if seen[p] {
			t.Errorf("duplicate capture path %q", p)
		}
		seen[p] = true
	}
	if populated != 3 {
		t.Errorf("populated slots = %d, want 3", populated)
	}
}

func TestRunSequence_TimeoutStillComposites(t *testing.T) {
	params := testParams(t)
	params.CaptureTimeout = 20 * time.Millisecond
	cam := newFakeCamera(t)
	cam.missing[2] = true
	ctl, _, _ := newTestController(t, params, cam)

	done := make(chan error, 1)
	go func() { done <- ctl.runSequence(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runSequence: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sequence hung instead of recording the gap")
	}

	if _, err := os.Stat(params.Layout.OutputPath); err != nil {
		t.Errorf("sheet missing after a gapped sequence: %v", err)
	}
}

func TestHandleClick_SecondClickIsQueuedNotASecondSequence(t *testing.T) {
	params := testParams(t)
	cam := newFakeCamera(t)
	cam.block = make(chan struct{})
	ctl, _, _ := newTestController(t, params, cam)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctl.HandleClick(ctx, Click{X: 0.5, Y: 0.5})

	// Wait until the first sequence holds the permit.
	deadline := time.Now().Add(time.Second)
	for !ctl.permit.Held() {
		if time.Now().After(deadline) {
			t.Fatal("first sequence never acquired the permit")
		}
		time.Sleep(time.Millisecond)
	}

	ctl.HandleClick(ctx, Click{X: 0.5, Y: 0.5})
	if ctl.clicks.Len() != 1 {
		t.Errorf("queued clicks = %d, want 1", ctl.clicks.Len())
	}
	if cam.shotCount() > 1 {
		t.Errorf("shots = %d; a second state machine must not have started", cam.shotCount())
	}

	close(cam.block)
}

func TestPrintSelect_StaleClicksAreDiscarded(t *testing.T) {
	params := testParams(t)
	params.SelectIters = 5
	cam := newFakeCamera(t)
	ctl, _, _ := newTestController(t, params, cam)

	// Clicks from countdown/capture phases, still buffered.
	for i := 0; i < 3; i++ {
		ctl.clicks.Push(Click{X: 0.9, Y: 0.5}) // would increment copies
	}

	copies := ctl.printSelectPhase(context.Background())
	if copies != 2 {
		t.Errorf("copies = %d, want 2 (stale clicks must not count)", copies)
	}
}

// feedClicks pushes clicks spaced out enough for the poll loop to see
// each one, after the drain at phase start has happened.
func feedClicks(ctl *Controller, clicks []Click) {
	time.Sleep(10 * time.Millisecond)
	for _, c := range clicks {
		ctl.clicks.Push(c)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPrintSelect_IncrementCapsAtSix(t *testing.T) {
	params := testParams(t)
	params.SelectIters = 2000
	cam := newFakeCamera(t)
	ctl, _, _ := newTestController(t, params, cam)

	go feedClicks(ctl, []Click{
		{X: 0.9, Y: 0.5}, // 2 -> 4
		{X: 0.9, Y: 0.5}, // 4 -> 6
		{X: 0.9, Y: 0.5}, // capped at 6
		{X: 0.5, Y: 0.5}, // confirm
	})

	if copies := ctl.printSelectPhase(context.Background()); copies != 6 {
		t.Errorf("copies = %d, want 6", copies)
	}
}

func TestPrintSelect_DecrementFloorsAtZero(t *testing.T) {
	params := testParams(t)
	params.SelectIters = 2000
	cam := newFakeCamera(t)
	ctl, _, _ := newTestController(t, params, cam)

	go feedClicks(ctl, []Click{
		{X: 0.1, Y: 0.5}, // 2 -> 0
		{X: 0.1, Y: 0.5}, // floored at 0
		{X: 0.5, Y: 0.5}, // confirm
	})

	if copies := ctl.printSelectPhase(context.Background()); copies != 0 {
		t.Errorf("copies = %d, want 0", copies)
	}
}

func TestPrintSelect_ClicksOutsideVerticalBandIgnored(t *testing.T) {
	params := testParams(t)
	params.SelectIters = 2000
	cam := newFakeCamera(t)
	ctl, _, _ := newTestController(t, params, cam)

	go feedClicks(ctl, []Click{
		{X: 0.9, Y: 0.1}, // above the band: ignored
		{X: 0.9, Y: 0.9}, // below the band: ignored
		{X: 0.5, Y: 0.5}, // confirm
	})

	if copies := ctl.printSelectPhase(context.Background()); copies != 2 {
		t.Errorf("copies = %d, want 2 (out-of-band clicks must be ignored)", copies)
	}
}

func TestPrintSelect_ConfirmExitsEarly(t *testing.T) {
	params := testParams(t)
	params.SelectIters = 100000 // far beyond the test's patience
	cam := newFakeCamera(t)
	ctl, _, _ := newTestController(t, params, cam)

	go feedClicks(ctl, []Click{{X: 0.5, Y: 0.5}})

	start := time.Now()
	ctl.printSelectPhase(context.Background())
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("confirm click did not exit the loop early (took %v)", elapsed)
	}
}

// drainingCamera adds the result-drain capability to fakeCamera.
type drainingCamera struct {
	*fakeCamera
}

func (d *drainingCamera) Drain(ctx context.Context) {
	for {
		select {
		case <-d.results:
		default:
			return
		}
	}
}

func TestCapturePhase_StaleResultNeverPairsWithATrigger(t *testing.T) {
	params := testParams(t)
	params.ShotsPerStrip = 1
	cam := &drainingCamera{newFakeCamera(t)}
	cam.results <- "/tmp/stale-from-last-sequence.jpg"

	display := &recordingDisplay{}
	ctl := NewController(params, cam, cam, display, &recordingPrinter{}, nil)

	photos, err := ctl.capturePhase(context.Background())
	if err != nil {
		t.Fatalf("capturePhase: %v", err)
	}
	if photos[0] == "/tmp/stale-from-last-sequence.jpg" {
		t.Error("stale result paired with a fresh trigger")
	}
	if photos[0] == "" {
		t.Error("fresh capture result was lost")
	}
}

func TestPermit_SingleToken(t *testing.T) {
	p := NewPermit()
	if !p.TryAcquire() {
		t.Fatal("fresh permit must be acquirable")
	}
	if p.TryAcquire() {
		t.Fatal("held permit must not be acquirable twice")
	}
	p.Release()
	if !p.TryAcquire() {
		t.Fatal("released permit must be acquirable again")
	}
}

func TestClickQueue_PushPollDrain(t *testing.T) {
	q := NewClickQueue()
	q.Push(Click{X: 0.1})
	q.Push(Click{X: 0.2})

	c, ok := q.Poll(10 * time.Millisecond)
	if !ok || c.X != 0.1 {
		t.Errorf("Poll = %v,%v; want first click", c, ok)
	}
	if n := q.Drain(); n != 1 {
		t.Errorf("Drain = %d, want 1", n)
	}
	if _, ok := q.Poll(time.Millisecond); ok {
		t.Error("Poll on drained queue reported a click")
	}
}
