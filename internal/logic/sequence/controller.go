// Package sequence drives one guided photo session from idle through
// countdown, capture, compositing, print-count selection and print
// submission, then back to idle.
package sequence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"photobooth/internal/debug"
	"photobooth/internal/hw/panel"
	"photobooth/internal/logic/printer"
	"photobooth/internal/logic/strip"
)

// Trigger requests one still capture from the camera service.
type Trigger interface {
	RequestCapture() error
}

// ResultWaiter blocks for the next capture result. ok is false on
// timeout; the slot is then recorded as missing.
type ResultWaiter interface {
	WaitResult(timeout time.Duration) (path string, ok bool)
}

// resultDrainer discards results queued from earlier, abandoned waits.
type resultDrainer interface {
	Drain(ctx context.Context)
}

// Display is the rendering surface the sequence writes countdowns and
// status text to. Widget layout is the GUI's problem, not ours.
type Display interface {
	// Overlay replaces the centered overlay text and the top-left
	// indicator. Empty strings clear them.
	Overlay(text, topLeft string)
}

// Params configures one controller. Tick/iteration knobs exist so tests
// can run the state machine in milliseconds; production uses defaults.
type Params struct {
	ShotsPerStrip    int
	CountdownSeconds int
	ShotDelay        time.Duration // inter-shot delay, runs concurrently with the result wait
	CaptureTimeout   time.Duration // bounded wait on the result channel
	PrintDwell       time.Duration // dwell after the print phase

	CountdownTick time.Duration // 1s per countdown digit
	SelectTick    time.Duration // print-select poll interval (100ms)
	SelectIters   int           // print-select iterations (200 ≈ 20s)
	InitialCopies int           // print-select starting copy count (2)
	MaxCopies     int           // copy cap (6)

	Backgrounds []string
	Layout      strip.Layout
}

func (p *Params) applyDefaults() {
	if p.CountdownTick <= 0 {
		p.CountdownTick = time.Second
	}
	if p.SelectTick <= 0 {
		p.SelectTick = 100 * time.Millisecond
	}
	if p.SelectIters <= 0 {
		p.SelectIters = 200
	}
	if p.InitialCopies <= 0 {
		p.InitialCopies = 2
	}
	if p.MaxCopies <= 0 {
		p.MaxCopies = 6
	}
}

// Controller owns one sequence at a time. All collaborators are injected;
// the controller holds no device or socket state of its own.
type Controller struct {
	params  Params
	trigger Trigger
	results ResultWaiter
	display Display
	printer printer.Printer
	lamp    panel.Lamp

	clicks *ClickQueue
	permit *Permit

	// pickBackground pins background selection in tests; nil = uniform.
	pickBackground func(n int) int
}

// NewController wires a controller over its collaborators.
func NewController(params Params, trigger Trigger, results ResultWaiter, display Display, prt printer.Printer, lamp panel.Lamp) *Controller {
	params.applyDefaults()
	if lamp == nil {
		lamp = panel.NopLamp{}
	}
	return &Controller{
		params:  params,
		trigger: trigger,
		results: results,
		display: display,
		printer: prt,
		lamp:    lamp,
		clicks:  NewClickQueue(),
		permit:  NewPermit(),
	}
}

// Clicks exposes the queue so producers (touch surface, booth button)
// can feed presses in.
func (c *Controller) Clicks() *ClickQueue { return c.clicks }

// HandleClick is the idle→active transition. If no sequence is running
// the click starts one in its own goroutine; otherwise the click is
// buffered for the print-select phase of the running sequence.
func (c *Controller) HandleClick(ctx context.Context, click Click) {
	if !c.permit.TryAcquire() {
		debug.Verbose("Click while sequence active, queued")
		c.clicks.Push(click)
		return
	}
	go func() {
		defer c.permit.Release()
		if err := c.runSequence(ctx); err != nil {
			debug.Error(fmt.Errorf("sequence aborted: %w", err))
		}
	}()
}

// runSequence executes one full session. The only error it can return is
// ctx cancellation: every other failure is a gap in the strip, never an
// abort.
func (c *Controller) runSequence(ctx context.Context) error {
	debug.Section("Sequence start")

	photos, err := c.capturePhase(ctx)
	if err != nil {
		return err
	}

	debug.Phase("Compositing")
	background := strip.ChooseBackground(c.params.Backgrounds, c.pickBackground)
	ps := strip.New(photos, background, c.params.Layout)
	if _, err := ps.MakePrintable(); err != nil {
		// A broken background or unreadable capture should not strand the
		// booth mid-sequence; the session ends without a sheet.
		debug.Error(fmt.Errorf("compositing failed: %w", err))
		c.display.Overlay("", "")
		return nil
	}

	copies := c.printSelectPhase(ctx)

	debug.Phase("Printing")
	if copies > 0 {
		if err := c.printer.Submit(c.params.Layout.OutputPath, copies); err != nil {
			debug.Error(fmt.Errorf("print submission: %w", err))
		}
	}
	c.display.Overlay("", "")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.params.PrintDwell):
	}

	debug.Section("Sequence complete")
	return nil
}

// capturePhase runs countdown and capture for every shot. The returned
// slice always has ShotsPerStrip entries; a timed-out shot leaves its
// slot empty so the compositor keeps later photos in position.
func (c *Controller) capturePhase(ctx context.Context) ([]string, error) {
	n := c.params.ShotsPerStrip
	photos := make([]string, n)

	for i := 0; i < n; i++ {
		topLeft := fmt.Sprintf("%d/%d", i+1, n)

		debug.Phase(debug.Fmt("Countdown(%d)", i))
		_ = c.lamp.On()
		for count := c.params.CountdownSeconds; count >= 1; count-- {
			c.display.Overlay(strconv.Itoa(count), topLeft)
			select {
			case <-ctx.Done():
				_ = c.lamp.Off()
				return nil, ctx.Err()
			case <-time.After(c.params.CountdownTick):
			}
		}
		c.display.Overlay("", topLeft)

		debug.Phase(debug.Fmt("Capturing(%d)", i))
		if d, ok := c.results.(resultDrainer); ok {
			// A late result from an earlier timed-out shot must not pair
			// with this trigger.
			d.Drain(ctx)
		}
		if err := c.trigger.RequestCapture(); err != nil {
			debug.Error(fmt.Errorf("capture trigger: %w", err))
		}

		// The inter-shot delay runs concurrently with the result wait, so
		// waiting per shot costs max(delay, capture latency), not their sum.
		delay := time.After(c.params.ShotDelay)

		if path, ok := c.results.WaitResult(c.params.CaptureTimeout); ok {
			photos[i] = path
			debug.Shot(i, n, path)
		} else {
			debug.Live("Shot %d/%d missed (capture timeout)", i+1, n)
		}
		_ = c.lamp.Off()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-delay:
		}
	}
	return photos, nil
}

// printSelectPhase runs the copy-count selection loop: poll the click
// queue each tick, interpret clicks by screen position, stop early on a
// confirming click or when the iteration budget runs out.
//
// Clicks buffered during earlier phases are discarded first so a guest
// tapping through the countdown cannot change the copy count.
func (c *Controller) printSelectPhase(ctx context.Context) int {
	if dropped := c.clicks.Drain(); dropped > 0 {
		debug.Verbose("Discarded %d stale clicks before print select", dropped)
	}

	debug.Phase("PrintSelect")
	copies := c.params.InitialCopies

	for iter := 0; iter < c.params.SelectIters; iter++ {
		if ctx.Err() != nil {
			return copies
		}

		remaining := time.Duration(c.params.SelectIters-iter) * c.params.SelectTick
		c.display.Overlay(
			fmt.Sprintf("%d copies", copies),
			fmt.Sprintf("%ds", int(remaining.Seconds())),
		)

		click, ok := c.clicks.Poll(c.params.SelectTick)
		if !ok {
			continue
		}
		// Only the middle band of the screen is a copy-count control.
		if click.Y <= 0.3 || click.Y >= 0.7 {
			continue
		}

		switch {
		case click.X > 0.55:
			copies = min(copies+2, c.params.MaxCopies)
			debug.Live("Copies incremented to %d", copies)
		case click.X < 0.45:
			copies = max(copies-2, 0)
			debug.Live("Copies decremented to %d", copies)
		default:
			debug.Live("Copy count confirmed: %d", copies)
			return copies
		}
	}

	debug.Live("Print select timed out, proceeding with %d copies", copies)
	return copies
}
