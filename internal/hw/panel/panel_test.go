package panel

import (
	"context"
	"sync"
	"testing"
	"time"

	"photobooth/internal/hw/gpio"
)

// recordingDriver is a scriptable GPIO driver: reads come from a level
// sequence, writes are recorded.
type recordingDriver struct {
	mu     sync.Mutex
	setups map[int]gpio.PinMode
	writes []write
	levels []gpio.Level // consumed one per ReadPin; last value repeats
}

type write struct {
	pin   int
	level gpio.Level
}

func newRecordingDriver(levels ...gpio.Level) *recordingDriver {
	return &recordingDriver{
		setups: map[int]gpio.PinMode{},
		levels: levels,
	}
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setups[pin] = mode
	return nil
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, write{pin, level})
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.levels) == 0 {
		return gpio.High, nil
	}
	level := d.levels[0]
	if len(d.levels) > 1 {
		d.levels = d.levels[1:]
	}
	return level, nil
}

func (d *recordingDriver) Close() error { return nil }

func (d *recordingDriver) lastWrite() (write, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.writes) == 0 {
		return write{}, false
	}
	return d.writes[len(d.writes)-1], true
}

func TestNewPanel_ConfiguresPins(t *testing.T) {
	d := newRecordingDriver()
	NewPanel(d, 17, 27, nil)

	if d.setups[17] != gpio.Input {
		t.Errorf("button pin mode = %v, want Input", d.setups[17])
	}
	if d.setups[27] != gpio.Output {
		t.Errorf("lamp pin mode = %v, want Output", d.setups[27])
	}
	w, ok := d.lastWrite()
	if !ok || w.pin != 27 || w.level != gpio.Low {
		t.Errorf("lamp not initialized Low: %+v", w)
	}
}

func TestLamp_OnOff(t *testing.T) {
	d := newRecordingDriver()
	p := NewPanel(d, 17, 27, nil)

	if err := p.On(); err != nil {
		t.Fatal(err)
	}
	if w, _ := d.lastWrite(); w.pin != 27 || w.level != gpio.High {
		t.Errorf("On wrote %+v, want pin 27 High", w)
	}
	if err := p.Off(); err != nil {
		t.Fatal(err)
	}
	if w, _ := d.lastWrite(); w.pin != 27 || w.level != gpio.Low {
		t.Errorf("Off wrote %+v, want pin 27 Low", w)
	}
}

func TestWatch_FiresOncePerFallingEdge(t *testing.T) {
	// High, press (Low held for three polls), release, press again.
	d := newRecordingDriver(
		gpio.High,
		gpio.Low, gpio.Low, gpio.Low,
		gpio.High,
		gpio.Low,
		gpio.High,
	)

	presses := make(chan struct{}, 8)
	p := NewPanel(d, 17, 27, func() { presses <- struct{}{} })
	p.poll = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Watch(ctx)

	count := 0
	deadline := time.After(time.Second)
	for count < 2 {
		select {
		case <-presses:
			count++
		case <-deadline:
			t.Fatalf("saw %d presses before deadline, want 2", count)
		}
	}

	// The held Low must not have produced extra presses.
	time.Sleep(20 * time.Millisecond)
	if extra := len(presses); extra != 0 {
		t.Errorf("held button fired %d extra presses", extra)
	}
}
