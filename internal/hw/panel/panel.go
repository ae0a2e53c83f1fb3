package panel

import (
	"context"
	"time"

	"photobooth/internal/debug"
	"photobooth/internal/hw/gpio"
)

// Lamp is the booth ready-light, lit while a countdown is running so
// guests know where to look.
type Lamp interface {
	On() error
	Off() error
}

// Panel wraps the physical booth panel: one arcade button wired to a GPIO
// input (active LOW, pin pulled up) and one lamp on a GPIO output.
type Panel struct {
	gpio      gpio.Driver
	buttonPin int
	lampPin   int
	poll      time.Duration
	onPress   func()
}

// NewPanel configures the panel pins and registers the button callback.
// onPress fires once per press (on the High→Low edge), not while held.
func NewPanel(g gpio.Driver, buttonPin, lampPin int, onPress func()) *Panel {
	_ = g.SetupPin(buttonPin, gpio.Input)
	_ = g.SetupPin(lampPin, gpio.Output)
	_ = g.WritePin(lampPin, gpio.Low)

	return &Panel{
		gpio:      g,
		buttonPin: buttonPin,
		lampPin:   lampPin,
		poll:      20 * time.Millisecond,
		onPress:   onPress,
	}
}

// On lights the lamp.
func (p *Panel) On() error {
	return p.gpio.WritePin(p.lampPin, gpio.High)
}

// Off extinguishes the lamp.
func (p *Panel) Off() error {
	return p.gpio.WritePin(p.lampPin, gpio.Low)
}

// Watch polls the button until ctx is cancelled, firing onPress on each
// falling edge. Run it in its own goroutine.
func (p *Panel) Watch(ctx context.Context) {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	last := gpio.High
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			level, err := p.gpio.ReadPin(p.buttonPin)
			if err != nil {
				debug.Retry("button read", err)
				continue
			}
			if last == gpio.High && level == gpio.Low {
				debug.Live("Panel button pressed")
				if p.onPress != nil {
					p.onPress()
				}
			}
			last = level
		}
	}
}

// NopLamp is a Lamp for setups without a panel.
type NopLamp struct{}

func (NopLamp) On() error  { return nil }
func (NopLamp) Off() error { return nil }
