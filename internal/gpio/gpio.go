// Package gpio provides button inputs and LED outputs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
//
// The board has a fixed set of switch positions. Each position is a single
// GPIO line used either as a button input or as an LED output, never both.
package gpio

import (
	"errors"
	"fmt"
)

// Pin identifies a switch position on the board.
type Pin int

// Switch positions.
const (
	Switch1 Pin = iota + 1
	Switch2
	Switch3
	Switch4
)

// Pins lists every switch position in order.
var Pins = []Pin{Switch1, Switch2, Switch3, Switch4}

func (p Pin) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Pin(%d)", int(p))
	}
	return fmt.Sprintf("SW%d", int(p))
}

// Valid reports whether p is one of the board's switch positions.
func (p Pin) Valid() bool {
	return p >= Switch1 && p <= Switch4
}

var (
	// ErrUnknownPin is returned for a pin that is not a switch position or has
	// no line configured.
	ErrUnknownPin = errors.New("gpio: unknown pin")

	// ErrPinInUse is returned when a pin is registered as both button and LED.
	ErrPinInUse = errors.New("gpio: pin already registered with another role")

	// ErrNotRegistered is returned when using a pin that was never registered
	// for the requested role.
	ErrNotRegistered = errors.New("gpio: pin not registered")
)

// Lines is the physical I/O underneath a Board.
type Lines interface {
	// RequestButton configures p as a button input. If wake is true, edges on
	// the line are reported so a suspended loop can be woken.
	RequestButton(p Pin, wake bool) error

	// RequestLED configures p as an LED output, initially off.
	RequestLED(p Pin) error

	// Pressed returns the logical button state (true = pressed).
	Pressed(p Pin) (bool, error)

	// SetLED drives the LED.
	SetLED(p Pin, on bool) error

	// LED senses the current LED output.
	LED(p Pin) (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// LineConfig maps a switch position to a GPIO line offset.
type LineConfig struct {
	Offset    int
	ActiveLow bool
}

// DefaultLines is the BCM wiring of the reference board. Buttons pull the
// line to ground.
var DefaultLines = map[Pin]LineConfig{
	Switch1: {Offset: 17, ActiveLow: true},
	Switch2: {Offset: 27},
	Switch3: {Offset: 22},
	Switch4: {Offset: 23, ActiveLow: true},
}
