package gpio

import "fmt"

// FakeLines is a test double that records LED writes and returns scripted
// button states.
type FakeLines struct {
	// Buttons holds the logical pressed state returned by Pressed.
	Buttons map[Pin]bool

	// LEDs holds the current LED output.
	LEDs map[Pin]bool

	// LEDWrites counts SetLED calls per pin.
	LEDWrites map[Pin]int

	// LEDOffWrites counts SetLED(p, false) calls per pin.
	LEDOffWrites map[Pin]int

	// Wake records which buttons were requested as wake sources.
	Wake map[Pin]bool

	// Requested records the role each pin was requested with ("button" or "led").
	Requested map[Pin]string

	// ReadError, if set, will be returned by Pressed.
	ReadError error

	// WriteError, if set, will be returned by SetLED.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeLines creates a FakeLines with every button released and LED off.
func NewFakeLines() *FakeLines {
	return &FakeLines{
		Buttons:      make(map[Pin]bool),
		LEDs:         make(map[Pin]bool),
		LEDWrites:    make(map[Pin]int),
		LEDOffWrites: make(map[Pin]int),
		Wake:         make(map[Pin]bool),
		Requested:    make(map[Pin]string),
	}
}

// RequestButton records the request.
func (f *FakeLines) RequestButton(p Pin, wake bool) error {
	f.Requested[p] = "button"
	f.Wake[p] = wake
	return nil
}

// RequestLED records the request and turns the LED off.
func (f *FakeLines) RequestLED(p Pin) error {
	f.Requested[p] = "led"
	f.LEDs[p] = false
	return nil
}

// Pressed returns the scripted button state.
func (f *FakeLines) Pressed(p Pin) (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if f.Requested[p] != "button" {
		return false, fmt.Errorf("%w: %s", ErrUnknownPin, p)
	}
	return f.Buttons[p], nil
}

// SetLED records the write.
func (f *FakeLines) SetLED(p Pin, on bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.LEDs[p] = on
	f.LEDWrites[p]++
	if !on {
		f.LEDOffWrites[p]++
	}
	return nil
}

// LED returns the last written LED state.
func (f *FakeLines) LED(p Pin) (bool, error) {
	return f.LEDs[p], nil
}

// Close marks the lines as closed.
func (f *FakeLines) Close() error {
	f.Closed = true
	return nil
}

// ResetCounts clears recorded LED writes.
func (f *FakeLines) ResetCounts() {
	f.LEDWrites = make(map[Pin]int)
	f.LEDOffWrites = make(map[Pin]int)
}
