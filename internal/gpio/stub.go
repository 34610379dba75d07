//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealLines is not available on non-Linux platforms.
type RealLines struct{}

// NewRealLines returns an error on non-Linux platforms.
func NewRealLines(chipName string, config map[Pin]LineConfig) (*RealLines, error) {
	return nil, errUnsupported
}

// Wake never fires on non-Linux platforms.
func (r *RealLines) Wake() <-chan struct{} { return nil }

// RequestButton is not implemented on non-Linux platforms.
func (r *RealLines) RequestButton(p Pin, wake bool) error { return errUnsupported }

// RequestLED is not implemented on non-Linux platforms.
func (r *RealLines) RequestLED(p Pin) error { return errUnsupported }

// Pressed is not implemented on non-Linux platforms.
func (r *RealLines) Pressed(p Pin) (bool, error) { return false, errUnsupported }

// SetLED is not implemented on non-Linux platforms.
func (r *RealLines) SetLED(p Pin, on bool) error { return errUnsupported }

// LED is not implemented on non-Linux platforms.
func (r *RealLines) LED(p Pin) (bool, error) { return false, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (r *RealLines) Close() error { return nil }
