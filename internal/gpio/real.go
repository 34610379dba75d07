//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLines drives switch positions through the Linux GPIO character device.
type RealLines struct {
	chip   *gpiocdev.Chip
	config map[Pin]LineConfig
	lines  map[Pin]*gpiocdev.Line
	wake   chan struct{}
}

// NewRealLines opens chip. Lines are requested as the board registers them.
func NewRealLines(chipName string, config map[Pin]LineConfig) (*RealLines, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealLines{
		chip:   chip,
		config: config,
		lines:  make(map[Pin]*gpiocdev.Line),
		wake:   make(chan struct{}, 1),
	}, nil
}

// Wake delivers a value whenever an edge is seen on a wake button. Edges
// arriving while a value is pending are merged.
func (r *RealLines) Wake() <-chan struct{} {
	return r.wake
}

func (r *RealLines) lineConfig(p Pin) (LineConfig, error) {
	cfg, ok := r.config[p]
	if !ok {
		return LineConfig{}, fmt.Errorf("%w: %s", ErrUnknownPin, p)
	}
	return cfg, nil
}

// RequestButton requests the line as an input with pull-up bias. Wake
// buttons also get both-edge detection.
func (r *RealLines) RequestButton(p Pin, wake bool) error {
	cfg, err := r.lineConfig(p)
	if err != nil {
		return err
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	if wake {
		opts = append(opts,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
				select {
				case r.wake <- struct{}{}:
				default:
				}
			}))
	}

	line, err := r.chip.RequestLine(cfg.Offset, opts...)
	if err != nil {
		return fmt.Errorf("request button line %d: %w", cfg.Offset, err)
	}
	r.lines[p] = line
	return nil
}

// RequestLED requests the line as an output, initially inactive.
func (r *RealLines) RequestLED(p Pin) error {
	cfg, err := r.lineConfig(p)
	if err != nil {
		return err
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := r.chip.RequestLine(cfg.Offset, opts...)
	if err != nil {
		return fmt.Errorf("request led line %d: %w", cfg.Offset, err)
	}
	r.lines[p] = line
	return nil
}

func (r *RealLines) line(p Pin) (*gpiocdev.Line, error) {
	line, ok := r.lines[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, p)
	}
	return line, nil
}

// Pressed reads a button. Active-low inversion is done by the kernel.
func (r *RealLines) Pressed(p Pin) (bool, error) {
	line, err := r.line(p)
	if err != nil {
		return false, err
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", p, err)
	}
	return v == 1, nil
}

// SetLED drives an LED.
func (r *RealLines) SetLED(p Pin, on bool) error {
	line, err := r.line(p)
	if err != nil {
		return err
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}
	return nil
}

// LED reads back an LED output.
func (r *RealLines) LED(p Pin) (bool, error) {
	line, err := r.line(p)
	if err != nil {
		return false, err
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("sense %s: %w", p, err)
	}
	return v == 1, nil
}

// Close releases GPIO resources.
// LEDs are switched off and every line is returned to an input with pull-up
// before closing, so nothing is left driven across a reboot.
func (r *RealLines) Close() error {
	var errs []error

	for p, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", p, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p, err))
		}
	}
	r.lines = make(map[Pin]*gpiocdev.Line)

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
