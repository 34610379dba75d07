package gpio

import (
	"fmt"
	"time"
)

type role int

const (
	roleNone role = iota
	roleButton
	roleLED
)

// Board binds switch positions to roles and dispatches button callbacks.
// It is driven by Poll from the event loop and is not safe for concurrent use.
type Board struct {
	lines    Lines
	debounce time.Duration
	roles    map[Pin]role
	buttons  map[Pin]*button
}

// NewBoard creates a Board on top of lines.
func NewBoard(lines Lines, debounce time.Duration) *Board {
	return &Board{
		lines:    lines,
		debounce: debounce,
		roles:    make(map[Pin]role),
		buttons:  make(map[Pin]*button),
	}
}

// RegisterButton configures p as a button. Registering the same button twice
// is allowed; a pin already used as an LED is not.
func (b *Board) RegisterButton(p Pin, wake bool) error {
	if err := b.claim(p, roleButton); err != nil {
		return err
	}
	if _, ok := b.buttons[p]; ok {
		return nil
	}
	if err := b.lines.RequestButton(p, wake); err != nil {
		delete(b.roles, p)
		return fmt.Errorf("request button %s: %w", p, err)
	}
	b.buttons[p] = &button{debounce: b.debounce}
	return nil
}

// RegisterLED configures p as an LED output.
func (b *Board) RegisterLED(p Pin) error {
	if b.roles[p] == roleLED {
		return nil
	}
	if err := b.claim(p, roleLED); err != nil {
		return err
	}
	if err := b.lines.RequestLED(p); err != nil {
		delete(b.roles, p)
		return fmt.Errorf("request led %s: %w", p, err)
	}
	return nil
}

func (b *Board) claim(p Pin, r role) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownPin, int(p))
	}
	if cur := b.roles[p]; cur != roleNone && cur != r {
		return fmt.Errorf("%w: %s", ErrPinInUse, p)
	}
	b.roles[p] = r
	return nil
}

func (b *Board) button(p Pin) (*button, error) {
	btn, ok := b.buttons[p]
	if !ok {
		return nil, fmt.Errorf("%w: button %s", ErrNotRegistered, p)
	}
	return btn, nil
}

// OnShortPress sets the short-press callback of a registered button.
func (b *Board) OnShortPress(p Pin, mode PressMode, fn func()) error {
	btn, err := b.button(p)
	if err != nil {
		return err
	}
	btn.short = &shortHandler{mode: mode, fn: fn}
	return nil
}

// OnLongPress sets the callback fired once per press when the button has been
// held for threshold.
func (b *Board) OnLongPress(p Pin, threshold time.Duration, fn func()) error {
	btn, err := b.button(p)
	if err != nil {
		return err
	}
	btn.long = &thresholdHandler{threshold: threshold, fn: fn}
	return nil
}

// OnHold sets the callback fired every threshold while the button stays down.
func (b *Board) OnHold(p Pin, threshold time.Duration, fn func()) error {
	btn, err := b.button(p)
	if err != nil {
		return err
	}
	btn.hold = &thresholdHandler{threshold: threshold, fn: fn}
	return nil
}

// SetLED drives a registered LED.
func (b *Board) SetLED(p Pin, on bool) error {
	if b.roles[p] != roleLED {
		return fmt.Errorf("%w: led %s", ErrNotRegistered, p)
	}
	return b.lines.SetLED(p, on)
}

// LED senses a registered LED.
func (b *Board) LED(p Pin) (bool, error) {
	if b.roles[p] != roleLED {
		return false, fmt.Errorf("%w: led %s", ErrNotRegistered, p)
	}
	return b.lines.LED(p)
}

// Poll samples every registered button once and runs any callbacks that
// became due. A read error on one button does not stop the others; the first
// error is returned.
func (b *Board) Poll(now time.Time) error {
	var first error
	for _, p := range Pins {
		btn, ok := b.buttons[p]
		if !ok {
			continue
		}
		pressed, err := b.lines.Pressed(p)
		if err != nil {
			if first == nil {
				first = fmt.Errorf("read button %s: %w", p, err)
			}
			continue
		}
		btn.sample(pressed, now)
	}
	return first
}

// CanSleep reports whether no button needs polling.
func (b *Board) CanSleep() bool {
	for _, btn := range b.buttons {
		if btn.busy() {
			return false
		}
	}
	return true
}

// Close releases the underlying lines.
func (b *Board) Close() error {
	return b.lines.Close()
}
