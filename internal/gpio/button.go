package gpio

import "time"

// PressMode selects when a short press is reported.
type PressMode int

const (
	// ShortPressReleased reports a short press when the button is released
	// before the long-press threshold.
	ShortPressReleased PressMode = iota
	// ShortPressPressed reports a short press as soon as the button goes down.
	ShortPressPressed
)

type shortHandler struct {
	mode PressMode
	fn   func()
}

type thresholdHandler struct {
	threshold time.Duration
	fn        func()
}

// button classifies debounced samples of one input into short presses,
// long presses and hold re-fires.
type button struct {
	debounce time.Duration

	// Debounce state, same scheme as a single detector channel: a raw
	// change must persist for the debounce duration to be accepted.
	stable       bool
	pending      bool
	pendingSince time.Time
	hasPending   bool

	pressedAt  time.Time
	longFired  bool
	holdsFired int

	short *shortHandler
	long  *thresholdHandler
	hold  *thresholdHandler
}

// sample feeds one raw reading taken at now.
func (b *button) sample(pressed bool, now time.Time) {
	if pressed == b.stable {
		b.hasPending = false
	} else if !b.hasPending || b.pending != pressed {
		b.pending = pressed
		b.pendingSince = now
		b.hasPending = true
	}

	if b.hasPending && now.Sub(b.pendingSince) >= b.debounce {
		b.hasPending = false
		b.stable = pressed
		if pressed {
			b.press(now)
		} else {
			b.release(now)
		}
	}

	if b.stable {
		b.held(now)
	}
}

func (b *button) press(now time.Time) {
	b.pressedAt = now
	b.longFired = false
	b.holdsFired = 0
	if b.short != nil && b.short.mode == ShortPressPressed {
		b.short.fn()
	}
}

func (b *button) release(now time.Time) {
	if b.short == nil || b.short.mode != ShortPressReleased {
		return
	}
	if b.longFired || b.holdsFired > 0 {
		return
	}
	if limit := b.shortLimit(); limit > 0 && now.Sub(b.pressedAt) >= limit {
		return
	}
	b.short.fn()
}

// held fires the long-press callback once the threshold is crossed, then one
// hold callback per elapsed hold threshold. Long press goes first when both
// cross on the same sample.
func (b *button) held(now time.Time) {
	d := now.Sub(b.pressedAt)
	if b.long != nil && !b.longFired && d >= b.long.threshold {
		b.longFired = true
		b.long.fn()
	}
	if b.hold != nil && b.hold.threshold > 0 {
		n := int(d / b.hold.threshold)
		for b.holdsFired < n {
			b.holdsFired++
			b.hold.fn()
		}
	}
}

// shortLimit is the press duration beyond which a release no longer counts
// as a short press. Zero means no limit.
func (b *button) shortLimit() time.Duration {
	var limit time.Duration
	if b.long != nil {
		limit = b.long.threshold
	}
	if b.hold != nil && (limit == 0 || b.hold.threshold < limit) {
		limit = b.hold.threshold
	}
	return limit
}

// busy reports whether the button needs further polling: it is down or a
// change is still being debounced.
func (b *button) busy() bool {
	return b.stable || b.hasPending
}
