package logic

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/knx-actuator/internal/gpio"
)

// FlickerKind is the reset stage a flicker sequence reports.
type FlickerKind int

const (
	FlickerKNX FlickerKind = iota
	FlickerThread
)

func (k FlickerKind) String() string {
	if k == FlickerThread {
		return "thread"
	}
	return "knx"
}

// indicator is the LED shared by the flashing and flicker sequences. A
// disabled indicator swallows every write.
type indicator struct {
	board   Board
	pin     gpio.Pin
	enabled bool
}

func (i *indicator) toggle() {
	if !i.enabled {
		return
	}
	on, err := i.board.LED(i.pin)
	if err != nil {
		log.Warnf("logic: sense indicator %s: %v", i.pin, err)
		return
	}
	if err := i.board.SetLED(i.pin, !on); err != nil {
		log.Warnf("logic: set indicator %s: %v", i.pin, err)
	}
}

func (i *indicator) off() {
	if !i.enabled {
		return
	}
	if err := i.board.SetLED(i.pin, false); err != nil {
		log.Warnf("logic: clear indicator %s: %v", i.pin, err)
	}
}

// Flasher blinks the indicator until cancelled.
type Flasher struct {
	led  *indicator
	half time.Duration
}

// Step toggles the LED and always asks to run again after half a period.
func (f *Flasher) Step() (next time.Duration, cont bool) {
	f.led.toggle()
	return f.half, true
}

// Flicker toggles the indicator a fixed number of times and then forces it
// off.
type Flicker struct {
	led   *indicator
	max   int
	kind  FlickerKind
	half  time.Duration
	count int
}

// Start resets the sequence for kind with the given full period.
func (f *Flicker) Start(kind FlickerKind, period time.Duration) {
	f.kind = kind
	f.half = period / 2
	f.count = 0
}

// Kind returns the kind of the current or last sequence.
func (f *Flicker) Kind() FlickerKind {
	return f.kind
}

// Count returns the number of toggles done in the current sequence.
func (f *Flicker) Count() int {
	return f.count
}

// Step toggles the LED while toggles remain. The step after the last toggle
// forces the LED off, clears the counter and reports cont == false.
func (f *Flicker) Step() (next time.Duration, cont bool) {
	if f.count < f.max {
		f.count++
		f.led.toggle()
		return f.half, true
	}
	f.count = 0
	f.led.off()
	return 0, false
}
