// Package logic contains the device glue of the actuator: the two-stage
// reset state machine, the programming-mode controller and the sleepy-device
// sleep scheduler.
//
// This package does no I/O of its own. Buttons, LEDs, timers, the KNX device
// record and the Thread stack are reached through the interfaces in
// collaborators.go, and time is injected, so every transition can be driven
// from a test.
package logic

import (
	"fmt"
	"time"

	"github.com/sweeney/knx-actuator/internal/gpio"
	"github.com/sweeney/knx-actuator/internal/knx"
)

// ResetState is the stage of the long-press reset sequence.
type ResetState int

const (
	// KNXReset: the next hold re-fire performs the KNX device reset.
	KNXReset ResetState = iota
	// ThreadReset: the next hold re-fire erases the Thread credentials.
	ThreadReset
	// IgnoreFurtherAction absorbs hold re-fires until the next long press.
	IgnoreFurtherAction
)

func (s ResetState) String() string {
	switch s {
	case KNXReset:
		return "KNX_RESET"
	case ThreadReset:
		return "THREAD_RESET"
	case IgnoreFurtherAction:
		return "IGNORE_FURTHER_ACTION"
	}
	return fmt.Sprintf("ResetState(%d)", int(s))
}

// resetClass is the logical reset performed by the first hold stage.
const resetClass = knx.ResetFactory

// Timing holds every duration the controller and sleeper use.
type Timing struct {
	// LongPress is both the long-press threshold and the hold re-fire period
	// of the mode button.
	LongPress time.Duration

	// FlashPeriod is the full on/off period of the programming-mode indicator.
	FlashPeriod time.Duration

	// KNXFlickerPeriod and ThreadFlickerPeriod are the full periods of the
	// reset-done flicker for each stage.
	KNXFlickerPeriod    time.Duration
	ThreadFlickerPeriod time.Duration

	// FlickerCount is the number of LED toggles in a flicker sequence.
	FlickerCount int

	// PollPeriod is the keep-alive data poll interval of a sleepy device.
	PollPeriod time.Duration

	// MinAwake is how long a detached device stays awake after a wake-up.
	MinAwake time.Duration

	// MinSleep is the shortest suspend worth entering.
	MinSleep time.Duration

	// MaxSleep bounds any single suspend.
	MaxSleep time.Duration
}

// DefaultTiming returns the reference device timing.
func DefaultTiming() Timing {
	return Timing{
		LongPress:           3000 * time.Millisecond,
		FlashPeriod:         1000 * time.Millisecond,
		KNXFlickerPeriod:    300 * time.Millisecond,
		ThreadFlickerPeriod: 600 * time.Millisecond,
		FlickerCount:        5,
		PollPeriod:          15 * time.Second,
		MinAwake:            10 * time.Second,
		MinSleep:            100 * time.Millisecond,
		MaxSleep:            0x7FFFFFFF * time.Millisecond,
	}
}

// Pins assigns the board's switch positions.
type Pins struct {
	// PushButton toggles the push-button datapoint on press.
	PushButton gpio.Pin
	// ActuatorLED follows the switch datapoint.
	ActuatorLED gpio.Pin
	// Indicator shows programming mode and reset feedback.
	Indicator gpio.Pin
	// ModeButton toggles programming mode (short press) and resets (hold).
	ModeButton gpio.Pin
}

// DefaultPins is the reference board assignment.
func DefaultPins() Pins {
	return Pins{
		PushButton:  gpio.Switch1,
		ActuatorLED: gpio.Switch2,
		Indicator:   gpio.Switch3,
		ModeButton:  gpio.Switch4,
	}
}

// Config configures a Controller.
type Config struct {
	Timing Timing
	Pins   Pins
	// Sleepy enables link-mode switching and the sleep scheduler.
	Sleepy bool
}

// EventType names something the controller did.
type EventType string

const (
	EventProgrammingModeEntered EventType = "PROGMODE_ENTERED"
	EventProgrammingModeExited  EventType = "PROGMODE_EXITED"
	EventKNXReset               EventType = "KNX_RESET"
	EventThreadReset            EventType = "THREAD_RESET"
	EventReboot                 EventType = "REBOOT"
	EventSleep                  EventType = "SLEEP"
	EventDatapoint              EventType = "DATAPOINT"
)

// Event is reported through Controller.OnEvent.
type Event struct {
	Timestamp time.Time
	Type      EventType

	// ResetClass is set for EventKNXReset.
	ResetClass knx.ResetClass

	// URL and Value are set for EventDatapoint.
	URL   string
	Value bool

	// Duration is the suspend length for EventSleep.
	Duration time.Duration
}

// EventCounts tracks controller events since startup.
type EventCounts struct {
	ProgrammingModeEntered int
	ProgrammingModeExited  int
	KNXResets              int
	ThreadResets           int
	Sleeps                 int
	Slept                  time.Duration
}

// Snapshot is a copy of the controller state for status reporting.
type Snapshot struct {
	ResetState               ResetState
	ProgrammingMode          bool
	ProgrammingModeAvailable bool
	Flashing                 bool
	Flickering               bool
	LastWake                 time.Time
	Counts                   EventCounts
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}
