package logic

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/knx-actuator/internal/gpio"
	"github.com/sweeney/knx-actuator/internal/knx"
	"github.com/sweeney/knx-actuator/internal/tasklet"
	"github.com/sweeney/knx-actuator/internal/thread"
)

// Controller owns the reset state machine, the programming-mode controller
// and (for sleepy devices) the sleep scheduler. All methods must be called
// from the event loop goroutine.
type Controller struct {
	cfg  Config
	now  func() time.Time
	deps Deps

	// Fatal receives errors from operations with no recovery path. It
	// defaults to log.Fatalf.
	Fatal func(error)

	// OnEvent, if set, is called after every state change.
	OnEvent func(Event)

	resetState ResetState
	progMode   bool // programming-mode capability registered

	led     indicator
	flasher Flasher
	flicker Flicker

	flashTask   *tasklet.Tasklet
	flickerTask *tasklet.Tasklet

	sleeper *Sleeper
	counts  EventCounts
}

// New creates a controller. Call Init before Poll.
func New(cfg Config, now func() time.Time, deps Deps) *Controller {
	c := &Controller{
		cfg:  cfg,
		now:  now,
		deps: deps,
		Fatal: func(err error) {
			log.Fatalf("logic: %v", err)
		},
	}
	c.led = indicator{board: deps.Board, pin: cfg.Pins.Indicator}
	c.flasher = Flasher{led: &c.led, half: cfg.Timing.FlashPeriod / 2}
	c.flicker = Flicker{led: &c.led, max: cfg.Timing.FlickerCount}
	return c
}

// Init registers every button, LED and tasklet. It is the hardware-init
// entry point.
func (c *Controller) Init() error {
	c.flashTask = c.deps.Tasklets.Init("progmode-flash", c.runFlasher)
	c.flickerTask = c.deps.Tasklets.Init("reset-flicker", c.runFlicker)

	if c.cfg.Sleepy {
		c.sleeper = NewSleeper(c.cfg.Timing, c.now, c.deps.Tasklets, c.deps.Network, c.deps.Suspender, c.CanSleep)
		// Power-save is the resting link mode; programming mode raises it.
		if err := c.deps.Network.SetLinkMode(thread.LinkPowerSave); err != nil {
			log.Warnf("logic: set link mode: %v", err)
		}
	}

	if err := c.initActuator(); err != nil {
		return err
	}
	c.initProgrammingMode()
	return c.initReset()
}

// initActuator binds the push button and the actuator LED.
func (c *Controller) initActuator() error {
	p := c.cfg.Pins
	b := c.deps.Board
	if err := b.RegisterButton(p.PushButton, c.cfg.Sleepy); err != nil {
		return fmt.Errorf("push button: %w", err)
	}
	if err := b.OnShortPress(p.PushButton, gpio.ShortPressPressed, c.onPushButton); err != nil {
		return fmt.Errorf("push button: %w", err)
	}
	if err := b.RegisterLED(p.ActuatorLED); err != nil {
		return fmt.Errorf("actuator led: %w", err)
	}
	return nil
}

// Poll samples the buttons once. It is the hardware-poll entry point.
func (c *Controller) Poll(now time.Time) error {
	return c.deps.Board.Poll(now)
}

// CanSleep reports whether no button is active and the device is not in
// programming mode.
func (c *Controller) CanSleep() bool {
	return c.deps.Board.CanSleep() && !c.deps.Device.ProgrammingMode()
}

// Sleep runs the sleep decision for one loop iteration. nextStackEvent is the
// time until the stack next needs to run; zero means no deadline.
func (c *Controller) Sleep(nextStackEvent time.Duration) SleepDecision {
	if c.sleeper == nil {
		return SleepDecision{Reason: ReasonNotSleepy}
	}
	d := c.sleeper.SleepIfPossible(nextStackEvent)
	if d.Slept {
		c.counts.Sleeps++
		c.counts.Slept += d.Duration
		c.emit(Event{Type: EventSleep, Duration: d.Duration})
	}
	return d
}

// HandlePut drives the actuator LED after a write to the switch datapoint.
func (c *Controller) HandlePut(url string, value bool) {
	if url != knx.DatapointLED {
		return
	}
	if err := c.deps.Board.SetLED(c.cfg.Pins.ActuatorLED, value); err != nil {
		log.Warnf("logic: set actuator led: %v", err)
	}
}

func (c *Controller) onPushButton() {
	v, err := c.deps.Device.ToggleDatapoint(knx.DatapointPushButton)
	if err != nil {
		log.Warnf("logic: toggle %s: %v", knx.DatapointPushButton, err)
		return
	}
	log.Debugf("logic: push button -> %t", v)
	c.emit(Event{Type: EventDatapoint, URL: knx.DatapointPushButton, Value: v})
}

// ResetState returns the current reset stage.
func (c *Controller) ResetState() ResetState {
	return c.resetState
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		ResetState:               c.resetState,
		ProgrammingMode:          c.deps.Device.ProgrammingMode(),
		ProgrammingModeAvailable: c.progMode,
		Counts:                   c.counts,
	}
	if c.flashTask != nil {
		s.Flashing = c.deps.Tasklets.IsQueued(c.flashTask)
		s.Flickering = c.deps.Tasklets.IsQueued(c.flickerTask)
	}
	if c.sleeper != nil {
		s.LastWake = c.sleeper.LastWake()
	}
	return s
}

func (c *Controller) publish() {
	if err := c.deps.Discovery.PublishDiscovery(c.deps.Device.Record()); err != nil {
		log.Warnf("logic: publish discovery: %v", err)
	}
}

func (c *Controller) emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = c.now()
	}
	if c.OnEvent != nil {
		c.OnEvent(e)
	}
}
