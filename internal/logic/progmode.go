package logic

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/knx-actuator/internal/gpio"
	"github.com/sweeney/knx-actuator/internal/knx"
	"github.com/sweeney/knx-actuator/internal/thread"
)

// initProgrammingMode binds the short press of the mode button and the
// indicator LED. A board where the two share a pin cannot offer programming
// mode; the feature is then left unregistered.
func (c *Controller) initProgrammingMode() {
	p := c.cfg.Pins
	if p.Indicator == p.ModeButton {
		log.Warnf("logic: indicator and mode button share %s, programming mode disabled", p.ModeButton)
		return
	}
	if p.PushButton == p.ModeButton {
		log.Warnf("logic: push button and mode button share %s, programming mode disabled", p.ModeButton)
		return
	}

	b := c.deps.Board
	if err := b.RegisterButton(p.ModeButton, c.cfg.Sleepy); err != nil {
		log.Warnf("logic: programming mode disabled: %v", err)
		return
	}
	if err := b.RegisterLED(p.Indicator); err != nil {
		log.Warnf("logic: programming mode disabled: %v", err)
		return
	}
	if err := b.OnShortPress(p.ModeButton, gpio.ShortPressReleased, c.onShortPress); err != nil {
		log.Warnf("logic: programming mode disabled: %v", err)
		return
	}

	c.led.enabled = true
	c.progMode = true
}

// ProgrammingModeAvailable reports whether the mode button can toggle
// programming mode.
func (c *Controller) ProgrammingModeAvailable() bool {
	return c.progMode
}

func (c *Controller) onShortPress() {
	if c.deps.Device.ProgrammingMode() {
		c.exitProgrammingMode()
	} else {
		c.enterProgrammingMode()
	}
}

// SetProgrammingMode enters or leaves programming mode. Requesting the mode
// already in effect does nothing.
func (c *Controller) SetProgrammingMode(on bool) {
	if on == c.deps.Device.ProgrammingMode() {
		return
	}
	if on {
		c.enterProgrammingMode()
	} else {
		c.exitProgrammingMode()
	}
}

// TriggerReset handles a reset requested by the stack: programming mode is
// left, the device record is reset and the reset feedback is shown. A
// restart-class request changes no data and is handled as Restart; an
// unknown class is ignored.
func (c *Controller) TriggerReset(class knx.ResetClass) {
	if !class.Valid() {
		log.Warnf("logic: ignoring reset request with unknown class %d", int(class))
		return
	}
	if class == knx.ResetRestart {
		c.Restart()
		return
	}
	c.exitProgrammingMode()
	if err := c.deps.Device.Reset(class); err != nil {
		c.Fatal(fmt.Errorf("device reset %s: %w", class, err))
		return
	}
	c.armFlicker(FlickerKNX)
	c.publish()
	c.counts.KNXResets++
	log.Printf("logic: reset requested (class %s)", class)
	c.emit(Event{Type: EventKNXReset, ResetClass: class})
}

// Restart handles a restart requested by the stack.
func (c *Controller) Restart() {
	c.exitProgrammingMode()
	log.Printf("logic: restart requested")
}

func (c *Controller) enterProgrammingMode() {
	if c.cfg.Sleepy {
		if err := c.deps.Network.SetLinkMode(thread.LinkRxOnWhenIdle); err != nil {
			log.Warnf("logic: set link mode: %v", err)
		}
	}
	c.deps.Device.SetProgrammingMode(true)

	// A running flicker owns the LED; it arms the flashing when done.
	if !c.deps.Tasklets.IsQueued(c.flickerTask) {
		c.deps.Tasklets.ScheduleDelta(c.flashTask, 0)
	}

	c.publish()
	c.counts.ProgrammingModeEntered++
	log.Printf("logic: programming mode entered")
	c.emit(Event{Type: EventProgrammingModeEntered})
}

// exitProgrammingMode is a no-op outside programming mode.
func (c *Controller) exitProgrammingMode() {
	if !c.deps.Device.ProgrammingMode() {
		return
	}
	if c.cfg.Sleepy {
		if err := c.deps.Network.SetLinkMode(thread.LinkPowerSave); err != nil {
			log.Warnf("logic: set link mode: %v", err)
		}
	}
	c.deps.Device.SetProgrammingMode(false)
	c.deps.Tasklets.Cancel(c.flashTask)
	c.led.off()

	c.publish()
	c.counts.ProgrammingModeExited++
	log.Printf("logic: programming mode exited")
	c.emit(Event{Type: EventProgrammingModeExited})
}

func (c *Controller) runFlasher(now time.Time) {
	next, cont := c.flasher.Step()
	if cont {
		c.deps.Tasklets.ScheduleDelta(c.flashTask, next)
	}
}
