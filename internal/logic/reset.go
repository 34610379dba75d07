package logic

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// initReset binds the long-press and hold callbacks of the mode button.
// The reset sequence works even when programming mode is unavailable.
func (c *Controller) initReset() error {
	p := c.cfg.Pins.ModeButton
	b := c.deps.Board
	if err := b.RegisterButton(p, c.cfg.Sleepy); err != nil {
		return fmt.Errorf("reset button: %w", err)
	}
	if err := b.OnLongPress(p, c.cfg.Timing.LongPress, c.onLongPress); err != nil {
		return fmt.Errorf("reset button: %w", err)
	}
	if err := b.OnHold(p, c.cfg.Timing.LongPress, c.onHold); err != nil {
		return fmt.Errorf("reset button: %w", err)
	}
	return nil
}

// onLongPress restarts the reset sequence.
func (c *Controller) onLongPress() {
	log.Debugf("logic: long press, reset sequence restarted from %s", c.resetState)
	c.resetState = KNXReset
}

// onHold performs one reset stage per re-fire while the button stays down.
func (c *Controller) onHold() {
	switch c.resetState {
	case KNXReset:
		c.exitProgrammingMode()
		if err := c.deps.Device.Reset(resetClass); err != nil {
			c.Fatal(fmt.Errorf("device reset %s: %w", resetClass, err))
			return
		}
		c.armFlicker(FlickerKNX)
		c.publish()
		c.counts.KNXResets++
		log.Printf("logic: KNX reset done (class %s)", resetClass)
		c.emit(Event{Type: EventKNXReset, ResetClass: resetClass})

	case ThreadReset:
		if err := c.deps.Network.EraseJoinCredentials(); err != nil {
			c.Fatal(fmt.Errorf("erase join credentials: %w", err))
			return
		}
		c.armFlicker(FlickerThread)
		c.counts.ThreadResets++
		log.Printf("logic: Thread credentials erased, rebooting after feedback")
		c.emit(Event{Type: EventThreadReset})

	case IgnoreFurtherAction:
		return
	}
	c.resetState++
}

// armFlicker starts a reset-done sequence. A running sequence is restarted
// with the new kind, so only one is ever active. The flashing indicator is
// stopped for the duration and resumes afterwards if still in programming
// mode.
func (c *Controller) armFlicker(kind FlickerKind) {
	period := c.cfg.Timing.KNXFlickerPeriod
	if kind == FlickerThread {
		period = c.cfg.Timing.ThreadFlickerPeriod
	}
	c.deps.Tasklets.Cancel(c.flashTask)
	c.flicker.Start(kind, period)
	c.deps.Tasklets.ScheduleDelta(c.flickerTask, 0)
}

func (c *Controller) runFlicker(now time.Time) {
	next, cont := c.flicker.Step()
	if cont {
		c.deps.Tasklets.ScheduleDelta(c.flickerTask, next)
		return
	}

	if c.flicker.Kind() == FlickerThread {
		c.emit(Event{Timestamp: now, Type: EventReboot})
		log.Printf("logic: rebooting")
		if err := c.deps.Rebooter.Reboot(); err != nil {
			c.Fatal(fmt.Errorf("reboot: %w", err))
		}
		return
	}

	if c.deps.Device.ProgrammingMode() {
		c.deps.Tasklets.ScheduleDelta(c.flashTask, 0)
	}
}

