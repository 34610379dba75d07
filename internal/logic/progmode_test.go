package logic

import (
	"testing"
	"time"

	"github.com/sweeney/knx-actuator/internal/gpio"
	"github.com/sweeney/knx-actuator/internal/knx"
	"github.com/sweeney/knx-actuator/internal/platform"
	"github.com/sweeney/knx-actuator/internal/tasklet"
	"github.com/sweeney/knx-actuator/internal/thread"
)

func TestShortPressTogglesProgrammingMode(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.press(gpio.Switch4)
	f.run(100 * time.Millisecond)
	if f.dev.ProgrammingMode() {
		t.Fatal("short press acts on release, not on press")
	}
	f.release(gpio.Switch4)
	f.run(100 * time.Millisecond)

	if !f.dev.ProgrammingMode() {
		t.Fatal("expected programming mode after short press")
	}
	if !f.sched.IsQueued(f.ctrl.flashTask) {
		t.Error("flashing should be armed")
	}
	if len(f.disc.records) != 1 || !f.disc.records[0].ProgrammingMode {
		t.Errorf("expected one publish with pm=true, got %+v", f.disc.records)
	}

	f.press(gpio.Switch4)
	f.run(100 * time.Millisecond)
	f.release(gpio.Switch4)
	f.run(100 * time.Millisecond)

	if f.dev.ProgrammingMode() {
		t.Error("second short press should exit programming mode")
	}
	if f.lines.LEDs[gpio.Switch3] {
		t.Error("indicator should be off after exit")
	}
}

func TestFlashingTogglesEveryHalfPeriod(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.lines.ResetCounts()

	f.ctrl.SetProgrammingMode(true)
	f.run(10 * time.Millisecond)
	if !f.lines.LEDs[gpio.Switch3] {
		t.Fatal("first toggle should run immediately")
	}

	f.run(490 * time.Millisecond)
	if f.lines.LEDWrites[gpio.Switch3] != 1 {
		t.Errorf("expected 1 write before half period, got %d", f.lines.LEDWrites[gpio.Switch3])
	}
	f.run(10 * time.Millisecond)
	if f.lines.LEDs[gpio.Switch3] {
		t.Error("LED should toggle off after 500ms")
	}

	f.run(10 * time.Second)
	if !f.sched.IsQueued(f.ctrl.flashTask) {
		t.Error("flashing runs until cancelled")
	}
}

func TestExitIsIdempotent(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.ctrl.SetProgrammingMode(true)
	f.run(100 * time.Millisecond)
	f.lines.ResetCounts()
	f.disc.records = nil
	f.sched.cancels = map[string]int{}

	f.ctrl.exitProgrammingMode()
	f.ctrl.exitProgrammingMode()

	if got := f.sched.cancels["progmode-flash"]; got != 1 {
		t.Errorf("flashing cancelled %d times, want 1", got)
	}
	if got := f.lines.LEDOffWrites[gpio.Switch3]; got != 1 {
		t.Errorf("LED forced off %d times, want 1", got)
	}
	if len(f.disc.records) != 1 {
		t.Errorf("expected 1 publish, got %d", len(f.disc.records))
	}
	if f.countEvents(EventProgrammingModeExited) != 1 {
		t.Error("expected one exit event")
	}
}

func TestEnterWhenAlreadyInProgrammingMode(t *testing.T) {
	f := newFixture(t, sleepyConfig())
	f.ctrl.SetProgrammingMode(true)
	f.sched.cancels = map[string]int{}
	f.disc.records = nil
	modes := len(f.net.ModeChanges)

	f.ctrl.SetProgrammingMode(true)

	if len(f.disc.records) != 0 {
		t.Error("redundant enter must not republish")
	}
	if len(f.net.ModeChanges) != modes {
		t.Error("redundant enter must not touch the link mode")
	}
	if f.countEvents(EventProgrammingModeEntered) != 1 {
		t.Error("redundant enter must not emit an event")
	}
}

func TestSetProgrammingModeOffWhenOff(t *testing.T) {
	f := newFixture(t, sleepyConfig())
	f.lines.ResetCounts()
	f.net.ModeChanges = nil

	f.ctrl.SetProgrammingMode(false)

	if len(f.disc.records) != 0 || len(f.net.ModeChanges) != 0 || len(f.lines.LEDWrites) != 0 {
		t.Error("redundant exit must have no side effects")
	}
}

func TestSleepyInitSelectsPowerSave(t *testing.T) {
	f := newFixture(t, sleepyConfig())

	if len(f.net.ModeChanges) != 1 || f.net.ModeChanges[0] != thread.LinkPowerSave {
		t.Fatalf("mode changes after init: got %v, want [power-save]", f.net.ModeChanges)
	}
	if f.net.Mode != thread.LinkPowerSave {
		t.Errorf("link mode: got %s, want power-save", f.net.Mode)
	}
}

func TestSleepyInitLinkModeErrorNotFatal(t *testing.T) {
	net := thread.NewFakeNetwork()
	net.ModeError = errBoom
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	ctrl := New(sleepyConfig(), clk.Now, Deps{
		Tasklets:  tasklet.NewScheduler(clk.Now),
		Board:     gpio.NewBoard(gpio.NewFakeLines(), 0),
		Device:    newFakeDevice(),
		Network:   net,
		Discovery: &fakeDiscovery{},
		Rebooter:  &platform.FakeRebooter{},
		Suspender: &fakeSuspender{clk: clk},
	})
	var fatal []error
	ctrl.Fatal = func(err error) { fatal = append(fatal, err) }

	if err := ctrl.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(fatal) != 0 {
		t.Errorf("link mode failure must not be fatal: %v", fatal)
	}
}

func TestSleepyLinkModeFollowsProgrammingMode(t *testing.T) {
	f := newFixture(t, sleepyConfig())

	f.ctrl.SetProgrammingMode(true)
	f.ctrl.SetProgrammingMode(false)

	want := []thread.LinkMode{thread.LinkPowerSave, thread.LinkRxOnWhenIdle, thread.LinkPowerSave}
	if len(f.net.ModeChanges) != len(want) {
		t.Fatalf("mode changes: got %v, want %v", f.net.ModeChanges, want)
	}
	for i := range want {
		if f.net.ModeChanges[i] != want[i] {
			t.Errorf("mode change %d: got %s, want %s", i, f.net.ModeChanges[i], want[i])
		}
	}
}

func TestNonSleepyLeavesLinkModeAlone(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.ctrl.SetProgrammingMode(true)
	f.ctrl.SetProgrammingMode(false)

	if len(f.net.ModeChanges) != 0 {
		t.Errorf("unexpected link mode changes %v", f.net.ModeChanges)
	}
}

func TestSharedPushButtonKeepsDatapointToggle(t *testing.T) {
	cfg := defaultConfig()
	cfg.Pins.PushButton = gpio.Switch4
	f := newFixture(t, cfg)

	if f.ctrl.ProgrammingModeAvailable() {
		t.Fatal("programming mode should be disabled")
	}

	f.press(gpio.Switch4)
	f.run(50 * time.Millisecond)
	f.release(gpio.Switch4)
	f.run(50 * time.Millisecond)

	if f.dev.ProgrammingMode() {
		t.Error("short press must not enter programming mode")
	}
	if !f.dev.dps[knx.DatapointPushButton] {
		t.Error("push-button handler must not be replaced")
	}
}

func TestSharedIndicatorDisablesProgrammingMode(t *testing.T) {
	cfg := defaultConfig()
	cfg.Pins.Indicator = gpio.Switch4
	f := newFixture(t, cfg)

	if f.ctrl.ProgrammingModeAvailable() {
		t.Fatal("programming mode should be disabled")
	}
	if f.lines.Requested[gpio.Switch4] != "button" {
		t.Error("reset button should still be registered")
	}

	f.press(gpio.Switch4)
	f.run(50 * time.Millisecond)
	f.release(gpio.Switch4)
	f.run(50 * time.Millisecond)
	if f.dev.ProgrammingMode() {
		t.Error("short press must do nothing when the feature is disabled")
	}

	f.press(gpio.Switch4)
	f.run(3100 * time.Millisecond)
	if len(f.dev.resets) != 1 {
		t.Error("reset must work without programming mode")
	}
}

func TestFlashingDeferredWhileFlickering(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.ctrl.TriggerReset(knx.ResetFactory)
	f.ctrl.SetProgrammingMode(true)

	if f.sched.IsQueued(f.ctrl.flashTask) {
		t.Fatal("flashing must wait for the flicker")
	}
	if len(f.disc.records) != 2 || !f.disc.records[1].ProgrammingMode {
		t.Error("entering still republishes immediately")
	}

	f.run(time.Second)
	if f.sched.IsQueued(f.ctrl.flickerTask) {
		t.Fatal("flicker should be done")
	}
	if !f.sched.IsQueued(f.ctrl.flashTask) {
		t.Error("flashing should start after the flicker")
	}
}

func TestArmFlickerStopsFlashing(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.ctrl.SetProgrammingMode(true)

	f.ctrl.armFlicker(FlickerThread)

	if f.sched.IsQueued(f.ctrl.flashTask) && f.sched.IsQueued(f.ctrl.flickerTask) {
		t.Error("flashing and flicker must never be armed together")
	}
}

func TestTriggerReset(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.ctrl.SetProgrammingMode(true)

	f.ctrl.TriggerReset(knx.ResetIA)

	if f.dev.ProgrammingMode() {
		t.Error("reset request must exit programming mode")
	}
	if len(f.dev.resets) != 1 || f.dev.resets[0] != knx.ResetIA {
		t.Errorf("resets: got %v, want [ia]", f.dev.resets)
	}
	if !f.sched.IsQueued(f.ctrl.flickerTask) || f.ctrl.flicker.Kind() != FlickerKNX {
		t.Error("expected KNX flicker")
	}
	last := f.events[len(f.events)-1]
	if last.Type != EventKNXReset || last.ResetClass != knx.ResetIA {
		t.Errorf("unexpected last event %+v", last)
	}
}

func TestTriggerResetOutsideProgrammingMode(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.sched.cancels = map[string]int{}

	f.ctrl.TriggerReset(knx.ResetFactory)

	if f.countEvents(EventProgrammingModeExited) != 0 {
		t.Error("no exit event when not in programming mode")
	}
	if len(f.disc.records) != 1 {
		t.Errorf("expected only the reset publish, got %d", len(f.disc.records))
	}
}

func TestTriggerResetUnknownClassIgnored(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.ctrl.SetProgrammingMode(true)
	f.disc.records = nil
	f.events = nil

	f.ctrl.TriggerReset(knx.ResetClass(5))

	if len(f.fatal) != 0 {
		t.Fatalf("unknown class must not be fatal: %v", f.fatal)
	}
	if !f.dev.ProgrammingMode() {
		t.Error("unknown class must leave programming mode untouched")
	}
	if len(f.dev.resets) != 0 || len(f.disc.records) != 0 || len(f.events) != 0 {
		t.Errorf("unexpected side effects: resets=%v publishes=%d events=%v", f.dev.resets, len(f.disc.records), f.events)
	}
	if f.sched.IsQueued(f.ctrl.flickerTask) {
		t.Error("no reset feedback for an ignored request")
	}
}

func TestTriggerResetRestartClass(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.ctrl.SetProgrammingMode(true)

	f.ctrl.TriggerReset(knx.ResetRestart)

	if f.dev.ProgrammingMode() {
		t.Error("restart class must exit programming mode")
	}
	if len(f.dev.resets) != 0 {
		t.Errorf("restart class changes no data, got resets %v", f.dev.resets)
	}
	if f.sched.IsQueued(f.ctrl.flickerTask) {
		t.Error("restart class shows no reset feedback")
	}
	if f.countEvents(EventKNXReset) != 0 || f.ctrl.Snapshot().Counts.KNXResets != 0 {
		t.Error("restart class is not counted as a KNX reset")
	}
}

func TestRestartExitsProgrammingMode(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.ctrl.SetProgrammingMode(true)

	f.ctrl.Restart()

	if f.dev.ProgrammingMode() {
		t.Error("restart must exit programming mode")
	}
	if f.reboot.Reboots != 0 {
		t.Error("restart does not reboot the host")
	}
}

func TestPushButtonTogglesDatapoint(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.press(gpio.Switch1)
	f.run(20 * time.Millisecond)

	if !f.dev.dps[knx.DatapointPushButton] {
		t.Fatal("push button should toggle on press")
	}
	e := f.events[len(f.events)-1]
	if e.Type != EventDatapoint || e.URL != knx.DatapointPushButton || !e.Value {
		t.Errorf("unexpected event %+v", e)
	}

	f.release(gpio.Switch1)
	f.run(20 * time.Millisecond)
	if !f.dev.dps[knx.DatapointPushButton] {
		t.Error("release must not toggle again")
	}
}

func TestHandlePutDrivesActuatorLED(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.ctrl.HandlePut(knx.DatapointLED, true)
	if !f.lines.LEDs[gpio.Switch2] {
		t.Error("actuator LED should be on")
	}

	f.ctrl.HandlePut(knx.DatapointPushButton, false)
	if !f.lines.LEDs[gpio.Switch2] {
		t.Error("other datapoints must not drive the LED")
	}

	f.ctrl.HandlePut(knx.DatapointLED, false)
	if f.lines.LEDs[gpio.Switch2] {
		t.Error("actuator LED should be off")
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.ctrl.SetProgrammingMode(true)
	f.ctrl.onLongPress()
	f.ctrl.onHold()

	s := f.ctrl.Snapshot()
	if s.ResetState != ThreadReset {
		t.Errorf("ResetState: got %s", s.ResetState)
	}
	if s.ProgrammingMode {
		t.Error("reset should have left programming mode")
	}
	if !s.ProgrammingModeAvailable {
		t.Error("programming mode should be available")
	}
	if !s.Flickering || s.Flashing {
		t.Errorf("indicators: flickering=%t flashing=%t", s.Flickering, s.Flashing)
	}
	if s.Counts.ProgrammingModeEntered != 1 || s.Counts.ProgrammingModeExited != 1 || s.Counts.KNXResets != 1 {
		t.Errorf("unexpected counts %+v", s.Counts)
	}
}
