package logic

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/knx-actuator/internal/gpio"
	"github.com/sweeney/knx-actuator/internal/knx"
	"github.com/sweeney/knx-actuator/internal/platform"
	"github.com/sweeney/knx-actuator/internal/tasklet"
	"github.com/sweeney/knx-actuator/internal/thread"
)

var errBoom = errors.New("boom")

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// countingTasklets records cancels per tasklet name.
type countingTasklets struct {
	*tasklet.Scheduler
	cancels map[string]int
}

func (c *countingTasklets) Cancel(t *tasklet.Tasklet) {
	c.cancels[t.Name()]++
	c.Scheduler.Cancel(t)
}

type fakeDevice struct {
	rec      knx.Record
	resets   []knx.ResetClass
	resetErr error
	dps      map[string]bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		rec: knx.Record{Serial: "00FA10010401", IA: 0x1105, IID: 7},
		dps: map[string]bool{},
	}
}

func (d *fakeDevice) Record() knx.Record          { return d.rec }
func (d *fakeDevice) ProgrammingMode() bool       { return d.rec.ProgrammingMode }
func (d *fakeDevice) SetProgrammingMode(on bool)  { d.rec.ProgrammingMode = on }
func (d *fakeDevice) ToggleDatapoint(url string) (bool, error) {
	d.dps[url] = !d.dps[url]
	return d.dps[url], nil
}

func (d *fakeDevice) Reset(class knx.ResetClass) error {
	if d.resetErr != nil {
		return d.resetErr
	}
	d.resets = append(d.resets, class)
	d.rec.IA = knx.UnassignedIA
	d.rec.IID = 0
	return nil
}

type fakeDiscovery struct {
	records []knx.Record
}

func (f *fakeDiscovery) PublishDiscovery(rec knx.Record) error {
	f.records = append(f.records, rec)
	return nil
}

// fakeSuspender advances the test clock instead of blocking.
type fakeSuspender struct {
	clk   *clock
	calls []time.Duration
}

func (f *fakeSuspender) Suspend(d time.Duration) {
	f.calls = append(f.calls, d)
	f.clk.Advance(d)
}

type fixture struct {
	t       *testing.T
	clk     *clock
	sched   *countingTasklets
	lines   *gpio.FakeLines
	board   *gpio.Board
	dev     *fakeDevice
	net     *thread.FakeNetwork
	disc    *fakeDiscovery
	reboot  *platform.FakeRebooter
	suspend *fakeSuspender
	ctrl    *Controller
	events  []Event
	fatal   []error
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		t:       t,
		clk:     clk,
		sched:   &countingTasklets{Scheduler: tasklet.NewScheduler(clk.Now), cancels: map[string]int{}},
		lines:   gpio.NewFakeLines(),
		dev:     newFakeDevice(),
		net:     thread.NewFakeNetwork(),
		disc:    &fakeDiscovery{},
		reboot:  &platform.FakeRebooter{},
		suspend: &fakeSuspender{clk: clk},
	}
	f.board = gpio.NewBoard(f.lines, 0)
	f.ctrl = New(cfg, clk.Now, Deps{
		Tasklets:  f.sched,
		Board:     f.board,
		Device:    f.dev,
		Network:   f.net,
		Discovery: f.disc,
		Rebooter:  f.reboot,
		Suspender: f.suspend,
	})
	f.ctrl.OnEvent = func(e Event) { f.events = append(f.events, e) }
	f.ctrl.Fatal = func(err error) { f.fatal = append(f.fatal, err) }
	if err := f.ctrl.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return f
}

func defaultConfig() Config {
	return Config{Timing: DefaultTiming(), Pins: DefaultPins()}
}

func sleepyConfig() Config {
	cfg := defaultConfig()
	cfg.Sleepy = true
	return cfg
}

// run advances the clock in 10ms steps for d, polling buttons and tasklets
// like the event loop does.
func (f *fixture) run(d time.Duration) {
	const step = 10 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		f.clk.Advance(step)
		if err := f.ctrl.Poll(f.clk.Now()); err != nil {
			f.t.Fatalf("Poll: %v", err)
		}
		f.sched.Process()
	}
}

func (f *fixture) press(p gpio.Pin)   { f.lines.Buttons[p] = true }
func (f *fixture) release(p gpio.Pin) { f.lines.Buttons[p] = false }

func (f *fixture) countEvents(typ EventType) int {
	n := 0
	for _, e := range f.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}
