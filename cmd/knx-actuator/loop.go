package main

import (
	"os"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/knx-actuator/internal/knx"
	"github.com/sweeney/knx-actuator/internal/logic"
	"github.com/sweeney/knx-actuator/internal/metrics"
	"github.com/sweeney/knx-actuator/internal/mqtt"
	"github.com/sweeney/knx-actuator/internal/serialctl"
	"github.com/sweeney/knx-actuator/internal/status"
	"github.com/sweeney/knx-actuator/internal/tasklet"
	"github.com/sweeney/knx-actuator/internal/thread"
)

// roleCheckInterval paces the ot-ctl role query.
const roleCheckInterval = 5 * time.Second

type network interface {
	logic.Network
	FactoryReset() error
}

// loop is the single goroutine that owns the controller, the scheduler and
// the device record. Everything else talks to it through channels.
type loop struct {
	ctrl       *logic.Controller
	sched      *tasklet.Scheduler
	device     *knx.Device
	net        network
	rebooter   logic.Rebooter
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	heartbeat  *logic.Heartbeat
	now        func() time.Time
	sleepy     bool

	commands <-chan mqtt.Command
	frames   <-chan serialctl.Frame

	role      thread.Role
	roleKnown bool
	roleAt    time.Time
}

// init wires the device and controller callbacks and registers the hardware.
func (l *loop) init() error {
	l.ctrl.OnEvent = l.onEvent
	l.device.OnPut(func(url string, value bool) {
		l.ctrl.HandlePut(url, value)
		if err := l.publisher.PublishDatapoint(url, value); err != nil {
			log.Warnf("publish datapoint %s: %v", url, err)
		}
	})
	return l.ctrl.Init()
}

func (l *loop) onEvent(e logic.Event) {
	metrics.Observe(e)
	if e.Type == logic.EventSleep {
		log.Debugf("event: %s (%v)", e.Type, e.Duration)
	} else {
		log.Printf("event: %s", e.Type)
	}
	if err := l.publisher.Publish(e); err != nil {
		log.Printf("publish error: %v", err)
	}
}

// startup publishes the discovery record, the datapoint states and the
// STARTUP status event.
func (l *loop) startup() {
	if err := l.publisher.PublishDiscovery(l.device.Record()); err != nil {
		log.Printf("failed to publish discovery: %v", err)
	}
	for _, url := range knx.Datapoints {
		v, _ := l.device.Datapoint(url)
		if err := l.publisher.PublishDatapoint(url, v); err != nil {
			log.Printf("failed to publish %s: %v", url, err)
		}
	}

	l.updateTracker()
	snap := l.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}
}

// run drives the loop until a signal arrives. Commands are handled as they
// arrive; buttons, tasklets and the sleep decision run on every tick.
func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			l.shutdown(s)
			return nil
		case c := <-l.commands:
			l.handleCommand(c)
		case f := <-l.frames:
			l.handleFrame(f)
		case <-tick:
		}

		l.step()
		if l.sleepy {
			l.sleep()
		}
	}
}

// step runs one iteration of the hardware poll and the tasklet queue.
func (l *loop) step() {
	t := l.now()
	if err := l.ctrl.Poll(t); err != nil {
		log.Printf("gpio poll error: %v", err)
	}
	l.sched.Process()

	l.checkRole(t)

	if hb := l.heartbeat.Check(t); hb != nil {
		log.Printf("heartbeat: uptime=%v", hb.Uptime)
		l.updateTracker()
		snap := l.tracker.Snapshot()
		hbEvent := mqtt.SystemEvent{
			Timestamp:  hb.Timestamp,
			Event:      "HEARTBEAT",
			RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
		}
		if err := l.publisher.PublishSystem(hbEvent); err != nil {
			log.Printf("heartbeat publish error: %v", err)
		}
	}

	l.updateTracker()
}

// sleep suspends the loop if the controller allows it. The heartbeat is the
// stack's next deadline.
func (l *loop) sleep() {
	d := l.ctrl.Sleep(l.heartbeat.Until(l.now()))
	metrics.ObserveSleep(d)
	l.tracker.SetSleep(d)
}

// checkRole republishes discovery whenever the Thread role changes.
func (l *loop) checkRole(t time.Time) {
	if l.roleKnown && t.Sub(l.roleAt) < roleCheckInterval {
		return
	}
	l.roleAt = t
	role := l.net.Role()
	if l.roleKnown && role == l.role {
		return
	}
	if l.roleKnown {
		log.Printf("thread: role %s -> %s", l.role, role)
		if err := l.publisher.PublishDiscovery(l.device.Record()); err != nil {
			log.Warnf("publish discovery: %v", err)
		}
	}
	l.role = role
	l.roleKnown = true
}

func (l *loop) handleCommand(c mqtt.Command) {
	metrics.ObserveCommand("mqtt", string(c.Kind))
	log.Printf("command: %s", c.Kind)

	switch c.Kind {
	case mqtt.CmdProgrammingMode:
		l.ctrl.SetProgrammingMode(c.On)
	case mqtt.CmdReset:
		l.ctrl.TriggerReset(c.ResetClass)
	case mqtt.CmdRestart:
		l.ctrl.Restart()
	case mqtt.CmdIdentity:
		if err := l.device.SetIdentity(c.IA, c.IID); err != nil {
			log.Warnf("set identity: %v", err)
			return
		}
		if err := l.publisher.PublishDiscovery(l.device.Record()); err != nil {
			log.Warnf("publish discovery: %v", err)
		}
	case mqtt.CmdDatapoint:
		if err := l.device.SetDatapoint(c.URL, c.Value); err != nil {
			log.Warnf("write %s: %v", c.URL, err)
		}
	}
}

func (l *loop) handleFrame(f serialctl.Frame) {
	metrics.ObserveCommand("serial", f.Name())
	log.Printf("knxctl: %s", f.Name())
	if err := serialctl.Dispatch(f, l); err != nil {
		log.Warnf("knxctl: %v", err)
	}
}

// StorageReset implements serialctl.Handler.
func (l *loop) StorageReset() {
	l.ctrl.TriggerReset(knx.ResetFactory)
}

// Reboot implements serialctl.Handler.
func (l *loop) Reboot() {
	if err := l.rebooter.Reboot(); err != nil {
		log.Warnf("reboot: %v", err)
	}
}

// FactoryReset implements serialctl.Handler.
func (l *loop) FactoryReset() {
	if err := l.net.FactoryReset(); err != nil {
		log.Warnf("thread factory reset: %v", err)
	}
}

func (l *loop) updateTracker() {
	dev := status.DeviceInfo{
		Serial:     l.device.Record().Serial,
		IA:         l.device.Record().IA.String(),
		IID:        l.device.Record().IID,
		Datapoints: make(map[string]bool, len(knx.Datapoints)),
	}
	for _, url := range knx.Datapoints {
		dev.Datapoints[url], _ = l.device.Datapoint(url)
	}

	net := status.NetworkInfo{LinkMode: l.linkMode().String()}
	if l.roleKnown {
		net.Role = l.role.String()
	}

	l.tracker.Update(l.ctrl.Snapshot(), dev, net)
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// linkMode is the receive policy the controller keeps the radio in.
func (l *loop) linkMode() thread.LinkMode {
	if !l.sleepy || l.device.ProgrammingMode() {
		return thread.LinkRxOnWhenIdle
	}
	return thread.LinkPowerSave
}

func (l *loop) shutdown(s os.Signal) {
	log.Printf("received %v, shutting down", s)
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}

	l.updateTracker()
	snap := l.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      "SHUTDOWN",
		Reason:     signalName,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}
