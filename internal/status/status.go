// Package status provides a thread-safe status tracker for the knx-actuator
// daemon. The event loop writes it; HTTP handlers and heartbeats read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/knx-actuator/internal/logic"
)

// DeviceInfo is the KNX identity shown on the status page.
type DeviceInfo struct {
	Serial     string
	IA         string
	IID        uint64
	Datapoints map[string]bool
}

// NetworkInfo contains Thread state. This is a local copy to avoid
// importing internal/thread from status.
type NetworkInfo struct {
	Role     string
	LinkMode string
}

// Config contains daemon configuration for display.
type Config struct {
	Sleepy      bool
	LongPressMs int64
	PollMs      int64
	MinAwakeMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Controller    logic.Snapshot
	Device        DeviceInfo
	Network       NetworkInfo
	LastSleep     logic.SleepDecision
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the controller, device and network state.
// Called from runLoop on every iteration.
func (t *Tracker) Update(ctrl logic.Snapshot, dev DeviceInfo, net NetworkInfo) {
	dps := make(map[string]bool, len(dev.Datapoints))
	for k, v := range dev.Datapoints {
		dps[k] = v
	}
	dev.Datapoints = dps

	t.mu.Lock()
	t.snap.Controller = ctrl
	t.snap.Device = dev
	t.snap.Network = net
	t.mu.Unlock()
}

// SetSleep records the last sleep decision.
func (t *Tracker) SetSleep(d logic.SleepDecision) {
	t.mu.Lock()
	t.snap.LastSleep = d
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
