package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event           string       `json:"event,omitempty"`
	Reason          string       `json:"reason,omitempty"`
	ResetState      string       `json:"reset_state"`
	ProgrammingMode ProgModeJSON `json:"programming_mode"`
	Device          DeviceJSON   `json:"device"`
	Network         NetworkJSON  `json:"network"`
	Sleep           SleepJSON    `json:"sleep"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
	StartTime       string       `json:"start_time"`
	Timestamp       string       `json:"timestamp"`
	MQTT            MQTTStatus   `json:"mqtt"`
	Counts          CountsJSON   `json:"event_counts"`
	Config          *ConfigJSON  `json:"config,omitempty"`
}

// ProgModeJSON reports programming mode and its indicator.
type ProgModeJSON struct {
	Active     bool `json:"active"`
	Available  bool `json:"available"`
	Flashing   bool `json:"flashing"`
	Flickering bool `json:"flickering"`
}

// DeviceJSON is the KNX identity.
type DeviceJSON struct {
	Serial     string          `json:"serial"`
	IA         string          `json:"ia"`
	IID        uint64          `json:"iid"`
	Datapoints map[string]bool `json:"datapoints,omitempty"`
}

// NetworkJSON is the Thread state.
type NetworkJSON struct {
	Role     string `json:"role"`
	LinkMode string `json:"link_mode"`
}

// SleepJSON reports the sleep scheduler.
type SleepJSON struct {
	LastDecision string `json:"last_decision,omitempty"`
	LastWake     string `json:"last_wake,omitempty"`
	Count        int    `json:"count"`
	SleptSeconds int64  `json:"slept_seconds"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	ProgModeEntered int `json:"progmode_entered"`
	ProgModeExited  int `json:"progmode_exited"`
	KNXResets       int `json:"knx_resets"`
	ThreadResets    int `json:"thread_resets"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Sleepy      bool   `json:"sleepy"`
	LongPressMs int64  `json:"long_press_ms"`
	PollMs      int64  `json:"poll_ms"`
	MinAwakeMs  int64  `json:"min_awake_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Controller
	inner := StatusInner{
		ResetState: c.ResetState.String(),
		ProgrammingMode: ProgModeJSON{
			Active:     c.ProgrammingMode,
			Available:  c.ProgrammingModeAvailable,
			Flashing:   c.Flashing,
			Flickering: c.Flickering,
		},
		Device: DeviceJSON{
			Serial:     snap.Device.Serial,
			IA:         snap.Device.IA,
			IID:        snap.Device.IID,
			Datapoints: snap.Device.Datapoints,
		},
		Network: NetworkJSON{
			Role:     snap.Network.Role,
			LinkMode: snap.Network.LinkMode,
		},
		Sleep: SleepJSON{
			LastDecision: string(snap.LastSleep.Reason),
			Count:        c.Counts.Sleeps,
			SleptSeconds: int64(c.Counts.Slept.Seconds()),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			ProgModeEntered: c.Counts.ProgrammingModeEntered,
			ProgModeExited:  c.Counts.ProgrammingModeExited,
			KNXResets:       c.Counts.KNXResets,
			ThreadResets:    c.Counts.ThreadResets,
		},
	}
	if !c.LastWake.IsZero() {
		inner.Sleep.LastWake = c.LastWake.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildConfig(snap Snapshot, inner *StatusInner) {
	inner.Config = &ConfigJSON{
		Sleepy:      snap.Config.Sleepy,
		LongPressMs: snap.Config.LongPressMs,
		PollMs:      snap.Config.PollMs,
		MinAwakeMs:  snap.Config.MinAwakeMs,
		HeartbeatMs: snap.Config.HeartbeatMs,
		Broker:      snap.Config.Broker,
		HTTPAddr:    snap.Config.HTTPAddr,
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildConfig(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// Config is only included at startup.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	if event == "STARTUP" {
		buildConfig(snap, &inner)
	}

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
