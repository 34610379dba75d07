// Package mqtt publishes the device's discovery record, datapoints and
// lifecycle events, and turns inbound command topics into Commands.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/knx-actuator/internal/knx"
	"github.com/sweeney/knx-actuator/internal/logic"
)

// TopicPrefix is the root of every topic of this device.
const TopicPrefix = "knx"

// Topics builds the topic names for one device.
type Topics struct {
	Serial string
}

func (t Topics) base() string {
	return TopicPrefix + "/" + t.Serial
}

// Discovery is the retained discovery record topic.
func (t Topics) Discovery() string { return t.base() + "/discovery" }

// Events carries controller events.
func (t Topics) Events() string { return t.base() + "/events" }

// System carries lifecycle events and the will message.
func (t Topics) System() string { return t.base() + "/system" }

// Datapoint is the retained state topic of a datapoint URL ("/p/o_1_1").
func (t Topics) Datapoint(url string) string {
	return t.base() + url
}

// Commands matches every command topic.
func (t Topics) Commands() string { return t.base() + "/cmd/+" }

// DatapointSets matches every datapoint write topic.
func (t Topics) DatapointSets() string { return t.base() + "/p/+/set" }

// Publisher publishes device state to MQTT.
type Publisher interface {
	// PublishDiscovery sends the retained discovery record.
	PublishDiscovery(rec knx.Record) error

	// PublishDatapoint sends the retained value of a datapoint.
	PublishDatapoint(url string, value bool) error

	// Publish sends a controller event.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// DiscoveryPayload is the JSON discovery record.
type DiscoveryPayload struct {
	Serial string `json:"serial"`
	IID    uint64 `json:"iid"`
	IA     string `json:"ia"`
	PM     bool   `json:"pm"`
}

// FormatDiscovery creates the JSON discovery record.
func FormatDiscovery(rec knx.Record) ([]byte, error) {
	return json.Marshal(DiscoveryPayload{
		Serial: rec.Serial,
		IID:    rec.IID,
		IA:     rec.IA.String(),
		PM:     rec.ProgrammingMode,
	})
}

// DatapointPayload is the JSON value of a datapoint.
type DatapointPayload struct {
	Value bool `json:"value"`
}

// FormatDatapoint creates the JSON payload for a datapoint value.
func FormatDatapoint(value bool) ([]byte, error) {
	return json.Marshal(DatapointPayload{Value: value})
}

// Payload represents the MQTT message payload for a controller event.
type Payload struct {
	KNX EventPayload `json:"knx"`
}

// EventPayload contains the controller event details.
type EventPayload struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	ResetClass int    `json:"reset_class,omitempty"`
	Datapoint  string `json:"datapoint,omitempty"`
	Value      *bool  `json:"value,omitempty"`
	SleepMs    int64  `json:"sleep_ms,omitempty"`
}

// FormatPayload creates the JSON payload for a controller event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := EventPayload{
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
		Event:      string(event.Type),
		ResetClass: int(event.ResetClass),
		SleepMs:    event.Duration.Milliseconds(),
	}
	if event.Type == logic.EventDatapoint {
		v := event.Value
		p.Datapoint = event.URL
		p.Value = &v
	}
	return json.Marshal(Payload{KNX: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// datapointURL maps a "p/o_1_1/set" topic suffix to "/p/o_1_1".
func datapointURL(suffix string) (string, bool) {
	if !strings.HasPrefix(suffix, "p/") || !strings.HasSuffix(suffix, "/set") {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(suffix, "p/"), "/set")
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return "/p/" + name, true
}
