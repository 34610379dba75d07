package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/knx-actuator/internal/knx"
	"github.com/sweeney/knx-actuator/internal/logic"
)

func TestTopics(t *testing.T) {
	tp := Topics{Serial: "00FA10010401"}

	tests := map[string]string{
		tp.Discovery():                  "knx/00FA10010401/discovery",
		tp.Events():                     "knx/00FA10010401/events",
		tp.System():                     "knx/00FA10010401/system",
		tp.Datapoint(knx.DatapointLED):  "knx/00FA10010401/p/o_1_1",
		tp.Commands():                   "knx/00FA10010401/cmd/+",
		tp.DatapointSets():              "knx/00FA10010401/p/+/set",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	}
}

func TestFormatDiscoveryExactJSON(t *testing.T) {
	rec := knx.Record{Serial: "00FA10010401", IID: 5, IA: 0x1105, ProgrammingMode: true}

	payload, err := FormatDiscovery(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"serial":"00FA10010401","iid":5,"ia":"1.1.5","pm":true}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatDatapoint(t *testing.T) {
	payload, err := FormatDatapoint(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"value":true}` {
		t.Errorf("unexpected payload %s", payload)
	}
}

func TestFormatPayload(t *testing.T) {
	event := logic.Event{
		Timestamp:  time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:       logic.EventKNXReset,
		ResetClass: knx.ResetFactory,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"knx":{"timestamp":"2026-02-02T22:18:12Z","event":"KNX_RESET","reset_class":2}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadDatapointFalse(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventDatapoint,
		URL:       knx.DatapointPushButton,
		Value:     false,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.KNX.Datapoint != "/p/o_2_2" {
		t.Errorf("unexpected datapoint %s", parsed.KNX.Datapoint)
	}
	if parsed.KNX.Value == nil || *parsed.KNX.Value {
		t.Error("false value must be present in the payload")
	}
}

func TestFormatPayloadSleep(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventSleep,
		Duration:  1500 * time.Millisecond,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"knx":{"timestamp":"2026-02-02T22:18:12Z","event":"SLEEP","sleep_ms":1500}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 2, 23, 0, 0, 0, loc),
		Type:      logic.EventProgrammingModeEntered,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.KNX.Timestamp != "2026-02-02T22:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.KNX.Timestamp)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload should pass through, got %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	f.PublishDiscovery(knx.Record{Serial: "S1", IA: knx.UnassignedIA})
	f.PublishDatapoint(knx.DatapointLED, true)
	f.Publish(logic.Event{Type: logic.EventReboot, Timestamp: time.Now()})
	f.PublishSystem(SystemEvent{Event: "STARTUP", Timestamp: time.Now(), Retained: true})

	if len(f.Discoveries) != 1 || f.Discoveries[0].Serial != "S1" {
		t.Errorf("discoveries: %+v", f.Discoveries)
	}
	if len(f.Datapoints) != 1 || f.Datapoints[0] != (DatapointWrite{URL: knx.DatapointLED, Value: true}) {
		t.Errorf("datapoints: %+v", f.Datapoints)
	}
	if len(f.Events) != 1 || len(f.Payloads) != 1 {
		t.Errorf("events: %d, payloads: %d", len(f.Events), len(f.Payloads))
	}
	if len(f.SystemEvents) != 1 || !f.SystemEvents[0].Retained {
		t.Errorf("system events: %+v", f.SystemEvents)
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")

	if err := f.PublishDiscovery(knx.Record{}); err == nil {
		t.Error("expected error from PublishDiscovery")
	}
	if err := f.Publish(logic.Event{}); err == nil {
		t.Error("expected error from Publish")
	}
	if len(f.Discoveries) != 0 || len(f.Events) != 0 {
		t.Error("nothing should be recorded on error")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.PublishDiscovery(knx.Record{})
	f.Connected = true
	f.Close()

	f.Reset()

	if len(f.Discoveries) != 0 || f.Closed || f.Connected {
		t.Error("Reset should clear all state")
	}
}
