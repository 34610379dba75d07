package mqtt

import (
	"github.com/sweeney/knx-actuator/internal/knx"
	"github.com/sweeney/knx-actuator/internal/logic"
)

// DatapointWrite is one recorded PublishDatapoint call.
type DatapointWrite struct {
	URL   string
	Value bool
}

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Discoveries contains every published discovery record.
	Discoveries []knx.Record

	// Datapoints contains every published datapoint value.
	Datapoints []DatapointWrite

	// Events contains all controller events that were published.
	Events []logic.Event

	// Payloads contains the JSON payloads of Events.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by every publish method except
	// PublishSystem.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishDiscovery records the discovery record.
func (f *FakePublisher) PublishDiscovery(rec knx.Record) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Discoveries = append(f.Discoveries, rec)
	return nil
}

// PublishDatapoint records the datapoint value.
func (f *FakePublisher) PublishDatapoint(url string, value bool) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Datapoints = append(f.Datapoints, DatapointWrite{URL: url, Value: value})
	return nil
}

// Publish records the controller event.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Events = append(f.Events, event)

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
