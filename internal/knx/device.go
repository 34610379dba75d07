// Package knx holds the device record of the KNX-IoT stack: identity,
// programming-mode flag, datapoints and logical reset.
//
// The record is the only state the stack exposes to the device glue. It is
// owned by the event loop and not safe for concurrent use.
package knx

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAddress      = errors.New("knx: invalid individual address")
	ErrUnknownDatapoint    = errors.New("knx: unknown datapoint")
	ErrUnknownResetClass   = errors.New("knx: unknown reset class")
	ErrNotProgrammingMode  = errors.New("knx: device not in programming mode")
	ErrMissingSerialNumber = errors.New("knx: serial number is required")
)

// Datapoint URLs served by the actuator.
const (
	// DatapointLED is the switch actuator; writes drive the LSAB LED.
	DatapointLED = "/p/o_1_1"
	// DatapointPushButton is toggled by the LSSB button.
	DatapointPushButton = "/p/o_2_2"
)

// Datapoints lists every datapoint URL in a stable order.
var Datapoints = []string{DatapointLED, DatapointPushButton}

// ResetClass selects what a logical device reset erases.
type ResetClass int

const (
	// ResetRestart keeps all data; the caller restarts the application.
	ResetRestart ResetClass = 1
	// ResetFactory erases individual address, installation id and datapoints.
	ResetFactory ResetClass = 2
	// ResetIA erases only the individual address.
	ResetIA ResetClass = 3
	// ResetFactoryKeepIA erases installation id and datapoints.
	ResetFactoryKeepIA ResetClass = 7
)

// Valid reports whether c is one of the supported reset classes.
func (c ResetClass) Valid() bool {
	switch c {
	case ResetRestart, ResetFactory, ResetIA, ResetFactoryKeepIA:
		return true
	}
	return false
}

func (c ResetClass) String() string {
	switch c {
	case ResetRestart:
		return "restart"
	case ResetFactory:
		return "factory"
	case ResetIA:
		return "ia"
	case ResetFactoryKeepIA:
		return "factory-keep-ia"
	}
	return fmt.Sprintf("ResetClass(%d)", int(c))
}

// Record is the identity advertised in the discovery record.
type Record struct {
	Serial          string
	IID             uint64
	IA              IndividualAddress
	ProgrammingMode bool
}

// State is what a Store persists. The programming-mode flag is never stored;
// a device always starts in normal mode.
type State struct {
	Serial     string
	IID        uint64
	IA         IndividualAddress
	Datapoints map[string]bool
}

// Store persists device state across restarts.
type Store interface {
	LoadDevice(serial string) (State, bool, error)
	SaveDevice(State) error
}

// PutFunc is called after a datapoint is written.
type PutFunc func(url string, value bool)

// Device is the stack's record for this device.
type Device struct {
	store      Store
	rec        Record
	datapoints map[string]bool
	onPut      PutFunc
}

// Open loads the device identified by serial from store, creating a fresh
// uncommissioned record if none exists.
func Open(store Store, serial string) (*Device, error) {
	if serial == "" {
		return nil, ErrMissingSerialNumber
	}

	st, ok, err := store.LoadDevice(serial)
	if err != nil {
		return nil, fmt.Errorf("load device %s: %w", serial, err)
	}

	d := &Device{store: store, datapoints: make(map[string]bool)}
	if !ok {
		st = State{Serial: serial, IA: UnassignedIA}
	}
	d.rec = Record{Serial: serial, IID: st.IID, IA: st.IA}
	for _, url := range Datapoints {
		d.datapoints[url] = st.Datapoints[url]
	}

	if !ok {
		if err := d.save(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Record returns the current discovery identity.
func (d *Device) Record() Record {
	return d.rec
}

// ProgrammingMode reports the programming-mode flag.
func (d *Device) ProgrammingMode() bool {
	return d.rec.ProgrammingMode
}

// SetProgrammingMode sets the programming-mode flag. Only the device glue
// should call this.
func (d *Device) SetProgrammingMode(on bool) {
	d.rec.ProgrammingMode = on
}

// OnPut sets the callback run after every datapoint write.
func (d *Device) OnPut(fn PutFunc) {
	d.onPut = fn
}

// SetIdentity assigns individual address and installation id. KNX only
// accepts this while the device is in programming mode.
func (d *Device) SetIdentity(ia IndividualAddress, iid uint64) error {
	if !d.rec.ProgrammingMode {
		return ErrNotProgrammingMode
	}
	d.rec.IA = ia
	d.rec.IID = iid
	return d.save()
}

// Reset performs a logical device reset of the given class and persists the
// result.
func (d *Device) Reset(class ResetClass) error {
	switch class {
	case ResetRestart:
		return nil
	case ResetFactory:
		d.rec.IA = UnassignedIA
		d.rec.IID = 0
		d.clearDatapoints()
	case ResetIA:
		d.rec.IA = UnassignedIA
	case ResetFactoryKeepIA:
		d.rec.IID = 0
		d.clearDatapoints()
	default:
		return fmt.Errorf("%w: %d", ErrUnknownResetClass, int(class))
	}
	return d.save()
}

func (d *Device) clearDatapoints() {
	for url := range d.datapoints {
		d.datapoints[url] = false
	}
}

// Datapoint returns the value of a datapoint.
func (d *Device) Datapoint(url string) (bool, error) {
	v, ok := d.datapoints[url]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownDatapoint, url)
	}
	return v, nil
}

// SetDatapoint writes a datapoint, persists it and runs the put callback.
func (d *Device) SetDatapoint(url string, value bool) error {
	if _, ok := d.datapoints[url]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDatapoint, url)
	}
	d.datapoints[url] = value
	if err := d.save(); err != nil {
		return err
	}
	if d.onPut != nil {
		d.onPut(url, value)
	}
	return nil
}

// ToggleDatapoint inverts a datapoint and returns the new value.
func (d *Device) ToggleDatapoint(url string) (bool, error) {
	v, err := d.Datapoint(url)
	if err != nil {
		return false, err
	}
	if err := d.SetDatapoint(url, !v); err != nil {
		return false, err
	}
	return !v, nil
}

func (d *Device) save() error {
	dps := make(map[string]bool, len(d.datapoints))
	for k, v := range d.datapoints {
		dps[k] = v
	}
	if err := d.store.SaveDevice(State{
		Serial:     d.rec.Serial,
		IID:        d.rec.IID,
		IA:         d.rec.IA,
		Datapoints: dps,
	}); err != nil {
		return fmt.Errorf("save device %s: %w", d.rec.Serial, err)
	}
	return nil
}
