package logic

import (
	"time"

	"github.com/sweeney/knx-actuator/internal/gpio"
	"github.com/sweeney/knx-actuator/internal/knx"
	"github.com/sweeney/knx-actuator/internal/tasklet"
	"github.com/sweeney/knx-actuator/internal/thread"
)

// Tasklets arms and cancels delayed callbacks. Processing is left to the
// event loop.
type Tasklets interface {
	Init(name string, fn tasklet.Func) *tasklet.Tasklet
	ScheduleDelta(t *tasklet.Tasklet, delay time.Duration)
	Cancel(t *tasklet.Tasklet)
	IsQueued(t *tasklet.Tasklet) bool
	TimeToNext() (time.Duration, bool)
}

// Board is the button and LED driver.
type Board interface {
	RegisterButton(p gpio.Pin, wake bool) error
	RegisterLED(p gpio.Pin) error
	OnShortPress(p gpio.Pin, mode gpio.PressMode, fn func()) error
	OnLongPress(p gpio.Pin, threshold time.Duration, fn func()) error
	OnHold(p gpio.Pin, threshold time.Duration, fn func()) error
	SetLED(p gpio.Pin, on bool) error
	LED(p gpio.Pin) (bool, error)
	Poll(now time.Time) error
	CanSleep() bool
}

// Device is the KNX device record.
type Device interface {
	Record() knx.Record
	ProgrammingMode() bool
	SetProgrammingMode(on bool)
	Reset(class knx.ResetClass) error
	ToggleDatapoint(url string) (bool, error)
}

// Network is the Thread stack.
type Network interface {
	Role() thread.Role
	SetLinkMode(m thread.LinkMode) error
	EraseJoinCredentials() error
	SendDataPoll() error
	CanSleep() bool
}

// Discovery publishes the device's discovery record.
type Discovery interface {
	PublishDiscovery(rec knx.Record) error
}

// Rebooter restarts the host. Reboot only returns on failure.
type Rebooter interface {
	Reboot() error
}

// Suspender blocks until d elapses or something wakes the device.
type Suspender interface {
	Suspend(d time.Duration)
}

// Deps bundles the collaborators of a Controller.
type Deps struct {
	Tasklets  Tasklets
	Board     Board
	Device    Device
	Network   Network
	Discovery Discovery
	Rebooter  Rebooter
	Suspender Suspender
}
