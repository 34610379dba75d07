package thread

// FakeNetwork is a test double for the network stack.
type FakeNetwork struct {
	// RoleValue is returned by Role.
	RoleValue Role

	// Mode is the last link mode set.
	Mode LinkMode

	// ModeChanges records every SetLinkMode call.
	ModeChanges []LinkMode

	// Sleepable is returned by CanSleep.
	Sleepable bool

	Erased        int
	FactoryResets int
	Polls         int
	Joins         int

	// JoinAttaches, when set, makes the nth Join change the role to child.
	JoinAttaches int

	ModeError  error
	EraseError error
	PollError  error
	JoinError  error
}

// NewFakeNetwork returns a detached network that allows sleep.
func NewFakeNetwork() *FakeNetwork {
	return &FakeNetwork{RoleValue: RoleDetached, Sleepable: true}
}

func (f *FakeNetwork) Role() Role { return f.RoleValue }

func (f *FakeNetwork) SetLinkMode(m LinkMode) error {
	if f.ModeError != nil {
		return f.ModeError
	}
	f.Mode = m
	f.ModeChanges = append(f.ModeChanges, m)
	return nil
}

func (f *FakeNetwork) EraseJoinCredentials() error {
	if f.EraseError != nil {
		return f.EraseError
	}
	f.Erased++
	return nil
}

func (f *FakeNetwork) FactoryReset() error {
	if f.EraseError != nil {
		return f.EraseError
	}
	f.FactoryResets++
	return nil
}

func (f *FakeNetwork) SendDataPoll() error {
	if f.PollError != nil {
		return f.PollError
	}
	f.Polls++
	return nil
}

func (f *FakeNetwork) CanSleep() bool { return f.Sleepable }

func (f *FakeNetwork) Join(pskd string) error {
	f.Joins++
	if f.JoinError != nil {
		return f.JoinError
	}
	if f.JoinAttaches > 0 && f.Joins >= f.JoinAttaches {
		f.RoleValue = RoleChild
	}
	return nil
}
