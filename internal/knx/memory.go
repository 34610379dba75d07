package knx

// MemoryStore keeps device state in memory. It is used in tests and when no
// database path is configured.
type MemoryStore struct {
	Devices map[string]State

	// SaveError, if set, will be returned by SaveDevice.
	SaveError error

	// Saves counts SaveDevice calls.
	Saves int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Devices: make(map[string]State)}
}

// LoadDevice returns the stored state for serial.
func (m *MemoryStore) LoadDevice(serial string) (State, bool, error) {
	st, ok := m.Devices[serial]
	return st, ok, nil
}

// SaveDevice stores st.
func (m *MemoryStore) SaveDevice(st State) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.Saves++
	m.Devices[st.Serial] = st
	return nil
}
