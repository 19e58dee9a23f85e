package gpio

// FakeLamp is a test double that records every value driven to the lamp.
type FakeLamp struct {
	// Values contains every state passed to Set, in order.
	Values []bool

	// SetError, if set, will be returned by Set and the value not recorded.
	SetError error
}

// NewFakeLamp creates a FakeLamp.
func NewFakeLamp() *FakeLamp {
	return &FakeLamp{}
}

// Set records the driven state.
func (f *FakeLamp) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, on)
	return nil
}

// On reports the last driven state (false if never driven).
func (f *FakeLamp) On() bool {
	if len(f.Values) == 0 {
		return false
	}
	return f.Values[len(f.Values)-1]
}

// Reset clears recorded values.
func (f *FakeLamp) Reset() {
	f.Values = nil
	f.SetError = nil
}

// FakeSwitch stands in for the switch input line. Bounce replays a burst of
// raw edges through the handler the way the kernel would deliver them.
type FakeSwitch struct {
	onEdge func()
	level  bool
	Edges  int
}

// NewFakeSwitch creates a FakeSwitch that calls onEdge for each edge.
func NewFakeSwitch(onEdge func()) *FakeSwitch {
	return &FakeSwitch{onEdge: onEdge}
}

// Flip inverts the level and delivers one edge.
func (f *FakeSwitch) Flip() {
	f.level = !f.level
	f.Edges++
	f.onEdge()
}

// Bounce delivers n edges back to back.
func (f *FakeSwitch) Bounce(n int) {
	for i := 0; i < n; i++ {
		f.Flip()
	}
}

// SwitchLevel returns the simulated raw level.
func (f *FakeSwitch) SwitchLevel() (bool, error) {
	return f.level, nil
}
