package sensor

import "sort"

// TareState holds named offsets that are subtracted from raw samples. It is owned by one sensor and
// guarded by that sensor's lock.
type TareState struct {
	offsets map[string]float64
}

// NewTareState returns a TareState with every named offset at zero.
func NewTareState(names ...string) *TareState {
	offsets := make(map[string]float64, len(names))
	for _, name := range names {
		offsets[name] = 0
	}
	return &TareState{offsets: offsets}
}

// Get returns the named offset.
func (t *TareState) Get(name string) float64 {
	return t.offsets[name]
}

// Set replaces the named offsets. Names the state was not created with are ignored.
func (t *TareState) Set(values map[string]float64) {
	for name, v := range values {
		if _, ok := t.offsets[name]; ok {
			t.offsets[name] = v
		}
	}
}

// Reset sets every offset to zero.
func (t *TareState) Reset() {
	for name := range t.offsets {
		t.offsets[name] = 0
	}
}

// Snapshot returns a copy of the offsets.
func (t *TareState) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(t.offsets))
	for name, v := range t.offsets {
		out[name] = v
	}
	return out
}

// Names returns the offset names in sorted order.
func (t *TareState) Names() []string {
	names := make([]string, 0, len(t.offsets))
	for name := range t.offsets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
