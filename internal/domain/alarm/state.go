package alarm

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// AckState is the operator-owned part of an alarm, kept outside classification.
type AckState struct {
	Acknowledged bool
	Resolved     bool
	Notes        string
}

// AckStore holds acknowledgement state by alarm id.
type AckStore interface {
	Get(id string) (AckState, bool)
	Put(id string, state AckState)
}

// MemoryAckStore is an in-process AckStore.
type MemoryAckStore struct {
	mu     sync.RWMutex
	states map[string]AckState
}

// NewMemoryAckStore returns an empty store.
func NewMemoryAckStore() *MemoryAckStore {
	return &MemoryAckStore{states: make(map[string]AckState)}
}

// Get implements AckStore.
func (m *MemoryAckStore) Get(id string) (AckState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[id]

	return s, ok
}

// Put implements AckStore.
func (m *MemoryAckStore) Put(id string, state AckState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[id] = state
}

// Merge copies acknowledgement state from store onto freshly classified alarms.
func Merge(alarms []Alarm, store AckStore) []Alarm {
	if store == nil {
		return alarms
	}

	for i := range alarms {
		if st, ok := store.Get(alarms[i].ID); ok {
			alarms[i].Acknowledged = st.Acknowledged
			alarms[i].Resolved = st.Resolved
			alarms[i].Notes = st.Notes
		}
	}

	return alarms
}

// SilenceTracker raises an alarm once both audio channels stayed below
// AudioLevelLow for at least AudioSilenceTime. It keeps the last audible time
// per transmitter, which is why it is separate from Evaluate.
type SilenceTracker struct {
	mu      sync.Mutex
	audible map[string]time.Time
}

// NewSilenceTracker returns a tracker with no history.
func NewSilenceTracker() *SilenceTracker {
	return &SilenceTracker{audible: make(map[string]time.Time)}
}

// Observe records s and returns the silence alarm if the threshold is exceeded.
// Snapshots without audio levels, or from an offline transmitter, reset the history.
func (t *SilenceTracker) Observe(s Snapshot, th Thresholds) (Alarm, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.Status == StatusOffline || s.AudioLevelLeft == nil || s.AudioLevelRight == nil {
		delete(t.audible, s.TransmitterID)

		return Alarm{}, false
	}

	loudest := math.Max(*s.AudioLevelLeft, *s.AudioLevelRight)

	last, seen := t.audible[s.TransmitterID]
	if !seen || loudest >= th.AudioLevelLow {
		t.audible[s.TransmitterID] = s.Timestamp

		return Alarm{}, false
	}

	silent := s.Timestamp.Sub(last)
	if th.AudioSilenceTime <= 0 || silent < th.AudioSilenceTime {
		return Alarm{}, false
	}

	return Alarm{
		ID:            ID(s.TransmitterID, GroupSilence),
		TransmitterID: s.TransmitterID,
		Timestamp:     s.Timestamp,
		Severity:      SeverityHigh,
		Category:      CategoryAudio,
		Message:       fmt.Sprintf("Audio silence for %s", silent.Round(time.Second)),
		Value:         Float(silent.Seconds()),
		Threshold:     Float(th.AudioSilenceTime.Seconds()),
	}, true
}

// Forget drops the history of a transmitter.
func (t *SilenceTracker) Forget(transmitterID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.audible, transmitterID)
}
