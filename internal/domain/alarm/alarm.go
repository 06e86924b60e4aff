package alarm

import "time"

// TransmitterStatus is the link state reported by a transmitter.
type TransmitterStatus string

const (
	StatusOnline  TransmitterStatus = "online"
	StatusOffline TransmitterStatus = "offline"
	StatusUnknown TransmitterStatus = ""
)

// Snapshot is one telemetry sample. Nil numeric fields were not reported.
type Snapshot struct {
	TransmitterID   string
	Timestamp       time.Time
	Status          TransmitterStatus
	ForwardPower    *float64
	ReflectedPower  *float64
	Temperature     *float64
	AudioLevelLeft  *float64
	AudioLevelRight *float64
	// HardwareAlarm is the raw alarm flag of the transmitter controller.
	HardwareAlarm bool
}

// Alarm is one classified condition of a transmitter.
type Alarm struct {
	// ID is stable per transmitter and rule so acknowledgements survive re-classification.
	ID            string
	TransmitterID string
	Timestamp     time.Time
	Severity      Severity
	Category      Category
	Message       string
	Value         *float64
	Threshold     *float64
	Acknowledged  bool
	Resolved      bool
	Notes         string
}

// Float returns a pointer to v, for building snapshots.
func Float(v float64) *float64 {
	return &v
}
