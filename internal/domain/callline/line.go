package callline

import (
	"fmt"
	"time"
)

// Status is the lifecycle position of a call line.
type Status uint8

const (
	StatusInactive Status = iota
	StatusRinging
	StatusActive
	StatusHolding
	StatusOnAir
)

var statusNames = [...]string{
	StatusInactive: "inactive",
	StatusRinging:  "ringing",
	StatusActive:   "active",
	StatusHolding:  "holding",
	StatusOnAir:    "on-air",
}

// String returns the wire name of the status.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}

	return fmt.Sprintf("status(%d)", uint8(s))
}

// ParseStatus converts a wire name back to a Status.
func ParseStatus(s string) (Status, error) {
	for i, name := range statusNames {
		if name == s {
			return Status(i), nil
		}
	}

	return StatusInactive, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Event is an operator or network action applied to a line.
type Event uint8

const (
	EventMakeCall Event = iota
	EventIncomingCall
	EventAnswer
	EventReject
	EventHold
	EventResume
	EventSendToAir
	EventTakeOffAir
	EventHangup
)

var eventNames = [...]string{
	EventMakeCall:     "make-call",
	EventIncomingCall: "incoming-call",
	EventAnswer:       "answer",
	EventReject:       "reject",
	EventHold:         "hold",
	EventResume:       "resume",
	EventSendToAir:    "send-to-air",
	EventTakeOffAir:   "take-off-air",
	EventHangup:       "hangup",
}

// String returns the wire name of the event.
func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}

	return fmt.Sprintf("event(%d)", uint8(e))
}

// ParseEvent converts a wire name back to an Event.
func ParseEvent(s string) (Event, error) {
	for i, name := range eventNames {
		if name == s {
			return Event(i), nil
		}
	}

	return EventMakeCall, fmt.Errorf("%w: %q", ErrUnknownEvent, s)
}

// Caller identifies the other party of a call.
type Caller struct {
	Contact     string
	PhoneNumber string
}

// Line is one phone line of a studio pool.
type Line struct {
	ID     int
	Studio string
	Status Status
	// StartTime is zero while the line is inactive.
	StartTime time.Time
	Caller
	// OutputChannel is the audio route, kept across calls.
	OutputChannel string
}

// Elapsed returns how long the current call has lasted at now.
func (l Line) Elapsed(now time.Time) time.Duration {
	if l.StartTime.IsZero() || now.Before(l.StartTime) {
		return 0
	}

	return now.Sub(l.StartTime)
}

// Command is a single request against a board.
type Command struct {
	Event  Event
	LineID int
	// Caller is used by make-call and incoming-call.
	Caller Caller
}

// Change describes one line moving between statuses.
type Change struct {
	Event Event
	From  Status
	Line  Line
}
