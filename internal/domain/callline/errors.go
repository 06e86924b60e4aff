package callline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an event is not allowed in the line's status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrLineNotFound is returned for line ids outside the pool.
	ErrLineNotFound = errors.New("line not found")
	// ErrStudioNotFound is returned by the switchboard for unknown studios.
	ErrStudioNotFound = errors.New("studio not found")
	// ErrNoPhoneNumber is returned when saving a line without a caller number.
	ErrNoPhoneNumber = errors.New("line has no phone number")
	// ErrUnknownStatus is returned by ParseStatus.
	ErrUnknownStatus = errors.New("unknown line status")
	// ErrUnknownEvent is returned by ParseEvent.
	ErrUnknownEvent = errors.New("unknown line event")
)

// TransitionError reports a rejected event. It matches ErrInvalidTransition.
type TransitionError struct {
	Studio string
	LineID int
	Status Status
	Event  Event
}

// Error implements error.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("studio %s line %d: cannot %s while %s", e.Studio, e.LineID, e.Event, e.Status)
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
