// Package timer holds the per-studio countdown record and the pure actions
// that produce its next value.
package timer

import (
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/studio-control/internal/domain/operator"
)

// State is the replicated countdown record of one studio.
// Every write carries the whole record.
type State struct {
	Studio           string
	RemainingSeconds int
	// DurationSeconds is the value restored by reset.
	DurationSeconds int
	IsRunning       bool
	// IsDangerZone is derived from RemainingSeconds; see Policy.Normalize.
	IsDangerZone bool
	// LastUpdate is the time of the authoritative write.
	LastUpdate time.Time
	UpdatedBy  *operator.Actor
}

// StudioID returns the studio the record belongs to.
func (s *State) StudioID() string {
	return s.Studio
}

// UpdatedAt returns the authoritative write time.
func (s *State) UpdatedAt() time.Time {
	return s.LastUpdate
}

// Clone returns a copy that shares nothing with s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	c := *s
	c.UpdatedBy = s.UpdatedBy.Clone()

	return &c
}

// Remaining returns the remaining time as a duration.
func (s *State) Remaining() time.Duration {
	return time.Duration(s.RemainingSeconds) * time.Second
}

// String renders the record as mm:ss with flags, for logs.
func (s *State) String() string {
	flags := "paused"
	if s.IsRunning {
		flags = "running"
	}

	if s.IsDangerZone {
		flags += ",danger"
	}

	return fmt.Sprintf("%s %02d:%02d (%s)", s.Studio, s.RemainingSeconds/60, s.RemainingSeconds%60, flags)
}

// ActionKind enumerates producer timer controls.
type ActionKind uint8

const (
	ActionStart ActionKind = iota + 1
	ActionPause
	ActionReset
	ActionSetDuration
	// ActionTick is issued by the producer once per tick while running.
	ActionTick
)

// String returns the action name.
func (k ActionKind) String() string {
	switch k {
	case ActionStart:
		return "start"
	case ActionPause:
		return "pause"
	case ActionReset:
		return "reset"
	case ActionSetDuration:
		return "set-duration"
	case ActionTick:
		return "tick"
	default:
		return fmt.Sprintf("action(%d)", uint8(k))
	}
}

// Action is one timer control.
type Action struct {
	Kind ActionKind
	// Seconds is the new duration for ActionSetDuration.
	Seconds int
}

var (
	// ErrNegativeDuration is returned for durations below zero.
	ErrNegativeDuration = errors.New("duration must not be negative")
	// ErrExpired is returned when starting a timer with no time left.
	ErrExpired = errors.New("timer has expired, reset it first")
	// ErrUnknownAction is returned for action kinds outside the enum.
	ErrUnknownAction = errors.New("unknown timer action")
)

// Policy holds the derivation rules shared by every console.
type Policy struct {
	// DangerZoneSeconds is the remaining time at or below which the danger flag is set.
	DangerZoneSeconds int
}

// NewPolicy builds a policy from a configured danger-zone duration.
func NewPolicy(dangerZone time.Duration) Policy {
	return Policy{DangerZoneSeconds: int(dangerZone / time.Second)}
}

// Normalize clamps RemainingSeconds and recomputes IsDangerZone in place.
func (p Policy) Normalize(s *State) *State {
	if s == nil {
		return nil
	}

	if s.RemainingSeconds < 0 {
		s.RemainingSeconds = 0
	}

	if s.DurationSeconds < 0 {
		s.DurationSeconds = 0
	}

	s.IsDangerZone = s.RemainingSeconds <= p.DangerZoneSeconds

	return s
}

// Initial returns the record a studio starts with: full duration, not running.
func (p Policy) Initial(studio string, duration time.Duration, now time.Time) *State {
	seconds := int(duration / time.Second)

	return p.Normalize(&State{
		Studio:           studio,
		RemainingSeconds: seconds,
		DurationSeconds:  seconds,
		LastUpdate:       now,
	})
}

// Apply computes the record that follows cur under a. cur is not modified.
func (p Policy) Apply(cur *State, a Action, actor *operator.Actor, now time.Time) (*State, error) {
	next := cur.Clone()

	switch a.Kind {
	case ActionStart:
		if next.RemainingSeconds <= 0 {
			return nil, ErrExpired
		}

		next.IsRunning = true
	case ActionPause:
		next.IsRunning = false
	case ActionReset:
		next.IsRunning = false
		next.RemainingSeconds = next.DurationSeconds
	case ActionSetDuration:
		if a.Seconds < 0 {
			return nil, ErrNegativeDuration
		}

		next.IsRunning = false
		next.DurationSeconds = a.Seconds
		next.RemainingSeconds = a.Seconds
	case ActionTick:
		if !next.IsRunning {
			return next, nil
		}

		next.RemainingSeconds--
		if next.RemainingSeconds <= 0 {
			next.RemainingSeconds = 0
			next.IsRunning = false
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, a.Kind)
	}

	next.LastUpdate = now
	next.UpdatedBy = actor.Clone()

	return p.Normalize(next), nil
}

// LocalTick advances a follower's display copy by one second.
// The result is never committed and keeps LastUpdate unchanged.
func (p Policy) LocalTick(s *State) *State {
	if s == nil || !s.IsRunning || s.RemainingSeconds <= 0 {
		return s
	}

	next := s.Clone()
	next.RemainingSeconds--

	return p.Normalize(next)
}

// Differs reports whether two records disagree on running state or by more
// than tolerance on remaining time.
func Differs(a, b *State, tolerance time.Duration) bool {
	if a == nil || b == nil {
		return a != b
	}

	if a.IsRunning != b.IsRunning {
		return true
	}

	diff := a.Remaining() - b.Remaining()
	if diff < 0 {
		diff = -diff
	}

	return diff > tolerance
}

// Running reports whether the record is counting down.
func Running(s *State) bool {
	return s != nil && s.IsRunning
}
