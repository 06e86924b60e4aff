// Package signal holds the buzzer and chat record a producer pushes to the
// talent consoles of a studio. It replicates the same way as the timer.
package signal

import (
	"errors"
	"time"

	"github.com/oshokin/studio-control/internal/domain/operator"
)

// Kind distinguishes signal types.
type Kind string

const (
	KindNone   Kind = ""
	KindBuzzer Kind = "buzzer"
	KindChat   Kind = "chat"
)

// Signal is the latest signal sent to a studio.
type Signal struct {
	Studio string
	Kind   Kind
	Text   string
	// Sequence increases with every signal so followers notice repeats of the same text.
	Sequence   int64
	Sender     *operator.Actor
	LastUpdate time.Time
}

// ErrEmptyChat is returned when a chat message has no text.
var ErrEmptyChat = errors.New("chat message is empty")

// StudioID returns the studio the signal belongs to.
func (s *Signal) StudioID() string {
	return s.Studio
}

// UpdatedAt returns the write time.
func (s *Signal) UpdatedAt() time.Time {
	return s.LastUpdate
}

// Clone returns a copy that shares nothing with s.
func (s *Signal) Clone() *Signal {
	if s == nil {
		return nil
	}

	c := *s
	c.Sender = s.Sender.Clone()

	return &c
}

// Empty returns the record of a studio that never received a signal.
func Empty(studio string) *Signal {
	return &Signal{Studio: studio}
}

// Buzz returns the signal following cur with a buzzer.
func Buzz(cur *Signal, sender *operator.Actor, now time.Time) *Signal {
	return advance(cur, KindBuzzer, "", sender, now)
}

// Chat returns the signal following cur with a chat message.
func Chat(cur *Signal, text string, sender *operator.Actor, now time.Time) (*Signal, error) {
	if text == "" {
		return nil, ErrEmptyChat
	}

	return advance(cur, KindChat, text, sender, now), nil
}

func advance(cur *Signal, kind Kind, text string, sender *operator.Actor, now time.Time) *Signal {
	next := cur.Clone()
	next.Kind = kind
	next.Text = text
	next.Sequence++
	next.Sender = sender.Clone()
	next.LastUpdate = now

	return next
}
