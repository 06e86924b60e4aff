package callline

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Listener receives every batch of changes applied by one command.
// It runs under the board lock and must not call mutating Board methods.
type Listener func(studio string, changes []Change, lines []Line)

// Board owns the call-line pool of one studio.
type Board struct {
	studio string
	now    func() time.Time

	// mu serializes every transition of the studio.
	mu sync.Mutex
	// lines is indexed by line id - 1.
	lines []Line
	// onAir is the id of the on-air line, 0 when none.
	onAir     int
	listeners []Listener

	// snapshot is replaced after every mutation and read without locking.
	snapshot atomic.Pointer[[]Line]
}

// Option configures a Board.
type Option func(*Board)

// WithClock overrides time.Now, used for start times.
func WithClock(now func() time.Time) Option {
	return func(b *Board) {
		if now != nil {
			b.now = now
		}
	}
}

// WithListener registers a change listener.
func WithListener(l Listener) Option {
	return func(b *Board) {
		if l != nil {
			b.listeners = append(b.listeners, l)
		}
	}
}

// NewBoard creates a pool of size inactive lines numbered from 1.
func NewBoard(studio string, size int, opts ...Option) *Board {
	b := &Board{
		studio: studio,
		now:    time.Now,
		lines:  make([]Line, size),
	}

	for i := range b.lines {
		b.lines[i] = Line{ID: i + 1, Studio: studio}
	}

	for _, opt := range opts {
		opt(b)
	}

	b.publishSnapshot()

	return b
}

// Studio returns the studio identifier of the board.
func (b *Board) Studio() string {
	return b.studio
}

// Lines returns the latest snapshot of the pool. The slice must not be modified.
func (b *Board) Lines() []Line {
	return *b.snapshot.Load()
}

// Line returns the latest snapshot of one line.
func (b *Board) Line(id int) (Line, error) {
	lines := b.Lines()
	if id < 1 || id > len(lines) {
		return Line{}, ErrLineNotFound
	}

	return lines[id-1], nil
}

// OnAir returns the line currently on air, if any.
func (b *Board) OnAir() (Line, bool) {
	for _, l := range b.Lines() {
		if l.Status == StatusOnAir {
			return l, true
		}
	}

	return Line{}, false
}

// MakeCall dials out on an inactive line.
func (b *Board) MakeCall(id int, caller Caller) ([]Change, error) {
	return b.Apply(Command{Event: EventMakeCall, LineID: id, Caller: caller})
}

// IncomingCall marks an inactive line as ringing with the caller identity.
func (b *Board) IncomingCall(id int, caller Caller) ([]Change, error) {
	return b.Apply(Command{Event: EventIncomingCall, LineID: id, Caller: caller})
}

// Answer picks up a ringing line.
func (b *Board) Answer(id int) ([]Change, error) {
	return b.Apply(Command{Event: EventAnswer, LineID: id})
}

// Reject drops a ringing line.
func (b *Board) Reject(id int) ([]Change, error) {
	return b.Apply(Command{Event: EventReject, LineID: id})
}

// Hold puts an active line on hold.
func (b *Board) Hold(id int) ([]Change, error) {
	return b.Apply(Command{Event: EventHold, LineID: id})
}

// Resume takes a held line back to active.
func (b *Board) Resume(id int) ([]Change, error) {
	return b.Apply(Command{Event: EventResume, LineID: id})
}

// SendToAir puts the line on air, demoting the previous on-air line to active.
func (b *Board) SendToAir(id int) ([]Change, error) {
	return b.Apply(Command{Event: EventSendToAir, LineID: id})
}

// TakeOffAir returns the on-air line to active.
func (b *Board) TakeOffAir(id int) ([]Change, error) {
	return b.Apply(Command{Event: EventTakeOffAir, LineID: id})
}

// Hangup ends the call on any non-inactive line.
func (b *Board) Hangup(id int) ([]Change, error) {
	return b.Apply(Command{Event: EventHangup, LineID: id})
}

// Apply validates and applies cmd atomically. A rejected command leaves the pool untouched.
func (b *Board) Apply(cmd Command) ([]Change, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cmd.LineID < 1 || cmd.LineID > len(b.lines) {
		return nil, ErrLineNotFound
	}

	line := &b.lines[cmd.LineID-1]

	to, ok := next(line.Status, cmd.Event)
	if !ok {
		return nil, &TransitionError{Studio: b.studio, LineID: line.ID, Status: line.Status, Event: cmd.Event}
	}

	var changes []Change

	// Demote the current holder before promoting, inside the same critical section.
	if to == StatusOnAir && b.onAir != 0 && b.onAir != line.ID {
		holder := &b.lines[b.onAir-1]
		holder.Status = StatusActive
		changes = append(changes, Change{Event: EventTakeOffAir, From: StatusOnAir, Line: *holder})
	}

	from := line.Status
	now := b.now()

	switch cmd.Event {
	case EventMakeCall, EventIncomingCall:
		line.StartTime = now
		line.Caller = cmd.Caller
	case EventAnswer:
		line.StartTime = now
	case EventReject, EventHangup:
		line.StartTime = time.Time{}
		line.Caller = Caller{}
	case EventHold, EventResume, EventSendToAir, EventTakeOffAir:
	}

	line.Status = to

	switch {
	case to == StatusOnAir:
		b.onAir = line.ID
	case from == StatusOnAir:
		b.onAir = 0
	}

	changes = append(changes, Change{Event: cmd.Event, From: from, Line: *line})

	b.publishSnapshot()

	lines := b.Lines()
	for _, l := range b.listeners {
		l(b.studio, changes, lines)
	}

	return changes, nil
}

// SetOutputChannel routes the line to an audio output. Status is unaffected.
func (b *Board) SetOutputChannel(id int, channel string) (Line, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id < 1 || id > len(b.lines) {
		return Line{}, ErrLineNotFound
	}

	b.lines[id-1].OutputChannel = channel
	b.publishSnapshot()

	return b.lines[id-1], nil
}

// SaveToPhoneBook stores the caller of the line in book.
func (b *Board) SaveToPhoneBook(id int, book PhoneBook) (Entry, error) {
	line, err := b.Line(id)
	if err != nil {
		return Entry{}, err
	}

	if line.PhoneNumber == "" {
		return Entry{}, ErrNoPhoneNumber
	}

	entry := Entry{
		Studio:      b.studio,
		Contact:     line.Contact,
		PhoneNumber: line.PhoneNumber,
		SavedAt:     b.now(),
	}

	return book.Save(entry), nil
}

// publishSnapshot must be called with mu held (or before the board is shared).
func (b *Board) publishSnapshot() {
	lines := slices.Clone(b.lines)
	b.snapshot.Store(&lines)
}

// next is the transition table of a line.
func next(from Status, event Event) (Status, bool) {
	if event == EventHangup {
		return StatusInactive, from != StatusInactive
	}

	switch from {
	case StatusInactive:
		switch event { //nolint:exhaustive // Every other event is rejected.
		case EventMakeCall:
			return StatusActive, true
		case EventIncomingCall:
			return StatusRinging, true
		}
	case StatusRinging:
		switch event { //nolint:exhaustive // Every other event is rejected.
		case EventAnswer:
			return StatusActive, true
		case EventReject:
			return StatusInactive, true
		}
	case StatusActive:
		switch event { //nolint:exhaustive // Every other event is rejected.
		case EventHold:
			return StatusHolding, true
		case EventSendToAir:
			return StatusOnAir, true
		}
	case StatusHolding:
		switch event { //nolint:exhaustive // Every other event is rejected.
		case EventResume:
			return StatusActive, true
		case EventSendToAir:
			return StatusOnAir, true
		}
	case StatusOnAir:
		if event == EventTakeOffAir {
			return StatusActive, true
		}
	}

	return from, false
}
