package wire

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/studio-control/internal/domain/signal"
	"github.com/oshokin/studio-control/internal/domain/timer"
)

// TimerCodec encodes timer records. Decoding recomputes the danger flag with Policy.
type TimerCodec struct {
	Policy timer.Policy
}

// ToStruct encodes a timer record.
func (TimerCodec) ToStruct(s *timer.State) (*structpb.Struct, error) {
	return newStruct(map[string]any{
		"studio":            s.Studio,
		"remaining_seconds": s.RemainingSeconds,
		"duration_seconds":  s.DurationSeconds,
		"is_running":        s.IsRunning,
		"is_danger_zone":    s.IsDangerZone,
		"last_update":       formatTime(s.LastUpdate),
		"updated_by":        actorToMap(s.UpdatedBy),
	})
}

// FromStruct decodes a timer record.
func (c TimerCodec) FromStruct(in *structpb.Struct) (*timer.State, error) {
	f := read(in)
	if err := f.require("studio", "remaining_seconds", "is_running"); err != nil {
		return nil, err
	}

	lastUpdate, err := f.time("last_update")
	if err != nil {
		return nil, err
	}

	return c.Policy.Normalize(&timer.State{
		Studio:           f.str("studio"),
		RemainingSeconds: int(f.integer("remaining_seconds")),
		DurationSeconds:  int(f.integer("duration_seconds")),
		IsRunning:        f.boolean("is_running"),
		LastUpdate:       lastUpdate,
		UpdatedBy:        actorFrom(f.object("updated_by")),
	}), nil
}

// SignalCodec encodes buzzer/chat records.
type SignalCodec struct{}

// ToStruct encodes a signal record.
func (SignalCodec) ToStruct(s *signal.Signal) (*structpb.Struct, error) {
	return newStruct(map[string]any{
		"studio":      s.Studio,
		"kind":        string(s.Kind),
		"text":        s.Text,
		"sequence":    s.Sequence,
		"sender":      actorToMap(s.Sender),
		"last_update": formatTime(s.LastUpdate),
	})
}

// FromStruct decodes a signal record.
func (SignalCodec) FromStruct(in *structpb.Struct) (*signal.Signal, error) {
	f := read(in)
	if err := f.require("studio"); err != nil {
		return nil, err
	}

	lastUpdate, err := f.time("last_update")
	if err != nil {
		return nil, err
	}

	return &signal.Signal{
		Studio:     f.str("studio"),
		Kind:       signal.Kind(f.str("kind")),
		Text:       f.str("text"),
		Sequence:   f.integer("sequence"),
		Sender:     actorFrom(f.object("sender")),
		LastUpdate: lastUpdate,
	}, nil
}
