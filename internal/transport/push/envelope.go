package push

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Kind tells records apart from state requests.
type Kind string

const (
	KindState   Kind = "state"
	KindRequest Kind = "request"
)

// ErrInvalidEnvelope is returned for payloads that are not envelopes.
var ErrInvalidEnvelope = errors.New("invalid envelope")

// Envelope is the payload of every replicated message.
type Envelope struct {
	Kind   Kind
	Studio string
	// RequestID identifies a state request; replies echo it.
	RequestID string
	// Origin is the client id of the sender.
	Origin string
	SentAt time.Time
	Record *structpb.Struct
}

// Marshal encodes the envelope as protojson.
func (e Envelope) Marshal() ([]byte, error) {
	fields := map[string]*structpb.Value{
		"kind":    structpb.NewStringValue(string(e.Kind)),
		"studio":  structpb.NewStringValue(e.Studio),
		"sent_at": structpb.NewStringValue(e.SentAt.UTC().Format(time.RFC3339Nano)),
	}

	if e.RequestID != "" {
		fields["request_id"] = structpb.NewStringValue(e.RequestID)
	}

	if e.Origin != "" {
		fields["origin"] = structpb.NewStringValue(e.Origin)
	}

	if e.Record != nil {
		fields["record"] = structpb.NewStructValue(e.Record)
	}

	data, err := protojson.Marshal(&structpb.Struct{Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	return data, nil
}

// Unmarshal decodes an envelope produced by Marshal.
func Unmarshal(data []byte) (Envelope, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	f := s.GetFields()

	env := Envelope{
		Kind:      Kind(f["kind"].GetStringValue()),
		Studio:    f["studio"].GetStringValue(),
		RequestID: f["request_id"].GetStringValue(),
		Origin:    f["origin"].GetStringValue(),
		Record:    f["record"].GetStructValue(),
	}

	if env.Kind != KindState && env.Kind != KindRequest {
		return Envelope{}, fmt.Errorf("%w: kind %q", ErrInvalidEnvelope, env.Kind)
	}

	if env.Studio == "" {
		return Envelope{}, fmt.Errorf("%w: missing studio", ErrInvalidEnvelope)
	}

	if env.Kind == KindState && env.Record == nil {
		return Envelope{}, fmt.Errorf("%w: state without record", ErrInvalidEnvelope)
	}

	if raw := f["sent_at"].GetStringValue(); raw != "" {
		sentAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: sent_at: %w", ErrInvalidEnvelope, err)
		}

		env.SentAt = sentAt
	}

	return env, nil
}
