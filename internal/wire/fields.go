package wire

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/studio-control/internal/domain/operator"
)

// ErrInvalidRecord is returned when a Struct lacks required fields.
var ErrInvalidRecord = errors.New("invalid record")

// fields wraps a Struct for typed, presence-aware reads.
type fields map[string]*structpb.Value

func read(s *structpb.Struct) fields {
	return fields(s.GetFields())
}

func (f fields) has(key string) bool {
	v, ok := f[key]
	if !ok || v == nil {
		return false
	}

	_, isNull := v.GetKind().(*structpb.Value_NullValue)

	return !isNull
}

func (f fields) str(key string) string {
	return f[key].GetStringValue()
}

func (f fields) num(key string) float64 {
	return f[key].GetNumberValue()
}

func (f fields) integer(key string) int64 {
	return int64(f[key].GetNumberValue())
}

func (f fields) boolean(key string) bool {
	return f[key].GetBoolValue()
}

// optional returns nil for absent or non-numeric keys.
func (f fields) optional(key string) *float64 {
	v, ok := f[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil
	}

	n := v.NumberValue

	return &n
}

func (f fields) time(key string) (time.Time, error) {
	raw := f.str(key)
	if raw == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %w", ErrInvalidRecord, key, err)
	}

	return t, nil
}

func (f fields) object(key string) fields {
	return read(f[key].GetStructValue())
}

func (f fields) list(key string) []*structpb.Value {
	return f[key].GetListValue().GetValues()
}

// require returns ErrInvalidRecord naming the first missing key.
func (f fields) require(keys ...string) error {
	for _, k := range keys {
		if !f.has(k) {
			return fmt.Errorf("%w: missing %q", ErrInvalidRecord, k)
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func actorToMap(a *operator.Actor) any {
	if a == nil {
		return nil
	}

	return map[string]any{
		"hostname": a.Hostname,
		"username": a.Username,
		"role":     string(a.Role),
	}
}

func actorFrom(f fields) *operator.Actor {
	if len(f) == 0 {
		return nil
	}

	return &operator.Actor{
		Hostname: f.str("hostname"),
		Username: f.str("username"),
		Role:     operator.Role(f.str("role")),
	}
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}

	return s, nil
}

// Studio builds the request of a read endpoint.
func Studio(studio string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"studio": structpb.NewStringValue(studio),
	}}
}

// StudioOf returns the studio field of a request.
func StudioOf(s *structpb.Struct) (string, error) {
	f := read(s)
	if f.str("studio") == "" {
		return "", fmt.Errorf("%w: missing %q", ErrInvalidRecord, "studio")
	}

	return f.str("studio"), nil
}
