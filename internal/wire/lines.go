package wire

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/studio-control/internal/domain/callline"
)

func lineToMap(l callline.Line) map[string]any {
	return map[string]any{
		"id":             l.ID,
		"studio":         l.Studio,
		"status":         l.Status.String(),
		"start_time":     formatTime(l.StartTime),
		"contact":        l.Contact,
		"phone_number":   l.PhoneNumber,
		"output_channel": l.OutputChannel,
	}
}

func lineFrom(f fields) (callline.Line, error) {
	status, err := callline.ParseStatus(f.str("status"))
	if err != nil {
		return callline.Line{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	start, err := f.time("start_time")
	if err != nil {
		return callline.Line{}, err
	}

	return callline.Line{
		ID:     int(f.integer("id")),
		Studio: f.str("studio"),
		Status: status,
		Caller: callline.Caller{
			Contact:     f.str("contact"),
			PhoneNumber: f.str("phone_number"),
		},
		StartTime:     start,
		OutputChannel: f.str("output_channel"),
	}, nil
}

// LinesToStruct encodes a studio's pool, e.g. {"studio":"A","lines":[...]}.
func LinesToStruct(studio string, lines []callline.Line) (*structpb.Struct, error) {
	list := make([]any, 0, len(lines))
	for _, l := range lines {
		list = append(list, lineToMap(l))
	}

	return newStruct(map[string]any{
		"studio": studio,
		"lines":  list,
	})
}

// LinesFromStruct decodes a pool encoded by LinesToStruct.
func LinesFromStruct(in *structpb.Struct) (string, []callline.Line, error) {
	f := read(in)

	values := f.list("lines")
	lines := make([]callline.Line, 0, len(values))

	for _, v := range values {
		l, err := lineFrom(read(v.GetStructValue()))
		if err != nil {
			return "", nil, err
		}

		lines = append(lines, l)
	}

	return f.str("studio"), lines, nil
}

// CommandToStruct encodes a call-control request for studio.
func CommandToStruct(studio string, cmd callline.Command) (*structpb.Struct, error) {
	return newStruct(map[string]any{
		"studio":       studio,
		"event":        cmd.Event.String(),
		"line":         cmd.LineID,
		"contact":      cmd.Caller.Contact,
		"phone_number": cmd.Caller.PhoneNumber,
	})
}

// CommandFromStruct decodes a call-control request.
func CommandFromStruct(in *structpb.Struct) (string, callline.Command, error) {
	f := read(in)
	if err := f.require("studio", "event", "line"); err != nil {
		return "", callline.Command{}, err
	}

	event, err := callline.ParseEvent(f.str("event"))
	if err != nil {
		return "", callline.Command{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	return f.str("studio"), callline.Command{
		Event:  event,
		LineID: int(f.integer("line")),
		Caller: callline.Caller{
			Contact:     f.str("contact"),
			PhoneNumber: f.str("phone_number"),
		},
	}, nil
}

// LineRef builds a request naming one line of a studio.
func LineRef(studio string, lineID int) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"studio": structpb.NewStringValue(studio),
		"line":   structpb.NewNumberValue(float64(lineID)),
	}}
}

// LineRefFrom decodes a LineRef request.
func LineRefFrom(in *structpb.Struct) (string, int, error) {
	f := read(in)
	if err := f.require("studio", "line"); err != nil {
		return "", 0, err
	}

	return f.str("studio"), int(f.integer("line")), nil
}

// EntryToStruct encodes a phone-book entry.
func EntryToStruct(e callline.Entry) (*structpb.Struct, error) {
	return newStruct(map[string]any{
		"studio":       e.Studio,
		"contact":      e.Contact,
		"phone_number": e.PhoneNumber,
		"saved_at":     formatTime(e.SavedAt),
	})
}

// EntryFromStruct decodes a phone-book entry.
func EntryFromStruct(in *structpb.Struct) (callline.Entry, error) {
	f := read(in)

	saved, err := f.time("saved_at")
	if err != nil {
		return callline.Entry{}, err
	}

	return callline.Entry{
		Studio:      f.str("studio"),
		Contact:     f.str("contact"),
		PhoneNumber: f.str("phone_number"),
		SavedAt:     saved,
	}, nil
}
