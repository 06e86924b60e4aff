package wire

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/studio-control/internal/domain/alarm"
)

// SnapshotFromStruct decodes a transmitter telemetry sample. Field names
// follow the transmitter controllers: forwardPower, reflectedPower,
// temperature, audioLevelLeft, audioLevelRight, status, alarm, timestamp.
// Missing numbers stay nil; a missing timestamp falls back to received.
func SnapshotFromStruct(transmitterID string, in *structpb.Struct, received time.Time) (alarm.Snapshot, error) {
	f := read(in)

	ts, err := f.time("timestamp")
	if err != nil {
		return alarm.Snapshot{}, err
	}

	if ts.IsZero() {
		ts = received
	}

	if id := f.str("id"); id != "" {
		transmitterID = id
	}

	return alarm.Snapshot{
		TransmitterID:   transmitterID,
		Timestamp:       ts,
		Status:          alarm.TransmitterStatus(f.str("status")),
		ForwardPower:    f.optional("forwardPower"),
		ReflectedPower:  f.optional("reflectedPower"),
		Temperature:     f.optional("temperature"),
		AudioLevelLeft:  f.optional("audioLevelLeft"),
		AudioLevelRight: f.optional("audioLevelRight"),
		HardwareAlarm:   f.boolean("alarm"),
	}, nil
}

func alarmToMap(a alarm.Alarm) map[string]any {
	m := map[string]any{
		"id":             a.ID,
		"transmitter_id": a.TransmitterID,
		"timestamp":      formatTime(a.Timestamp),
		"severity":       a.Severity.String(),
		"category":       a.Category.String(),
		"message":        a.Message,
		"acknowledged":   a.Acknowledged,
		"resolved":       a.Resolved,
	}

	if a.Value != nil {
		m["value"] = *a.Value
	}

	if a.Threshold != nil {
		m["threshold"] = *a.Threshold
	}

	if a.Notes != "" {
		m["notes"] = a.Notes
	}

	return m
}

// AlarmReport encodes a ranked alarm list with its summary for dashboards.
func AlarmReport(alarms []alarm.Alarm, summary alarm.Summary, generated time.Time) (*structpb.Struct, error) {
	list := make([]any, 0, len(alarms))
	for _, a := range alarms {
		list = append(list, alarmToMap(a))
	}

	counts := make(map[string]any, len(alarm.Severities))
	for _, s := range alarm.Severities {
		counts[s.String()] = summary.Counts[s]
	}

	report := map[string]any{
		"generated_at": formatTime(generated),
		"alarms":       list,
		"total":        summary.Total,
		"counts":       counts,
	}

	if summary.Total > 0 {
		report["highest"] = summary.Highest.String()
	}

	return newStruct(report)
}

// AckFromStruct decodes an acknowledgement update: {"id", "acknowledged", "resolved", "notes"}.
func AckFromStruct(in *structpb.Struct) (string, alarm.AckState, error) {
	f := read(in)
	if err := f.require("id"); err != nil {
		return "", alarm.AckState{}, err
	}

	return f.str("id"), alarm.AckState{
		Acknowledged: f.boolean("acknowledged"),
		Resolved:     f.boolean("resolved"),
		Notes:        f.str("notes"),
	}, nil
}
