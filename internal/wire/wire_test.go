package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/studio-control/internal/domain/alarm"
	"github.com/oshokin/studio-control/internal/domain/callline"
	"github.com/oshokin/studio-control/internal/domain/operator"
	"github.com/oshokin/studio-control/internal/domain/signal"
	"github.com/oshokin/studio-control/internal/domain/timer"
)

var stamp = time.Date(2026, 3, 1, 9, 30, 0, 123000000, time.UTC)

func TestTimerCodec(t *testing.T) {
	t.Parallel()

	codec := TimerCodec{Policy: timer.Policy{DangerZoneSeconds: 30}}
	state := &timer.State{
		Studio:           "A",
		RemainingSeconds: 25,
		DurationSeconds:  300,
		IsRunning:        true,
		LastUpdate:       stamp,
		UpdatedBy:        &operator.Actor{Hostname: "desk-1", Username: "anna", Role: operator.RoleProducer},
	}

	encoded, err := codec.ToStruct(state)
	require.NoError(t, err)

	decoded, err := codec.FromStruct(encoded)
	require.NoError(t, err)
	require.Equal(t, "A", decoded.Studio)
	require.Equal(t, 25, decoded.RemainingSeconds)
	require.True(t, decoded.IsRunning)
	require.True(t, decoded.IsDangerZone)
	require.True(t, stamp.Equal(decoded.LastUpdate))
	require.Equal(t, *state.UpdatedBy, *decoded.UpdatedBy)
}

func TestTimerCodecRecomputesDangerFlag(t *testing.T) {
	t.Parallel()

	codec := TimerCodec{Policy: timer.Policy{DangerZoneSeconds: 30}}

	in, err := structpb.NewStruct(map[string]any{
		"studio":            "B",
		"remaining_seconds": -5,
		"is_running":        false,
		"is_danger_zone":    false,
	})
	require.NoError(t, err)

	decoded, err := codec.FromStruct(in)
	require.NoError(t, err)
	require.Zero(t, decoded.RemainingSeconds)
	require.True(t, decoded.IsDangerZone)
	require.Nil(t, decoded.UpdatedBy)
}

func TestTimerCodecRejectsIncomplete(t *testing.T) {
	t.Parallel()

	codec := TimerCodec{}

	_, err := codec.FromStruct(Studio("A"))
	require.ErrorIs(t, err, ErrInvalidRecord)

	in, err := structpb.NewStruct(map[string]any{
		"studio":            "A",
		"remaining_seconds": 10,
		"is_running":        true,
		"last_update":       "yesterday",
	})
	require.NoError(t, err)

	_, err = codec.FromStruct(in)
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestSignalCodec(t *testing.T) {
	t.Parallel()

	sig, err := signal.Chat(signal.Empty("A"), "wrap it up", &operator.Actor{Username: "anna"}, stamp)
	require.NoError(t, err)

	encoded, err := SignalCodec{}.ToStruct(sig)
	require.NoError(t, err)

	decoded, err := SignalCodec{}.FromStruct(encoded)
	require.NoError(t, err)
	require.Equal(t, signal.KindChat, decoded.Kind)
	require.Equal(t, "wrap it up", decoded.Text)
	require.Equal(t, sig.Sequence, decoded.Sequence)
	require.Equal(t, "anna", decoded.Sender.Username)
}

func TestLines(t *testing.T) {
	t.Parallel()

	lines := []callline.Line{
		{ID: 0, Studio: "A"},
		{
			ID:            1,
			Studio:        "A",
			Status:        callline.StatusOnAir,
			StartTime:     stamp,
			Caller:        callline.Caller{Contact: "Bob", PhoneNumber: "+100"},
			OutputChannel: "aux-2",
		},
	}

	encoded, err := LinesToStruct("A", lines)
	require.NoError(t, err)

	studio, decoded, err := LinesFromStruct(encoded)
	require.NoError(t, err)
	require.Equal(t, "A", studio)
	require.Len(t, decoded, 2)
	require.Equal(t, callline.StatusInactive, decoded[0].Status)
	require.True(t, decoded[0].StartTime.IsZero())
	require.Equal(t, callline.StatusOnAir, decoded[1].Status)
	require.Equal(t, "Bob", decoded[1].Contact)
	require.Equal(t, "aux-2", decoded[1].OutputChannel)
	require.True(t, stamp.Equal(decoded[1].StartTime))
}

func TestCommand(t *testing.T) {
	t.Parallel()

	cmd := callline.Command{
		Event:  callline.EventMakeCall,
		LineID: 3,
		Caller: callline.Caller{PhoneNumber: "+200"},
	}

	encoded, err := CommandToStruct("B", cmd)
	require.NoError(t, err)

	studio, decoded, err := CommandFromStruct(encoded)
	require.NoError(t, err)
	require.Equal(t, "B", studio)
	require.Equal(t, cmd, decoded)

	encoded.Fields["event"] = structpb.NewStringValue("explode")

	_, _, err = CommandFromStruct(encoded)
	require.ErrorIs(t, err, ErrInvalidRecord)
	require.ErrorIs(t, err, callline.ErrUnknownEvent)
}

func TestLineRef(t *testing.T) {
	t.Parallel()

	studio, id, err := LineRefFrom(LineRef("C", 4))
	require.NoError(t, err)
	require.Equal(t, "C", studio)
	require.Equal(t, 4, id)

	_, _, err = LineRefFrom(Studio("C"))
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestStudioOf(t *testing.T) {
	t.Parallel()

	studio, err := StudioOf(Studio("A"))
	require.NoError(t, err)
	require.Equal(t, "A", studio)

	_, err = StudioOf(&structpb.Struct{})
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestSnapshotFromStruct(t *testing.T) {
	t.Parallel()

	in, err := structpb.NewStruct(map[string]any{
		"status":         "online",
		"forwardPower":   40.0,
		"reflectedPower": 10.0,
		"audioLevelLeft": -12.5,
		"alarm":          true,
		"timestamp":      stamp.Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	received := stamp.Add(time.Minute)

	snap, err := SnapshotFromStruct("tx-1", in, received)
	require.NoError(t, err)
	require.Equal(t, "tx-1", snap.TransmitterID)
	require.Equal(t, alarm.StatusOnline, snap.Status)
	require.InDelta(t, 40.0, *snap.ForwardPower, 1e-9)
	require.Nil(t, snap.Temperature)
	require.Nil(t, snap.AudioLevelRight)
	require.True(t, snap.HardwareAlarm)
	require.True(t, stamp.Equal(snap.Timestamp))

	delete(in.Fields, "timestamp")
	in.Fields["id"] = structpb.NewStringValue("tx-9")

	snap, err = SnapshotFromStruct("tx-1", in, received)
	require.NoError(t, err)
	require.Equal(t, "tx-9", snap.TransmitterID)
	require.True(t, received.Equal(snap.Timestamp))
}

func TestAlarmReport(t *testing.T) {
	t.Parallel()

	value, threshold := 12.0, 20.0
	alarms := []alarm.Alarm{{
		ID:            "tx-1:forward",
		TransmitterID: "tx-1",
		Timestamp:     stamp,
		Severity:      alarm.SeverityCritical,
		Category:      alarm.CategoryPower,
		Message:       "forward power low",
		Value:         &value,
		Threshold:     &threshold,
	}}

	report, err := AlarmReport(alarms, alarm.Summarize(alarms), stamp)
	require.NoError(t, err)

	f := read(report)
	require.Equal(t, "critical", f.str("highest"))
	require.EqualValues(t, 1, f.integer("total"))
	require.EqualValues(t, 1, f.object("counts").integer("critical"))

	list := f.list("alarms")
	require.Len(t, list, 1)
	require.Equal(t, "tx-1:forward", read(list[0].GetStructValue()).str("id"))
	require.InDelta(t, 12.0, read(list[0].GetStructValue()).num("value"), 1e-9)

	empty, err := AlarmReport(nil, alarm.Summarize(nil), stamp)
	require.NoError(t, err)
	require.False(t, read(empty).has("highest"))
}

func TestAckFromStruct(t *testing.T) {
	t.Parallel()

	in, err := structpb.NewStruct(map[string]any{"id": "tx-1:temperature", "acknowledged": true, "notes": "fan swap"})
	require.NoError(t, err)

	id, state, err := AckFromStruct(in)
	require.NoError(t, err)
	require.Equal(t, "tx-1:temperature", id)
	require.True(t, state.Acknowledged)
	require.False(t, state.Resolved)
	require.Equal(t, "fan swap", state.Notes)
}
