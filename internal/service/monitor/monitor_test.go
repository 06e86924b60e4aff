package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/studio-control/internal/domain/alarm"
	"github.com/oshokin/studio-control/internal/transport/push"
)

func publishJSON(t *testing.T, broker *push.Broker, topic string, payload map[string]any) {
	t.Helper()

	in, err := structpb.NewStruct(payload)
	require.NoError(t, err)

	data, err := protojson.Marshal(in)
	require.NoError(t, err)

	require.NoError(t, broker.Publish(context.Background(), topic, data))
}

func healthy(ts time.Time) map[string]any {
	return map[string]any{
		"forwardPower":    1000.0,
		"reflectedPower":  5.0,
		"temperature":     30.0,
		"audioLevelLeft":  -12.0,
		"audioLevelRight": -12.0,
		"status":          "online",
		"timestamp":       ts.UTC().Format(time.RFC3339Nano),
	}
}

// TestMonitor_ClassifiesPublishedTelemetry ensures telemetry from the broker ends up ranked in the report.
func TestMonitor_ClassifiesPublishedTelemetry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	broker := push.NewBroker()
	m := New(broker, "studio", "transmitter/+/telemetry", nil, WithClock(func() time.Time { return now }))

	reports := make(chan *structpb.Struct, 1)
	_, err := broker.Subscribe(ctx, push.AlarmReportTopic("studio"), func(_ string, payload []byte) {
		report := new(structpb.Struct)
		if protojson.Unmarshal(payload, report) == nil {
			reports <- report
		}
	})
	require.NoError(t, err)

	unsubscribe, err := broker.Subscribe(ctx, "transmitter/+/telemetry", m.onTelemetry(ctx))
	require.NoError(t, err)

	defer unsubscribe()

	weak := healthy(now)
	weak["forwardPower"] = 40.0
	publishJSON(t, broker, "transmitter/tx-1/telemetry", weak)

	hot := healthy(now.Add(-time.Minute))
	hot["temperature"] = 55.0
	publishJSON(t, broker, "transmitter/tx-2/telemetry", hot)
	publishJSON(t, broker, "transmitter/tx-3/telemetry", map[string]any{"status": "offline"})

	// Malformed payloads are dropped.
	require.NoError(t, broker.Publish(ctx, "transmitter/tx-4/telemetry", []byte("{not json")))

	summary, err := m.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, alarm.SeverityCritical, summary.Highest)
	require.Equal(t, 2, summary.Counts[alarm.SeverityCritical])

	alarms := m.Alarms()
	require.Equal(t, "tx-1:forward_power", alarms[0].ID)
	require.Equal(t, "tx-3:connection", alarms[1].ID)
	require.Equal(t, "tx-2:temperature", alarms[2].ID)

	report := <-reports
	require.EqualValues(t, 3, report.GetFields()["total"].GetNumberValue())
	require.Equal(t, "critical", report.GetFields()["highest"].GetStringValue())
}

// TestMonitor_IgnoresOlderSamples ensures a late sample does not replace a newer one.
func TestMonitor_IgnoresOlderSamples(t *testing.T) {
	t.Parallel()

	now := time.Now()
	m := New(push.NewBroker(), "studio", "transmitter/+/telemetry", nil)

	m.Observe(alarm.Snapshot{TransmitterID: "tx", Timestamp: now, Status: alarm.StatusOffline})
	m.Observe(alarm.Snapshot{TransmitterID: "tx", Timestamp: now.Add(-time.Second), Status: alarm.StatusOnline})

	alarms := m.Alarms()
	require.Len(t, alarms, 1)
	require.Equal(t, alarm.CategoryConnection, alarms[0].Category)

	m.Forget("tx")
	require.Empty(t, m.Alarms())
}

// TestMonitor_MergesAcknowledgements ensures acks published on the broker survive reclassification.
func TestMonitor_MergesAcknowledgements(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	broker := push.NewBroker()
	m := New(broker, "studio", "transmitter/+/telemetry", nil)

	unsubscribe, err := broker.Subscribe(ctx, push.AlarmAckTopic("studio"), m.onAck(ctx))
	require.NoError(t, err)

	defer unsubscribe()

	m.Observe(alarm.Snapshot{TransmitterID: "tx", Timestamp: time.Now(), Status: alarm.StatusOffline})

	publishJSON(t, broker, push.AlarmAckTopic("studio"), map[string]any{
		"id":           "tx:connection",
		"acknowledged": true,
		"notes":        "engineer on site",
	})
	publishJSON(t, broker, push.AlarmAckTopic("studio"), map[string]any{"acknowledged": true})

	alarms := m.Alarms()
	require.Len(t, alarms, 1)
	require.True(t, alarms[0].Acknowledged)
	require.False(t, alarms[0].Resolved)
	require.Equal(t, "engineer on site", alarms[0].Notes)

	filtered := alarm.FilterAlarms(alarms, alarm.Filter{Text: "ON SITE"})
	require.Len(t, filtered, 1)
}

// TestUnresolvedCounts ensures resolved alarms are left out of the active alarm gauge.
func TestUnresolvedCounts(t *testing.T) {
	t.Parallel()

	counts := unresolvedCounts([]alarm.Alarm{
		{ID: "tx-1:connection", Severity: alarm.SeverityCritical},
		{ID: "tx-2:connection", Severity: alarm.SeverityCritical, Resolved: true},
		{ID: "tx-2:temperature", Severity: alarm.SeverityHigh, Acknowledged: true},
	})

	require.Equal(t, 1, counts[alarm.SeverityCritical.String()])
	require.Equal(t, 1, counts[alarm.SeverityHigh.String()])
	require.Zero(t, counts[alarm.SeverityLow.String()])
	require.Len(t, counts, len(alarm.Severities))
}

// TestMonitor_SilenceAlarm ensures a long silent stretch raises the audio silence alarm.
func TestMonitor_SilenceAlarm(t *testing.T) {
	t.Parallel()

	start := time.Now()
	m := New(push.NewBroker(), "studio", "transmitter/+/telemetry", nil)

	quiet := func(at time.Time) alarm.Snapshot {
		return alarm.Snapshot{
			TransmitterID:   "tx",
			Timestamp:       at,
			Status:          alarm.StatusOnline,
			AudioLevelLeft:  alarm.Float(-45),
			AudioLevelRight: alarm.Float(-45),
		}
	}

	m.Observe(quiet(start))
	m.Observe(quiet(start.Add(10 * time.Second)))

	require.NotContains(t, ids(m.Alarms()), "tx:silence")

	m.Observe(quiet(start.Add(31 * time.Second)))
	require.Contains(t, ids(m.Alarms()), "tx:silence")
}

// TestMonitor_PerTransmitterThresholds ensures overrides change classification after SetThresholds.
func TestMonitor_PerTransmitterThresholds(t *testing.T) {
	t.Parallel()

	m := New(push.NewBroker(), "studio", "transmitter/+/telemetry", nil)
	m.Observe(alarm.Snapshot{TransmitterID: "tx", Timestamp: time.Now(), Temperature: alarm.Float(45)})

	require.Equal(t, []string{"tx:temperature"}, ids(m.Alarms()))

	limit := 60.0
	m.SetThresholds(&alarm.ThresholdSet{
		Transmitters: map[string]alarm.Overrides{"tx": {TemperatureWarning: &limit}},
	})

	require.Empty(t, m.Alarms())
}

// TestLoadThresholds covers missing, valid and invalid files.
func TestLoadThresholds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	set, err := LoadThresholds(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, alarm.DefaultThresholds(), set.For("tx"))

	path := filepath.Join(dir, "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default:
  temperature_warning: 45
transmitters:
  tx-north:
    forward_power_low: 200
    audio_silence_time: 1m
`), 0o600))

	set, err = LoadThresholds(path)
	require.NoError(t, err)
	require.InDelta(t, 45.0, set.For("tx-south").TemperatureWarning, 1e-9)
	require.InDelta(t, 200.0, set.For("tx-north").ForwardPowerLow, 1e-9)
	require.Equal(t, time.Minute, set.For("tx-north").AudioSilenceTime)

	require.NoError(t, os.WriteFile(path, []byte("default: [oops"), 0o600))

	_, err = LoadThresholds(path)
	require.Error(t, err)
}

// TestWatchThresholds ensures a rewritten file is applied.
func TestWatchThresholds(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default: {}\n"), 0o600))

	applied := make(chan *alarm.ThresholdSet, 8)
	done := make(chan error, 1)

	go func() {
		done <- WatchThresholds(ctx, path, func(set *alarm.ThresholdSet) {
			select {
			case applied <- set:
			default:
			}
		})
	}()

	// The watcher may not be registered yet, so keep rewriting until a reload arrives.
	deadline := time.After(5 * time.Second)

	for {
		require.NoError(t, os.WriteFile(path, []byte("default:\n  temperature_high: 70\n"), 0o600))

		select {
		case set := <-applied:
			require.InDelta(t, 70.0, set.For("tx").TemperatureHigh, 1e-9)
			cancel()
			require.NoError(t, <-done)

			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("thresholds were not reloaded")
		}
	}
}

// TestMonitor_RunRefreshes ensures Run publishes a report every interval.
func TestMonitor_RunRefreshes(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		broker := push.NewBroker()
		m := New(broker, "studio", "transmitter/+/telemetry", nil)

		var reports atomic.Int32

		_, err := broker.Subscribe(ctx, push.AlarmReportTopic("studio"), func(string, []byte) { reports.Add(1) })
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- m.Run(ctx, 5*time.Second) }()

		synctest.Wait()
		require.Equal(t, 3, broker.Subscribers())

		publishJSON(t, broker, "transmitter/tx/telemetry", healthy(time.Now()))

		time.Sleep(11 * time.Second)
		synctest.Wait()
		require.EqualValues(t, 2, reports.Load())

		cancel()
		require.NoError(t, <-done)
	})
}

func ids(alarms []alarm.Alarm) []string {
	out := make([]string, 0, len(alarms))
	for _, a := range alarms {
		out = append(out, a.ID)
	}

	return out
}
