package monitor

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/studio-control/internal/domain/alarm"
	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/observability/metrics"
	"github.com/oshokin/studio-control/internal/transport/push"
	"github.com/oshokin/studio-control/internal/wire"
)

// transmitterSegment is the topic level carrying the transmitter id, as in "transmitter/+/telemetry".
const transmitterSegment = 1

// transmitter is what the monitor knows about one transmitter.
type transmitter struct {
	latest  alarm.Snapshot
	silence *alarm.Alarm
}

// Monitor keeps the latest telemetry per transmitter and builds alarm reports.
type Monitor struct {
	channel        push.Channel
	telemetryTopic string
	reportTopic    string
	ackTopic       string
	now            func() time.Time

	thresholds atomic.Pointer[alarm.ThresholdSet]
	silence    *alarm.SilenceTracker
	acks       alarm.AckStore

	mu           sync.Mutex
	transmitters map[string]*transmitter
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithAckStore replaces the in-memory acknowledgement store.
func WithAckStore(store alarm.AckStore) Option {
	return func(m *Monitor) { m.acks = store }
}

// New returns a monitor reading telemetryTopic and publishing under prefix.
func New(channel push.Channel, prefix, telemetryTopic string, thresholds *alarm.ThresholdSet, opts ...Option) *Monitor {
	m := &Monitor{
		channel:        channel,
		telemetryTopic: telemetryTopic,
		reportTopic:    push.AlarmReportTopic(prefix),
		ackTopic:       push.AlarmAckTopic(prefix),
		now:            time.Now,
		silence:        alarm.NewSilenceTracker(),
		acks:           alarm.NewMemoryAckStore(),
		transmitters:   make(map[string]*transmitter),
	}

	m.SetThresholds(thresholds)

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// SetThresholds replaces the threshold set used from the next refresh on.
func (m *Monitor) SetThresholds(set *alarm.ThresholdSet) {
	if set == nil {
		set = new(alarm.ThresholdSet)
	}

	m.thresholds.Store(set)
}

// Observe records a telemetry sample. Samples older than the latest one are ignored.
func (m *Monitor) Observe(s alarm.Snapshot) {
	th := m.thresholds.Load().For(s.TransmitterID)

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transmitters[s.TransmitterID]
	if !ok {
		t = new(transmitter)
		m.transmitters[s.TransmitterID] = t
	} else if s.Timestamp.Before(t.latest.Timestamp) {
		return
	}

	t.latest = s
	t.silence = nil

	if a, silent := m.silence.Observe(s, th); silent {
		t.silence = &a
	}
}

// Forget drops a transmitter, e.g. one that was decommissioned.
func (m *Monitor) Forget(transmitterID string) {
	m.mu.Lock()
	delete(m.transmitters, transmitterID)
	m.mu.Unlock()

	m.silence.Forget(transmitterID)
}

// Acknowledge stores operator state for an alarm id.
func (m *Monitor) Acknowledge(id string, state alarm.AckState) {
	m.acks.Put(id, state)
}

// Alarms classifies the latest sample of every transmitter and returns the ranked list.
func (m *Monitor) Alarms() []alarm.Alarm {
	set := m.thresholds.Load()
	now := m.now()

	m.mu.Lock()

	ids := make([]string, 0, len(m.transmitters))
	for id := range m.transmitters {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	var alarms []alarm.Alarm

	for _, id := range ids {
		t := m.transmitters[id]

		alarms = append(alarms, alarm.Evaluate(t.latest, set.For(id))...)
		if t.silence != nil {
			alarms = append(alarms, *t.silence)
		}

		metrics.SetTelemetryAge(id, now.Sub(t.latest.Timestamp))
	}

	m.mu.Unlock()

	return alarm.SortByPriority(alarm.Merge(alarms, m.acks))
}

// Refresh builds the current report and publishes it.
func (m *Monitor) Refresh(ctx context.Context) (alarm.Summary, error) {
	alarms := m.Alarms()
	summary := alarm.Summarize(alarms)

	metrics.SetActiveAlarms(unresolvedCounts(alarms))

	report, err := wire.AlarmReport(alarms, summary, m.now())
	if err != nil {
		return summary, err
	}

	data, err := protojson.Marshal(report)
	if err != nil {
		return summary, err
	}

	if summary.Total > 0 {
		logger.DebugKV(ctx, "Alarm report", "total", summary.Total, "highest", summary.Highest.String())
	}

	return summary, m.channel.Publish(ctx, m.reportTopic, data)
}

// unresolvedCounts counts alarms not yet resolved, keyed by severity name.
func unresolvedCounts(alarms []alarm.Alarm) map[string]int {
	resolved := false
	active := alarm.Summarize(alarm.FilterAlarms(alarms, alarm.Filter{Resolved: &resolved}))

	counts := make(map[string]int, len(alarm.Severities))
	for _, s := range alarm.Severities {
		counts[s.String()] = active.Counts[s]
	}

	return counts
}

// Run subscribes to telemetry and acknowledgements and refreshes every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	unsubscribe, err := m.channel.Subscribe(ctx, m.telemetryTopic, m.onTelemetry(ctx))
	if err != nil {
		return err
	}

	defer unsubscribe()

	unsubscribeAcks, err := m.channel.Subscribe(ctx, m.ackTopic, m.onAck(ctx))
	if err != nil {
		return err
	}

	defer unsubscribeAcks()

	logger.InfoKV(ctx, "Monitoring telemetry", "topic", m.telemetryTopic, "report_topic", m.reportTopic)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.Refresh(ctx); err != nil {
				logger.WarnKV(ctx, "Publish alarm report failed", "error", err)
			}
		}
	}
}

func (m *Monitor) onTelemetry(ctx context.Context) push.Handler {
	return func(topic string, payload []byte) {
		in := new(structpb.Struct)
		if err := protojson.Unmarshal(payload, in); err != nil {
			logger.InfoKV(ctx, "Dropping malformed telemetry", "topic", topic, "error", err)
			return
		}

		s, err := wire.SnapshotFromStruct(push.Segment(topic, transmitterSegment), in, m.now())
		if err != nil {
			logger.InfoKV(ctx, "Dropping malformed telemetry", "topic", topic, "error", err)
			return
		}

		if s.TransmitterID == "" {
			return
		}

		m.Observe(s)
	}
}

func (m *Monitor) onAck(ctx context.Context) push.Handler {
	return func(topic string, payload []byte) {
		in := new(structpb.Struct)
		if err := protojson.Unmarshal(payload, in); err != nil {
			logger.InfoKV(ctx, "Dropping malformed acknowledgement", "topic", topic, "error", err)
			return
		}

		id, state, err := wire.AckFromStruct(in)
		if err != nil {
			logger.InfoKV(ctx, "Dropping malformed acknowledgement", "topic", topic, "error", err)
			return
		}

		m.Acknowledge(id, state)
		logger.InfoKV(ctx, "Alarm acknowledged", "id", id, "acknowledged", state.Acknowledged, "resolved", state.Resolved)
	}
}
