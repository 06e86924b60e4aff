package push

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestMatch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		filter, topic string
		want          bool
	}{
		{"studio/A/timer/state", "studio/A/timer/state", true},
		{"studio/+/timer/state", "studio/B/timer/state", true},
		{"studio/+/timer/state", "studio/B/signal/state", false},
		{"studio/#", "studio/B/signal/state", true},
		{"studio/A", "studio/A/timer", false},
		{"studio/A/timer", "studio/A", false},
		{"transmitter/+/telemetry", "transmitter/tx-1/telemetry", true},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, Match(tc.filter, tc.topic), "%s vs %s", tc.filter, tc.topic)
	}
}

func TestRoute(t *testing.T) {
	t.Parallel()

	r := Route{Prefix: "studio/", Kind: "timer"}
	require.Equal(t, "studio/A/timer/state", r.State("A"))
	require.Equal(t, "studio/A/timer/request", r.Request("A"))
	require.Equal(t, "studio/alarms/report", AlarmReportTopic("studio"))
	require.Equal(t, "alarms/ack", AlarmAckTopic(""))
	require.Equal(t, "tx-1", Segment("transmitter/tx-1/telemetry", 1))
	require.Empty(t, Segment("transmitter", 1))
}

func TestEnvelope(t *testing.T) {
	t.Parallel()

	record, err := structpb.NewStruct(map[string]any{"studio": "A", "remaining_seconds": 42})
	require.NoError(t, err)

	sent := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	data, err := Envelope{Kind: KindState, Studio: "A", Origin: "console-1", SentAt: sent, Record: record}.Marshal()
	require.NoError(t, err)

	env, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, KindState, env.Kind)
	require.Equal(t, "A", env.Studio)
	require.Equal(t, "console-1", env.Origin)
	require.True(t, sent.Equal(env.SentAt))
	require.InDelta(t, 42.0, env.Record.GetFields()["remaining_seconds"].GetNumberValue(), 1e-9)

	data, err = Envelope{Kind: KindRequest, Studio: "A", RequestID: "r-1", SentAt: sent}.Marshal()
	require.NoError(t, err)

	env, err = Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, "r-1", env.RequestID)
	require.Nil(t, env.Record)
}

func TestUnmarshalRejects(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{
		`not json`,
		`{"kind":"bogus","studio":"A"}`,
		`{"kind":"state"}`,
		`{"kind":"state","studio":"A"}`,
		`{"kind":"request","studio":"A","sent_at":"noon"}`,
	} {
		_, err := Unmarshal([]byte(payload))
		require.ErrorIs(t, err, ErrInvalidEnvelope, payload)
	}
}

func TestBroker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewBroker()

	var (
		mu  sync.Mutex
		got []string
	)

	unsubscribe, err := b.Subscribe(ctx, "studio/+/timer/state", func(topic string, payload []byte) {
		mu.Lock()
		got = append(got, topic+"="+string(payload))
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Equal(t, 1, b.Subscribers())

	require.NoError(t, b.Publish(ctx, "studio/A/timer/state", []byte("1")))
	require.NoError(t, b.Publish(ctx, "studio/A/signal/state", []byte("2")))

	b.SetConnected(false)
	require.False(t, b.Connected())
	require.ErrorIs(t, b.Publish(ctx, "studio/A/timer/state", []byte("3")), ErrNotConnected)

	b.RequestReconnect()
	require.Equal(t, 1, b.Reconnects())

	b.SetConnected(true)
	require.NoError(t, b.Publish(ctx, "studio/B/timer/state", []byte("4")))

	unsubscribe()
	unsubscribe()
	require.Zero(t, b.Subscribers())
	require.NoError(t, b.Publish(ctx, "studio/B/timer/state", []byte("5")))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"studio/A/timer/state=1", "studio/B/timer/state=4"}, got)
}

func TestBrokerHandlerMayPublish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewBroker()

	var replies int

	_, err := b.Subscribe(ctx, "req", func(string, []byte) {
		require.NoError(t, b.Publish(ctx, "reply", nil))
	})
	require.NoError(t, err)

	_, err = b.Subscribe(ctx, "reply", func(string, []byte) { replies++ })
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "req", nil))
	require.Equal(t, 1, replies)
}
