package server

import (
	"context"
	"errors"
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/domain/callline"
	"github.com/oshokin/studio-control/internal/domain/operator"
	"github.com/oshokin/studio-control/internal/domain/signal"
	"github.com/oshokin/studio-control/internal/domain/timer"
	repo "github.com/oshokin/studio-control/internal/repository/state"
	"github.com/oshokin/studio-control/internal/transport/push"
	"github.com/oshokin/studio-control/internal/wire"
)

var (
	errTestLoad = errors.New("test load error")
	errTestSave = errors.New("test save error")
)

// memoryRepository is a minimal in-memory Repository implementation for tests.
type memoryRepository struct {
	// timers are returned from Load operations.
	timers map[string]*timer.State
	// loadErr is the error to return from Load operations.
	loadErr error
	// saveErr is the error to return from Save operations.
	saveErr error
	// saved stores the last records passed to Save operations.
	saved map[string]*timer.State
}

// Load retrieves the stored records.
func (m *memoryRepository) Load(context.Context) (map[string]*timer.State, error) {
	return m.timers, m.loadErr
}

// Save stores the provided records in memory.
func (m *memoryRepository) Save(_ context.Context, timers map[string]*timer.State) error {
	if m.saveErr != nil {
		return m.saveErr
	}

	m.saved = maps.Clone(timers)

	return nil
}

func testSettings() *config.Config {
	return &config.Config{
		Studios:        []string{"A", "B"},
		LinesPerStudio: 3,
		Timer: config.Timer{
			DefaultDuration: 5 * time.Minute,
			DangerZone:      2 * time.Minute,
		},
	}
}

// TestNewService_LoadsStateOrDefaults asserts newService behavior on existing, missing, and error states.
func TestNewService_LoadsStateOrDefaults(t *testing.T) {
	t.Parallel()

	// Existing state; unknown studios are dropped.
	old := &timer.State{Studio: "A", RemainingSeconds: 42, DurationSeconds: 300, LastUpdate: time.Unix(100, 0)}
	s, err := newService(context.Background(), testSettings(), &memoryRepository{
		timers: map[string]*timer.State{"A": old, "Z": {Studio: "Z"}},
	})

	require.NoError(t, err)
	require.Equal(t, 42, s.timers["A"].RemainingSeconds)
	require.Equal(t, 300, s.timers["B"].RemainingSeconds)
	require.NotContains(t, s.timers, "Z")

	// Not found -> default.
	s, err = newService(context.Background(), testSettings(), &memoryRepository{loadErr: repo.ErrNotFound})

	require.NoError(t, err)
	require.Equal(t, 300, s.timers["A"].RemainingSeconds)
	require.False(t, s.timers["A"].IsRunning)

	// Other error.
	s, err = newService(context.Background(), testSettings(), &memoryRepository{loadErr: errTestLoad})

	require.Error(t, err)
	require.Nil(t, s)
}

// TestService_CommitAndGetTimer verifies commits persist and reads return the latest record.
func TestService_CommitAndGetTimer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repository := new(memoryRepository)
	s, err := newService(ctx, testSettings(), repository)
	require.NoError(t, err)

	actor := &operator.Actor{Hostname: "Oleg Shokin", Username: "o.shokin", Role: operator.RoleProducer}
	record := &timer.State{
		Studio:           "A",
		RemainingSeconds: 200,
		DurationSeconds:  300,
		IsRunning:        true,
		LastUpdate:       time.Now(),
		UpdatedBy:        actor,
	}

	result, err := s.CommitTimer(ctx, record)
	require.NoError(t, err)
	require.Equal(t, 200, result.RemainingSeconds)

	// Cloned.
	require.NotSame(t, actor, result.UpdatedBy)
	require.Contains(t, repository.saved, "A")
	require.Contains(t, repository.saved, "B")

	current, err := s.GetTimer(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, result, current)

	// Identical retry is idempotent.
	again, err := s.CommitTimer(ctx, record)
	require.NoError(t, err)
	require.Equal(t, result, again)

	_, err = s.GetTimer(ctx, "Z")
	require.ErrorIs(t, err, config.ErrUnknownStudio)

	_, err = s.CommitTimer(ctx, &timer.State{Studio: "Z"})
	require.ErrorIs(t, err, config.ErrUnknownStudio)
}

// TestService_StaleCommitIgnored ensures last-write-wins by lastUpdate.
func TestService_StaleCommitIgnored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := newService(ctx, testSettings(), nil)
	require.NoError(t, err)

	now := time.Now()
	_, err = s.CommitTimer(ctx, &timer.State{Studio: "A", RemainingSeconds: 10, LastUpdate: now})
	require.NoError(t, err)

	result, err := s.CommitTimer(ctx, &timer.State{Studio: "A", RemainingSeconds: 99, LastUpdate: now.Add(-time.Second)})
	require.NoError(t, err)
	require.Equal(t, 10, result.RemainingSeconds)
}

// TestService_PersistFailureKeepsState ensures a failed save leaves the previous record in place.
func TestService_PersistFailureKeepsState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := newService(ctx, testSettings(), &memoryRepository{saveErr: errTestSave})
	require.NoError(t, err)

	_, err = s.CommitTimer(ctx, &timer.State{Studio: "A", RemainingSeconds: 1, LastUpdate: time.Now().Add(time.Hour)})
	require.ErrorIs(t, err, errTestSave)

	current, err := s.GetTimer(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, 300, current.RemainingSeconds)
}

// TestService_Signals verifies signal commits and the empty default.
func TestService_Signals(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := newService(ctx, testSettings(), nil)
	require.NoError(t, err)

	empty, err := s.GetSignal(ctx, "B")
	require.NoError(t, err)
	require.Equal(t, signal.KindNone, empty.Kind)

	buzz := signal.Buzz(empty, nil, time.Now())
	_, err = s.CommitSignal(ctx, buzz)
	require.NoError(t, err)

	got, err := s.GetSignal(ctx, "B")
	require.NoError(t, err)
	require.Equal(t, signal.KindBuzzer, got.Kind)
	require.EqualValues(t, 1, got.Sequence)

	_, err = s.GetSignal(ctx, "Z")
	require.ErrorIs(t, err, config.ErrUnknownStudio)
}

// TestService_CallLines exercises call control and phone book through the service.
func TestService_CallLines(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := newService(ctx, testSettings(), nil)
	require.NoError(t, err)

	lines, err := s.ApplyCallEvent(ctx, "A", callline.Command{
		Event:  callline.EventIncomingCall,
		LineID: 2,
		Caller: callline.Caller{Contact: "Eve", PhoneNumber: "+300"},
	})
	require.NoError(t, err)
	require.Len(t, lines, 3)
	require.Equal(t, callline.StatusRinging, lines[1].Status)

	_, err = s.ApplyCallEvent(ctx, "A", callline.Command{Event: callline.EventSendToAir, LineID: 2})
	require.ErrorIs(t, err, callline.ErrInvalidTransition)

	_, err = s.ApplyCallEvent(ctx, "Z", callline.Command{Event: callline.EventAnswer, LineID: 2})
	require.ErrorIs(t, err, callline.ErrStudioNotFound)

	entry, err := s.SaveToPhoneBook(ctx, "A", 2)
	require.NoError(t, err)
	require.Equal(t, "Eve", entry.Contact)

	// Studio B is untouched.
	lines, err = s.ListLines(ctx, "B")
	require.NoError(t, err)
	require.Equal(t, callline.StatusInactive, lines[1].Status)
}

// TestLinesPublisher ensures board changes reach the push channel as lines records.
func TestLinesPublisher(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := push.NewBroker()
	received := make(chan push.Envelope, 4)

	_, err := broker.Subscribe(ctx, "studio/+/lines/state", func(_ string, payload []byte) {
		env, err := push.Unmarshal(payload)
		if err == nil {
			received <- env
		}
	})
	require.NoError(t, err)

	publisher := newLinesPublisher(broker, "studio", "test")
	go publisher.run(ctx)

	s, err := newService(ctx, testSettings(), nil, callline.WithListener(publisher.listener(ctx)))
	require.NoError(t, err)

	_, err = s.ApplyCallEvent(ctx, "B", callline.Command{Event: callline.EventMakeCall, LineID: 1})
	require.NoError(t, err)

	select {
	case env := <-received:
		studio, lines, err := wire.LinesFromStruct(env.Record)
		require.NoError(t, err)
		require.Equal(t, "B", studio)
		require.Equal(t, callline.StatusActive, lines[0].Status)
	case <-time.After(5 * time.Second):
		t.Fatal("no lines record published")
	}
}

// TestResolveListenAddress covers override and port extraction.
func TestResolveListenAddress(t *testing.T) {
	t.Parallel()

	addr, err := resolveListenAddress("studio.local:9000", "")
	require.NoError(t, err)
	require.Equal(t, ":9000", addr)

	addr, err = resolveListenAddress("studio.local:9000", "127.0.0.1:7000")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", addr)

	_, err = resolveListenAddress("", "")
	require.ErrorIs(t, err, ErrNoServerAddress)

	_, err = resolveListenAddress("no-port", "")
	require.Error(t, err)
}
