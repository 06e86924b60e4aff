package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/studio-control/internal/domain/operator"
)

var (
	t0       = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	policy   = NewPolicy(120 * time.Second)
	producer = &operator.Actor{Hostname: "booth-a", Username: "p", Role: operator.RoleProducer}
)

// TestPolicy_Initial checks the default record of a studio.
func TestPolicy_Initial(t *testing.T) {
	t.Parallel()

	s := policy.Initial("A", 5*time.Minute, t0)

	require.Equal(t, 300, s.RemainingSeconds)
	require.Equal(t, 300, s.DurationSeconds)
	require.False(t, s.IsRunning)
	require.False(t, s.IsDangerZone)
	require.Equal(t, t0, s.LastUpdate)
	require.Equal(t, "A 05:00 (paused)", s.String())
}

// TestPolicy_Normalize recomputes the danger flag rather than trusting it.
func TestPolicy_Normalize(t *testing.T) {
	t.Parallel()

	s := policy.Normalize(&State{RemainingSeconds: 121, IsDangerZone: true})
	require.False(t, s.IsDangerZone)

	s = policy.Normalize(&State{RemainingSeconds: 120})
	require.True(t, s.IsDangerZone)

	s = policy.Normalize(&State{RemainingSeconds: -4})
	require.Zero(t, s.RemainingSeconds)
	require.True(t, s.IsDangerZone)

	require.Nil(t, policy.Normalize(nil))
}

// TestPolicy_Apply runs every control and verifies the input record is untouched.
func TestPolicy_Apply(t *testing.T) {
	t.Parallel()

	cur := policy.Initial("A", 5*time.Minute, t0)

	started, err := policy.Apply(cur, Action{Kind: ActionStart}, producer, t0.Add(time.Second))
	require.NoError(t, err)
	require.True(t, started.IsRunning)
	require.False(t, cur.IsRunning)
	require.Equal(t, producer, started.UpdatedBy)
	require.NotSame(t, producer, started.UpdatedBy)
	require.Equal(t, t0.Add(time.Second), started.LastUpdate)

	ticked, err := policy.Apply(started, Action{Kind: ActionTick}, producer, t0.Add(2*time.Second))
	require.NoError(t, err)
	require.Equal(t, 299, ticked.RemainingSeconds)

	paused, err := policy.Apply(ticked, Action{Kind: ActionPause}, producer, t0.Add(3*time.Second))
	require.NoError(t, err)
	require.False(t, paused.IsRunning)

	// Ticking a paused timer changes nothing.
	same, err := policy.Apply(paused, Action{Kind: ActionTick}, producer, t0.Add(4*time.Second))
	require.NoError(t, err)
	require.Equal(t, paused, same)

	set, err := policy.Apply(paused, Action{Kind: ActionSetDuration, Seconds: 90}, producer, t0.Add(5*time.Second))
	require.NoError(t, err)
	require.Equal(t, 90, set.RemainingSeconds)
	require.Equal(t, 90, set.DurationSeconds)
	require.True(t, set.IsDangerZone)

	reset, err := policy.Apply(ticked, Action{Kind: ActionReset}, producer, t0.Add(6*time.Second))
	require.NoError(t, err)
	require.Equal(t, 300, reset.RemainingSeconds)
	require.False(t, reset.IsRunning)

	_, err = policy.Apply(cur, Action{Kind: ActionSetDuration, Seconds: -1}, producer, t0)
	require.ErrorIs(t, err, ErrNegativeDuration)

	_, err = policy.Apply(cur, Action{Kind: 42}, producer, t0)
	require.ErrorIs(t, err, ErrUnknownAction)
}

// TestPolicy_TickStopsAtZero verifies the countdown stops itself when it expires.
func TestPolicy_TickStopsAtZero(t *testing.T) {
	t.Parallel()

	s := &State{Studio: "A", RemainingSeconds: 1, DurationSeconds: 60, IsRunning: true}

	s, err := policy.Apply(s, Action{Kind: ActionTick}, producer, t0)
	require.NoError(t, err)
	require.Zero(t, s.RemainingSeconds)
	require.False(t, s.IsRunning)

	_, err = policy.Apply(s, Action{Kind: ActionStart}, producer, t0)
	require.ErrorIs(t, err, ErrExpired)
}

// TestPolicy_LocalTick only decrements running display copies and keeps LastUpdate.
func TestPolicy_LocalTick(t *testing.T) {
	t.Parallel()

	s := &State{Studio: "A", RemainingSeconds: 121, IsRunning: true, LastUpdate: t0}

	next := policy.LocalTick(s)
	require.Equal(t, 120, next.RemainingSeconds)
	require.True(t, next.IsDangerZone)
	require.Equal(t, t0, next.LastUpdate)
	require.Equal(t, 121, s.RemainingSeconds)

	paused := &State{RemainingSeconds: 10}
	require.Same(t, paused, policy.LocalTick(paused))

	expired := &State{RemainingSeconds: 0, IsRunning: true}
	require.Same(t, expired, policy.LocalTick(expired))
}

// TestDiffers applies the remaining-time tolerance and compares running flags.
func TestDiffers(t *testing.T) {
	t.Parallel()

	a := &State{RemainingSeconds: 100, IsRunning: true}

	require.False(t, Differs(a, &State{RemainingSeconds: 101, IsRunning: true}, time.Second))
	require.False(t, Differs(a, &State{RemainingSeconds: 99, IsRunning: true}, time.Second))
	require.True(t, Differs(a, &State{RemainingSeconds: 98, IsRunning: true}, time.Second))
	require.True(t, Differs(a, &State{RemainingSeconds: 100}, time.Second))
	require.True(t, Differs(a, nil, time.Second))
	require.False(t, Differs(nil, nil, time.Second))

	// Zero tolerance demands an exact match.
	require.True(t, Differs(a, &State{RemainingSeconds: 99, IsRunning: true}, 0))
	require.False(t, Differs(a, &State{RemainingSeconds: 100, IsRunning: true}, 0))
	require.Equal(t, 100*time.Second, a.Remaining())
}
