package console

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/domain/signal"
	"github.com/oshokin/studio-control/internal/domain/timer"
	"github.com/oshokin/studio-control/internal/replicator"
	"github.com/oshokin/studio-control/internal/transport/push"
	"github.com/oshokin/studio-control/internal/wire"
)

// talent follows the timer and signals of one studio at a time.
type talent struct {
	settings *config.Config
	timer    *replicator.Follower[*timer.State]
	signal   *replicator.Follower[*signal.Signal]
	out      *printer
}

func newTalent(env *environment, studio string) *talent {
	s := env.settings.Sync
	prefix := env.settings.MQTT.TopicPrefix
	intervals := replicator.Intervals{
		Poll:           s.PollInterval,
		Tick:           s.TickInterval,
		StallThreshold: s.StallThreshold,
		StallCheck:     s.StallCheckInterval,
	}

	tolerance := s.PollTolerance()

	t := &talent{settings: env.settings, out: env.out}

	t.timer = replicator.NewFollower(
		studio,
		env.timers,
		wire.TimerCodec{Policy: env.policy},
		env.channel,
		push.Route{Prefix: prefix, Kind: timerKind},
		intervals,
		replicator.FollowerBehavior[*timer.State]{
			Running: timer.Running,
			Differs: func(display, polled *timer.State) bool {
				return timer.Differs(display, polled, tolerance)
			},
			LocalTick: env.policy.LocalTick,
		},
		replicator.WithFollowerOrigin[*timer.State](env.origin),
		replicator.WithUpdateHandler(t.showTimer),
	)

	// Signals never run, so they are only polled and pushed.
	signalIntervals := intervals
	signalIntervals.Tick = 0

	t.signal = replicator.NewFollower(
		studio,
		env.signals,
		wire.SignalCodec{},
		env.channel,
		push.Route{Prefix: prefix, Kind: signalKind},
		signalIntervals,
		replicator.FollowerBehavior[*signal.Signal]{
			Running: func(*signal.Signal) bool { return false },
		},
		replicator.WithFollowerOrigin[*signal.Signal](env.origin),
		replicator.WithUpdateHandler(t.showSignal),
	)

	return t
}

// run starts both followers. The returned func waits for them.
func (t *talent) run(ctx context.Context) func() {
	var wg sync.WaitGroup

	wg.Go(func() { _ = t.timer.Run(ctx) })
	wg.Go(func() { _ = t.signal.Run(ctx) })

	return wg.Wait
}

func (t *talent) showTimer(s *timer.State) {
	suffix := ""
	if t.timer.Degraded() {
		suffix = " [offline]"
	}

	t.out.printf("timer %s%s", s, suffix)
}

func (t *talent) showSignal(s *signal.Signal) {
	switch s.Kind {
	case signal.KindBuzzer:
		t.out.printf("BUZZ from %s", s.Sender)
	case signal.KindChat:
		t.out.printf("chat from %s: %s", s.Sender, s.Text)
	case signal.KindNone:
	}
}

// execute runs one talent command.
func (t *talent) execute(ctx context.Context, line string) error {
	verb, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)

	switch verb {
	case "studio":
		if args == "" {
			return usage("studio <id>")
		}

		if !t.settings.HasStudio(args) {
			return fmt.Errorf("%w: %q", config.ErrUnknownStudio, args)
		}

		if err := t.timer.Switch(ctx, args); err != nil {
			return err
		}

		if err := t.signal.Switch(ctx, args); err != nil {
			return err
		}

		t.out.printf("following studio %s", args)

		return nil
	case "status":
		record, ok := t.timer.Display()
		if !ok {
			t.out.printf("timer %s: waiting for first update", t.timer.Studio())
			return nil
		}

		t.showTimer(record)

		return nil
	}

	return fmt.Errorf("%w %q", errUnknownCommand, verb)
}
