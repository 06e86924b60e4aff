package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/studio-control/internal/domain/callline"
	"github.com/oshokin/studio-control/internal/domain/operator"
	"github.com/oshokin/studio-control/internal/domain/signal"
	"github.com/oshokin/studio-control/internal/domain/timer"
	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/replicator"
	"github.com/oshokin/studio-control/internal/transport/push"
	"github.com/oshokin/studio-control/internal/wire"
)

const (
	timerKind  = "timer"
	signalKind = "signal"
)

// LineControl is the call-control surface a producer drives.
type LineControl interface {
	ApplyCallEvent(ctx context.Context, studio string, cmd callline.Command) ([]callline.Line, error)
	ListLines(ctx context.Context, studio string) ([]callline.Line, error)
	SaveToPhoneBook(ctx context.Context, studio string, lineID int) (callline.Entry, error)
}

// lineEvents maps console verbs to call-line events.
var lineEvents = map[string]callline.Event{
	"call":     callline.EventMakeCall,
	"incoming": callline.EventIncomingCall,
	"answer":   callline.EventAnswer,
	"reject":   callline.EventReject,
	"hold":     callline.EventHold,
	"resume":   callline.EventResume,
	"air":      callline.EventSendToAir,
	"off":      callline.EventTakeOffAir,
	"hangup":   callline.EventHangup,
}

// producer is the authoritative console of one studio.
type producer struct {
	studio string
	actor  *operator.Actor
	policy timer.Policy
	timer  *replicator.Writer[*timer.State]
	signal *replicator.Writer[*signal.Signal]
	lines  LineControl
	out    *printer
}

func newProducer(env *environment, studio string) *producer {
	prefix := env.settings.MQTT.TopicPrefix

	p := &producer{
		studio: studio,
		actor:  env.actor,
		policy: env.policy,
		lines:  env.lines,
		out:    env.out,
	}

	p.timer = replicator.NewWriter(
		env.policy.Initial(studio, env.settings.Timer.DefaultDuration, time.Time{}),
		env.timers,
		wire.TimerCodec{Policy: env.policy},
		env.channel,
		push.Route{Prefix: prefix, Kind: timerKind},
		replicator.WithOrigin[*timer.State](env.origin),
		replicator.WithTick(env.settings.Sync.TickInterval, timer.Running, p.timerAction(timer.Action{Kind: timer.ActionTick})),
		replicator.WithChangeHandler(p.showTimer),
	)

	p.signal = replicator.NewWriter(
		signal.Empty(studio),
		env.signals,
		wire.SignalCodec{},
		env.channel,
		push.Route{Prefix: prefix, Kind: signalKind},
		replicator.WithOrigin[*signal.Signal](env.origin),
	)

	return p
}

// run resumes stored records and starts both writers. The returned func waits for them.
func (p *producer) run(ctx context.Context) func() {
	if err := p.timer.Resume(ctx); err != nil && !errors.Is(err, replicator.ErrNotFound) {
		logger.WarnKV(ctx, "Resume timer failed, starting from defaults", "studio", p.studio, "error", err)
	}

	if err := p.signal.Resume(ctx); err != nil && !errors.Is(err, replicator.ErrNotFound) {
		logger.WarnKV(ctx, "Resume signal failed", "studio", p.studio, "error", err)
	}

	p.showTimer(p.timer.Current())

	var wg sync.WaitGroup

	wg.Go(func() { _ = p.timer.Run(ctx) })
	wg.Go(func() { _ = p.signal.Run(ctx) })

	return wg.Wait
}

func (p *producer) timerAction(a timer.Action) replicator.Mutation[*timer.State] {
	return func(cur *timer.State, now time.Time) (*timer.State, error) {
		return p.policy.Apply(cur, a, p.actor, now)
	}
}

func (p *producer) showTimer(s *timer.State) {
	suffix := ""
	if p.timer != nil && p.timer.Diverged() {
		suffix = " [not saved]"
	}

	p.out.printf("timer %s%s", s, suffix)
}

// execute runs one operator command.
//
//nolint:cyclop // One case per console verb.
func (p *producer) execute(ctx context.Context, line string) error {
	verb, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)

	switch verb {
	case "start":
		return p.applyTimer(ctx, timer.Action{Kind: timer.ActionStart})
	case "pause":
		return p.applyTimer(ctx, timer.Action{Kind: timer.ActionPause})
	case "reset":
		return p.applyTimer(ctx, timer.Action{Kind: timer.ActionReset})
	case "set":
		seconds, err := strconv.Atoi(args)
		if err != nil {
			return usage("set <seconds>")
		}

		return p.applyTimer(ctx, timer.Action{Kind: timer.ActionSetDuration, Seconds: seconds})
	case "buzz":
		_, err := p.signal.Apply(ctx, func(cur *signal.Signal, now time.Time) (*signal.Signal, error) {
			return signal.Buzz(cur, p.actor, now), nil
		})
		if err == nil {
			p.out.printf("buzzer sent to %s", p.studio)
		}

		return err
	case "chat":
		_, err := p.signal.Apply(ctx, func(cur *signal.Signal, now time.Time) (*signal.Signal, error) {
			return signal.Chat(cur, args, p.actor, now)
		})
		if err == nil {
			p.out.printf("chat sent to %s", p.studio)
		}

		return err
	case "lines":
		lines, err := p.lines.ListLines(ctx, p.studio)
		if err != nil {
			return err
		}

		p.showLines(lines)

		return nil
	case "save":
		id, err := strconv.Atoi(args)
		if err != nil {
			return usage("save <line>")
		}

		entry, err := p.lines.SaveToPhoneBook(ctx, p.studio, id)
		if err != nil {
			return err
		}

		p.out.printf("saved %s %s", entry.Contact, entry.PhoneNumber)

		return nil
	case "status":
		p.showTimer(p.timer.Current())
		return nil
	}

	if event, ok := lineEvents[verb]; ok {
		return p.applyLine(ctx, event, args)
	}

	return fmt.Errorf("%w %q", errUnknownCommand, verb)
}

func (p *producer) applyTimer(ctx context.Context, a timer.Action) error {
	_, err := p.timer.Apply(ctx, p.timerAction(a))
	return err
}

// applyLine parses "<line> [contact] [number]" and applies event.
func (p *producer) applyLine(ctx context.Context, event callline.Event, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return usage(event.String() + " <line> [contact] [number]")
	}

	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return usage(event.String() + " <line> [contact] [number]")
	}

	cmd := callline.Command{Event: event, LineID: id}

	switch len(fields) {
	case 1:
	case 2:
		cmd.Caller.PhoneNumber = fields[1]
	default:
		cmd.Caller.Contact = strings.Join(fields[1:len(fields)-1], " ")
		cmd.Caller.PhoneNumber = fields[len(fields)-1]
	}

	lines, err := p.lines.ApplyCallEvent(ctx, p.studio, cmd)
	if err != nil {
		return err
	}

	p.showLines(lines)

	return nil
}

func (p *producer) showLines(lines []callline.Line) {
	now := time.Now()

	for _, l := range lines {
		caller := l.Contact
		if l.PhoneNumber != "" {
			caller = strings.TrimSpace(caller + " " + l.PhoneNumber)
		}

		p.out.printf("line %d %-8s %-20s %s", l.ID, l.Status, caller, l.Elapsed(now).Truncate(time.Second))
	}
}
