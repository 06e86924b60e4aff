package server

import (
	"context"
	"time"

	"github.com/oshokin/studio-control/internal/domain/callline"
	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/observability/metrics"
	"github.com/oshokin/studio-control/internal/transport/push"
	"github.com/oshokin/studio-control/internal/wire"
)

const (
	linesKind      = "lines"
	linesQueueSize = 64
)

type linesUpdate struct {
	studio string
	lines  []callline.Line
}

// linesPublisher fans call-line snapshots out on the push channel.
// Boards call enqueue under their lock, so it never blocks.
type linesPublisher struct {
	channel push.Channel
	route   push.Route
	origin  string
	queue   chan linesUpdate
}

func newLinesPublisher(channel push.Channel, prefix, origin string) *linesPublisher {
	return &linesPublisher{
		channel: channel,
		route:   push.Route{Prefix: prefix, Kind: linesKind},
		origin:  origin,
		queue:   make(chan linesUpdate, linesQueueSize),
	}
}

// listener returns the board listener feeding the queue.
func (p *linesPublisher) listener(ctx context.Context) callline.Listener {
	return func(studio string, _ []callline.Change, lines []callline.Line) {
		select {
		case p.queue <- linesUpdate{studio: studio, lines: lines}:
		default:
			logger.WarnKV(ctx, "Line update queue full, dropping snapshot", "studio", studio)
		}
	}
}

// run publishes queued snapshots until ctx is done.
func (p *linesPublisher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-p.queue:
			err := p.publish(ctx, u)
			metrics.IncPublish(linesKind, err)

			if err != nil {
				logger.WarnKV(ctx, "Publish call lines failed", "studio", u.studio, "error", err)
			}
		}
	}
}

func (p *linesPublisher) publish(ctx context.Context, u linesUpdate) error {
	if p.channel == nil {
		return nil
	}

	record, err := wire.LinesToStruct(u.studio, u.lines)
	if err != nil {
		return err
	}

	data, err := push.Envelope{
		Kind:   push.KindState,
		Studio: u.studio,
		Origin: p.origin,
		SentAt: time.Now(),
		Record: record,
	}.Marshal()
	if err != nil {
		return err
	}

	return p.channel.Publish(ctx, p.route.State(u.studio), data)
}
