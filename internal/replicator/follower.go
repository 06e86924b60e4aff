package replicator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/observability/metrics"
	"github.com/oshokin/studio-control/internal/transport/push"
)

const (
	inboxSize = 32

	sourcePush = "push"
	sourcePoll = "poll"

	outcomeApplied = "applied"
	outcomeStale   = "stale"
	outcomeInSync  = "in_sync"
)

// Intervals of a follower session.
type Intervals struct {
	// Poll is the reconciliation read interval.
	Poll time.Duration
	// Tick is the local display countdown interval; zero disables it.
	Tick time.Duration
	// StallThreshold is how long a running record may go without an accepted update.
	StallThreshold time.Duration
	// StallCheck is how often the stall condition is evaluated.
	StallCheck time.Duration
}

// FollowerBehavior holds the record-specific rules a follower needs.
type FollowerBehavior[T any] struct {
	// Running reports whether the record is expected to keep changing.
	Running func(T) bool
	// Differs reports whether a polled record disagrees with the display beyond tolerance.
	// When nil every newer polled record replaces the display.
	Differs func(display, polled T) bool
	// LocalTick advances the display copy. When nil the display only changes on updates.
	LocalTick func(T) T
}

// Follower mirrors one studio record at a time.
type Follower[T Record[T]] struct {
	store       Store[T]
	codec       Codec[T]
	channel     push.Channel
	reconnector push.Reconnector
	route       push.Route
	intervals   Intervals
	behavior    FollowerBehavior[T]
	origin      string
	onUpdate    func(T)

	mu           sync.Mutex
	studio       string
	accepted     T
	display      T
	has          bool
	lastActivity time.Time
	degraded     bool
	unsubscribe  func()

	inbox    chan push.Envelope
	switches chan string
}

// FollowerOption configures a Follower.
type FollowerOption[T Record[T]] func(*Follower[T])

// WithReconnector receives the reconnect signal when every resync fallback failed.
func WithReconnector[T Record[T]](r push.Reconnector) FollowerOption[T] {
	return func(f *Follower[T]) { f.reconnector = r }
}

// WithFollowerOrigin tags state requests with the console's client id.
func WithFollowerOrigin[T Record[T]](origin string) FollowerOption[T] {
	return func(f *Follower[T]) { f.origin = origin }
}

// WithUpdateHandler is called from Run with every new display record.
func WithUpdateHandler[T Record[T]](fn func(T)) FollowerOption[T] {
	return func(f *Follower[T]) { f.onUpdate = fn }
}

// NewFollower returns a follower of studio. Nothing happens until Run.
func NewFollower[T Record[T]](
	studio string,
	store Store[T],
	codec Codec[T],
	channel push.Channel,
	route push.Route,
	intervals Intervals,
	behavior FollowerBehavior[T],
	opts ...FollowerOption[T],
) *Follower[T] {
	f := &Follower[T]{
		store:     store,
		codec:     codec,
		channel:   channel,
		route:     route,
		intervals: intervals,
		behavior:  behavior,
		studio:    studio,
		inbox:     make(chan push.Envelope, inboxSize),
		switches:  make(chan string, 1),
	}

	if r, ok := channel.(push.Reconnector); ok {
		f.reconnector = r
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Studio returns the studio being followed.
func (f *Follower[T]) Studio() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.studio
}

// Display returns the record to show, including local countdown.
// ok is false until the first record arrives.
func (f *Follower[T]) Display() (record T, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.has {
		return record, false
	}

	return f.display.Clone(), true
}

// Accepted returns the last record received from a transport.
func (f *Follower[T]) Accepted() (record T, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.has {
		return record, false
	}

	return f.accepted.Clone(), true
}

// Degraded reports that every resync fallback failed on the last stall.
func (f *Follower[T]) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.degraded
}

// Switch moves the follower to another studio. Run drops the old session
// state, re-subscribes and fetches a fresh snapshot.
func (f *Follower[T]) Switch(ctx context.Context, studio string) error {
	select {
	case f.switches <- studio:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run follows the studio until ctx is done. All timers stop when it returns.
func (f *Follower[T]) Run(ctx context.Context) error {
	ctx = logger.WithKV(logger.WithName(ctx, "follower"), "kind", f.route.Kind)

	defer f.leave()

	f.enter(ctx, f.Studio())

	poll := time.NewTicker(f.intervals.Poll)
	defer poll.Stop()

	stall := time.NewTicker(f.intervals.StallCheck)
	defer stall.Stop()

	var (
		tick  *time.Ticker
		tickC <-chan time.Time
	)

	if f.behavior.LocalTick != nil && f.intervals.Tick > 0 {
		tick = time.NewTicker(f.intervals.Tick)
		defer tick.Stop()

		tickC = tick.C
	}

	restartTick := func() {
		if tick != nil {
			tick.Reset(f.intervals.Tick)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case studio := <-f.switches:
			f.enter(ctx, studio)
			poll.Reset(f.intervals.Poll)
			stall.Reset(f.intervals.StallCheck)
			restartTick()
		case env := <-f.inbox:
			if f.handlePush(ctx, env) {
				restartTick()
			}
		case <-poll.C:
			if replaced, _ := f.poll(ctx); replaced {
				restartTick()
			}
		case <-tickC:
			f.localTick()
		case <-stall.C:
			if f.checkStall(ctx) {
				restartTick()
			}
		}
	}
}

// enter starts a session on studio with empty state.
func (f *Follower[T]) enter(ctx context.Context, studio string) {
	f.leave()

	var zero T

	f.mu.Lock()
	f.studio = studio
	f.accepted = zero
	f.display = zero
	f.has = false
	f.degraded = false
	f.lastActivity = time.Now()
	f.mu.Unlock()

	// Drain envelopes queued for the previous studio.
	for drained := false; !drained; {
		select {
		case <-f.inbox:
		default:
			drained = true
		}
	}

	logger.InfoKV(ctx, "Following studio", "studio", studio)

	if f.channel != nil {
		unsubscribe, err := f.channel.Subscribe(ctx, f.route.State(studio), f.onMessage(studio))
		if err != nil {
			logger.WarnKV(ctx, "Subscribe failed", "studio", studio, "error", err)
		} else {
			f.mu.Lock()
			f.unsubscribe = unsubscribe
			f.mu.Unlock()
		}
	}

	if _, err := f.poll(ctx); err != nil {
		f.resync(ctx)
	}
}

func (f *Follower[T]) leave() {
	f.mu.Lock()
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	f.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// onMessage queues envelopes of studio without blocking the transport.
func (f *Follower[T]) onMessage(studio string) push.Handler {
	return func(_ string, payload []byte) {
		env, err := push.Unmarshal(payload)
		if err != nil || env.Kind != push.KindState || env.Studio != studio {
			return
		}

		select {
		case f.inbox <- env:
		default:
		}
	}
}

// handlePush applies a pushed record when it is newer than the accepted one.
func (f *Follower[T]) handlePush(ctx context.Context, env push.Envelope) bool {
	record, err := f.codec.FromStruct(env.Record)
	if err != nil {
		logger.InfoKV(ctx, "Dropping undecodable record", "error", err)
		return false
	}

	f.mu.Lock()

	if record.StudioID() != f.studio {
		f.mu.Unlock()
		return false
	}

	if f.has && !Newer(record, f.accepted) {
		f.mu.Unlock()
		metrics.IncUpdate(f.route.Kind, sourcePush, outcomeStale)

		return false
	}

	f.acceptLocked(record)
	f.display = record.Clone()
	f.mu.Unlock()

	metrics.IncUpdate(f.route.Kind, sourcePush, outcomeApplied)
	f.notify(record)

	return true
}

// poll reads the authoritative record. replaced reports whether the display changed.
func (f *Follower[T]) poll(ctx context.Context) (replaced bool, err error) {
	f.mu.Lock()
	studio := f.studio
	f.mu.Unlock()

	record, err := f.store.Read(ctx, studio)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.WarnKV(ctx, "Reconciliation read failed", "studio", studio, "error", err)
		}

		return false, err
	}

	f.mu.Lock()

	if record.StudioID() != f.studio {
		f.mu.Unlock()
		return false, nil
	}

	if f.has && Newer(f.accepted, record) {
		f.mu.Unlock()
		metrics.IncUpdate(f.route.Kind, sourcePoll, outcomeStale)

		return false, nil
	}

	first := !f.has

	newer := first || Newer(record, f.accepted)
	if newer {
		f.acceptLocked(record)
	}

	switch {
	case first:
		replaced = true
	case f.behavior.Differs != nil:
		replaced = f.behavior.Differs(f.display, record)
	default:
		replaced = newer
	}

	if replaced {
		f.display = record.Clone()
	}
	f.mu.Unlock()

	if replaced {
		metrics.IncUpdate(f.route.Kind, sourcePoll, outcomeApplied)
		f.notify(record)
	} else {
		metrics.IncUpdate(f.route.Kind, sourcePoll, outcomeInSync)
	}

	return replaced, nil
}

// acceptLocked records an update from a transport.
func (f *Follower[T]) acceptLocked(record T) {
	f.accepted = record.Clone()
	f.has = true
	f.lastActivity = time.Now()
	f.degraded = false
}

func (f *Follower[T]) localTick() {
	f.mu.Lock()

	if !f.has || !f.behavior.Running(f.display) {
		f.mu.Unlock()
		return
	}

	f.display = f.behavior.LocalTick(f.display)
	display := f.display.Clone()
	f.mu.Unlock()

	f.notify(display)
}

// checkStall issues one resync per threshold window while the record runs
// without updates. It reports whether the display was replaced.
func (f *Follower[T]) checkStall(ctx context.Context) bool {
	f.mu.Lock()

	if !f.has || !f.behavior.Running(f.accepted) || time.Since(f.lastActivity) <= f.intervals.StallThreshold {
		f.mu.Unlock()
		return false
	}

	f.lastActivity = time.Now()
	f.mu.Unlock()

	logger.InfoKV(ctx, "No updates, requesting snapshot", "studio", f.Studio())

	return f.resync(ctx)
}

// resync asks for a fresh snapshot: push request, then store read, then reconnect.
func (f *Follower[T]) resync(ctx context.Context) bool {
	if f.channel != nil && f.channel.Connected() {
		err := f.request(ctx)
		if err == nil {
			metrics.IncResync(f.route.Kind, metrics.ResyncPush)
			return false
		}

		logger.WarnKV(ctx, "State request failed", "error", err)
	}

	metrics.IncResync(f.route.Kind, metrics.ResyncRead)

	replaced, err := f.poll(ctx)
	if err == nil {
		return replaced
	}

	metrics.IncResync(f.route.Kind, metrics.ResyncReconnect)

	f.mu.Lock()
	f.degraded = true
	f.mu.Unlock()

	logger.ErrorKV(ctx, "Every resync path failed, requesting reconnect", "studio", f.Studio())

	if f.reconnector != nil {
		f.reconnector.RequestReconnect()
	}

	return false
}

func (f *Follower[T]) request(ctx context.Context) error {
	studio := f.Studio()

	data, err := push.Envelope{
		Kind:      push.KindRequest,
		Studio:    studio,
		RequestID: uuid.NewString(),
		Origin:    f.origin,
		SentAt:    time.Now(),
	}.Marshal()
	if err != nil {
		return err
	}

	return f.channel.Publish(ctx, f.route.Request(studio), data)
}

func (f *Follower[T]) notify(record T) {
	if f.onUpdate != nil {
		f.onUpdate(record.Clone())
	}
}
