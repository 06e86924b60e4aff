package replicator

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/observability/metrics"
	"github.com/oshokin/studio-control/internal/transport/push"
)

const (
	requestQueueSize = 16
	recentRequests   = 64
)

// Writer is the single authoritative console of one studio record.
type Writer[T Record[T]] struct {
	store   Store[T]
	codec   Codec[T]
	channel push.Channel
	route   push.Route
	origin  string
	now     func() time.Time

	tickInterval time.Duration
	tickDue      func(T) bool
	tick         Mutation[T]
	onChange     func(T)

	// mu serializes mutations so commits of one studio never interleave.
	mu       sync.Mutex
	cur      T
	diverged bool

	requests chan string
	recent   *recentIDs
}

// WriterOption configures a Writer.
type WriterOption[T Record[T]] func(*Writer[T])

// WithWriterClock replaces time.Now.
func WithWriterClock[T Record[T]](now func() time.Time) WriterOption[T] {
	return func(w *Writer[T]) { w.now = now }
}

// WithOrigin tags published envelopes with the console's client id.
func WithOrigin[T Record[T]](origin string) WriterOption[T] {
	return func(w *Writer[T]) { w.origin = origin }
}

// WithTick makes Run apply m every interval while due reports true.
func WithTick[T Record[T]](interval time.Duration, due func(T) bool, m Mutation[T]) WriterOption[T] {
	return func(w *Writer[T]) {
		w.tickInterval = interval
		w.tickDue = due
		w.tick = m
	}
}

// WithChangeHandler is called after every applied record, outside the lock.
func WithChangeHandler[T Record[T]](fn func(T)) WriterOption[T] {
	return func(w *Writer[T]) { w.onChange = fn }
}

// NewWriter returns a writer starting from initial.
func NewWriter[T Record[T]](
	initial T,
	store Store[T],
	codec Codec[T],
	channel push.Channel,
	route push.Route,
	opts ...WriterOption[T],
) *Writer[T] {
	w := &Writer[T]{
		store:    store,
		codec:    codec,
		channel:  channel,
		route:    route,
		now:      time.Now,
		cur:      initial,
		requests: make(chan string, requestQueueSize),
		recent:   newRecentIDs(recentRequests),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Current returns a copy of the local record.
func (w *Writer[T]) Current() T {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.cur.Clone()
}

// Diverged reports whether the last commit failed, so local state may be ahead of the store.
func (w *Writer[T]) Diverged() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.diverged
}

// Resume replaces the local record with the store's copy when it is newer.
// A producer calls it on start so a restart does not roll the studio back.
func (w *Writer[T]) Resume(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	stored, err := w.store.Read(ctx, w.cur.StudioID())
	if err != nil {
		return err
	}

	if Newer(stored, w.cur) {
		w.cur = stored
	}

	return nil
}

// Apply computes the next record with m, commits it and publishes it.
// A commit failure does not fail Apply: the record is applied locally and
// Diverged reports true until a later commit succeeds. Only errors from m
// are returned.
func (w *Writer[T]) Apply(ctx context.Context, m Mutation[T]) (T, error) {
	w.mu.Lock()

	next, changed, err := w.applyLocked(ctx, m)
	if err != nil {
		w.mu.Unlock()

		var zero T

		return zero, err
	}

	w.mu.Unlock()

	if changed && w.onChange != nil {
		w.onChange(next.Clone())
	}

	return next, nil
}

func (w *Writer[T]) applyLocked(ctx context.Context, m Mutation[T]) (T, bool, error) {
	cur := w.cur
	now := w.timestamp(cur)

	next, err := m(cur.Clone(), now)
	if err != nil {
		var zero T
		return zero, false, err
	}

	// A mutation that kept the timestamp changed nothing.
	if !Newer(next, cur) {
		return cur.Clone(), false, nil
	}

	kind := w.route.Kind
	studio := next.StudioID()
	started := time.Now()

	stored, err := w.store.Commit(ctx, next)
	elapsed := time.Since(started)
	outcome := metrics.Result(err)

	switch {
	case err != nil:
		w.diverged = true

		logger.WarnKV(ctx, "Commit failed, applying locally",
			"kind", kind, "studio", studio, "error", err)
	case Newer(stored, next):
		// Someone else committed a later record; adopt it.
		w.diverged = false
		next = stored
		outcome = metrics.ResultStale
	default:
		w.diverged = false
	}

	metrics.ObserveCommit(kind, outcome, elapsed)

	w.cur = next
	w.publish(ctx, next, "")

	return next.Clone(), true, nil
}

// timestamp returns the clock reading, bumped past cur so UpdatedAt strictly increases.
func (w *Writer[T]) timestamp(cur T) time.Time {
	now := w.now().Round(0)
	if last := cur.UpdatedAt(); !now.After(last) {
		now = last.Add(time.Millisecond)
	}

	return now
}

// publish sends record on the state topic. Failures are logged only.
func (w *Writer[T]) publish(ctx context.Context, record T, requestID string) {
	if w.channel == nil {
		return
	}

	err := w.doPublish(ctx, record, requestID)
	metrics.IncPublish(w.route.Kind, err)

	if err != nil {
		logger.WarnKV(ctx, "Push publish failed",
			"kind", w.route.Kind, "studio", record.StudioID(), "error", err)
	}
}

func (w *Writer[T]) doPublish(ctx context.Context, record T, requestID string) error {
	payload, err := w.codec.ToStruct(record)
	if err != nil {
		return err
	}

	data, err := push.Envelope{
		Kind:      push.KindState,
		Studio:    record.StudioID(),
		RequestID: requestID,
		Origin:    w.origin,
		SentAt:    w.now(),
		Record:    payload,
	}.Marshal()
	if err != nil {
		return err
	}

	return w.channel.Publish(ctx, w.route.State(record.StudioID()), data)
}

// Run answers state requests and drives the tick mutation until ctx is done.
func (w *Writer[T]) Run(ctx context.Context) error {
	studio := w.Current().StudioID()
	ctx = logger.WithKV(logger.WithName(ctx, "writer"), "kind", w.route.Kind, "studio", studio)

	if w.channel != nil {
		unsubscribe, err := w.channel.Subscribe(ctx, w.route.Request(studio), w.onRequest(studio))
		if err != nil {
			logger.WarnKV(ctx, "Subscribe to state requests failed", "error", err)
		} else {
			defer unsubscribe()
		}
	}

	var tickC <-chan time.Time

	if w.tick != nil && w.tickInterval > 0 {
		ticker := time.NewTicker(w.tickInterval)
		defer ticker.Stop()

		tickC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case id := <-w.requests:
			w.answer(ctx, id)
		case <-tickC:
			if w.tickDue != nil && !w.tickDue(w.Current()) {
				continue
			}

			if _, err := w.Apply(ctx, w.tick); err != nil {
				logger.InfoKV(ctx, "Tick rejected", "error", err)
			}
		}
	}
}

func (w *Writer[T]) onRequest(studio string) push.Handler {
	return func(_ string, payload []byte) {
		env, err := push.Unmarshal(payload)
		if err != nil || env.Kind != push.KindRequest || env.Studio != studio {
			return
		}

		select {
		case w.requests <- env.RequestID:
		default:
		}
	}
}

// answer republishes the current record once per request id.
func (w *Writer[T]) answer(ctx context.Context, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id != "" && !w.recent.add(id) {
		logger.DebugKV(ctx, "Duplicate state request", "request_id", id)
		return
	}

	w.publish(ctx, w.cur, id)
}
