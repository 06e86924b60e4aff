package server

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/domain/callline"
	"github.com/oshokin/studio-control/internal/domain/signal"
	"github.com/oshokin/studio-control/internal/domain/timer"
	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/observability/metrics"
	"github.com/oshokin/studio-control/internal/replicator"
	repo "github.com/oshokin/studio-control/internal/repository/state"
)

// service encapsulates studio state and persistence orchestration.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// repo handles persistent storage of timer records.
	repo repo.Repository
	// studios lists the configured studio identifiers.
	studios []string
	// timers holds the authoritative record per studio.
	timers map[string]*timer.State
	// mu serializes timer commits and protects timers.
	mu sync.RWMutex

	signals *replicator.MemoryStore[*signal.Signal]
	board   *callline.Switchboard
	book    callline.PhoneBook
}

// newService creates a service backed by the provided repository.
// Studios without a stored record start from the configured default duration.
func newService(
	ctx context.Context,
	settings *config.Config,
	repository repo.Repository,
	opts ...callline.Option,
) (*service, error) {
	policy := timer.NewPolicy(settings.Timer.DangerZone)
	now := time.Now()

	s := &service{
		repo:    repository,
		studios: settings.Studios,
		timers:  make(map[string]*timer.State, len(settings.Studios)),
		signals: replicator.NewMemoryStore[*signal.Signal](),
		board:   callline.NewSwitchboard(settings.Studios, settings.LinesPerStudio, opts...),
		book:    callline.NewMemoryPhoneBook(),
	}

	for _, studio := range settings.Studios {
		s.timers[studio] = policy.Initial(studio, settings.Timer.DefaultDuration, now)
	}

	if repository == nil {
		return s, nil
	}

	stored, err := repository.Load(ctx)
	switch {
	case err == nil:
		for studio, record := range stored {
			if settings.HasStudio(studio) {
				s.timers[studio] = record
			}
		}
	case errors.Is(err, repo.ErrNotFound):
		// Keep default state.
	default:
		return nil, fmt.Errorf("load state: %w", err)
	}

	return s, nil
}

func (s *service) knownStudio(studio string) error {
	if slices.Contains(s.studios, studio) {
		return nil
	}

	return fmt.Errorf("%w: %q", config.ErrUnknownStudio, studio)
}

// CommitTimer stores record unless the stored one is newer, and returns the winner.
func (s *service) CommitTimer(ctx context.Context, record *timer.State) (*timer.State, error) {
	if err := s.knownStudio(record.Studio); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.timers[record.Studio]
	if cur != nil && cur.LastUpdate.After(record.LastUpdate) {
		logger.DebugKV(ctx, "Ignoring stale timer commit", "studio", record.Studio, "last_update", record.LastUpdate)

		return cur.Clone(), nil
	}

	next := maps.Clone(s.timers)
	next[record.Studio] = record.Clone()

	if s.repo != nil {
		if err := s.repo.Save(ctx, next); err != nil {
			logger.Errorf(ctx, "Failed to persist timer state: %v", err)

			return nil, fmt.Errorf("persist state: %w", err)
		}
	}

	s.timers = next

	logger.DebugKV(ctx, "Timer committed", "studio", record.Studio, "timer", record.String(), "actor", record.UpdatedBy)

	return record.Clone(), nil
}

// GetTimer returns the authoritative timer record of studio.
func (s *service) GetTimer(_ context.Context, studio string) (*timer.State, error) {
	if err := s.knownStudio(studio); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.timers[studio].Clone(), nil
}

// CommitSignal stores record unless the stored one is newer.
func (s *service) CommitSignal(ctx context.Context, record *signal.Signal) (*signal.Signal, error) {
	if err := s.knownStudio(record.Studio); err != nil {
		return nil, err
	}

	stored, err := s.signals.Commit(ctx, record)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Signal committed", "studio", stored.Studio, "kind", stored.Kind, "sequence", stored.Sequence)

	return stored, nil
}

// GetSignal returns the latest signal of studio, or an empty one.
func (s *service) GetSignal(ctx context.Context, studio string) (*signal.Signal, error) {
	if err := s.knownStudio(studio); err != nil {
		return nil, err
	}

	record, err := s.signals.Read(ctx, studio)
	if errors.Is(err, replicator.ErrNotFound) {
		return signal.Empty(studio), nil
	}

	return record, err
}

// ApplyCallEvent applies cmd to the studio's board and returns its lines.
func (s *service) ApplyCallEvent(ctx context.Context, studio string, cmd callline.Command) ([]callline.Line, error) {
	board, err := s.board.Board(studio)
	if err != nil {
		return nil, err
	}

	_, err = board.Apply(cmd)
	metrics.IncLineEvent(studio, cmd.Event.String(), err)

	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Call line updated", "studio", studio, "line", cmd.LineID, "event", cmd.Event.String())

	return board.Lines(), nil
}

// ListLines returns the studio's call-line pool.
func (s *service) ListLines(_ context.Context, studio string) ([]callline.Line, error) {
	board, err := s.board.Board(studio)
	if err != nil {
		return nil, err
	}

	return board.Lines(), nil
}

// SaveToPhoneBook stores the caller of a line.
func (s *service) SaveToPhoneBook(ctx context.Context, studio string, lineID int) (callline.Entry, error) {
	board, err := s.board.Board(studio)
	if err != nil {
		return callline.Entry{}, err
	}

	entry, err := board.SaveToPhoneBook(lineID, s.book)
	if err != nil {
		return callline.Entry{}, err
	}

	logger.InfoKV(ctx, "Caller saved", "studio", studio, "contact", entry.Contact, "phone", entry.PhoneNumber)

	return entry, nil
}
