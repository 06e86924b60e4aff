package replicator

import (
	"context"
	"errors"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNotFound is returned by stores that hold no record for a studio.
var ErrNotFound = errors.New("record not found")

// Record is a replicated per-studio value. UpdatedAt orders writes.
type Record[T any] interface {
	StudioID() string
	UpdatedAt() time.Time
	Clone() T
}

// Codec converts records to the wire representation.
type Codec[T any] interface {
	ToStruct(T) (*structpb.Struct, error)
	FromStruct(*structpb.Struct) (T, error)
}

// Store is the durable commit/read endpoint.
type Store[T any] interface {
	// Commit stores the full record and returns what the store now holds.
	Commit(ctx context.Context, record T) (T, error)
	// Read returns the authoritative record of studio.
	Read(ctx context.Context, studio string) (T, error)
}

// Mutation computes the record following cur. now is strictly after cur's timestamp.
type Mutation[T any] func(cur T, now time.Time) (T, error)

// Newer reports whether a is strictly newer than b.
func Newer[T Record[T]](a, b T) bool {
	return a.UpdatedAt().After(b.UpdatedAt())
}

// MemoryStore is a last-write-wins Store kept in memory.
type MemoryStore[T Record[T]] struct {
	mu      sync.RWMutex
	records map[string]T
}

// NewMemoryStore returns an empty store.
func NewMemoryStore[T Record[T]]() *MemoryStore[T] {
	return &MemoryStore[T]{records: make(map[string]T)}
}

// Commit implements Store. A record older than the stored one is ignored.
func (s *MemoryStore[T]) Commit(ctx context.Context, record T) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.records[record.StudioID()]; ok && Newer(cur, record) {
		return cur.Clone(), nil
	}

	s.records[record.StudioID()] = record.Clone()

	return record.Clone(), nil
}

// Read implements Store.
func (s *MemoryStore[T]) Read(ctx context.Context, studio string) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cur, ok := s.records[studio]
	if !ok {
		return zero, ErrNotFound
	}

	return cur.Clone(), nil
}

// recentIDs remembers the last size ids seen.
type recentIDs struct {
	size  int
	order []string
	seen  map[string]struct{}
}

func newRecentIDs(size int) *recentIDs {
	return &recentIDs{size: size, seen: make(map[string]struct{}, size)}
}

// add records id and reports whether it is new.
func (r *recentIDs) add(id string) bool {
	if _, ok := r.seen[id]; ok {
		return false
	}

	if len(r.order) == r.size {
		delete(r.seen, r.order[0])
		r.order = r.order[1:]
	}

	r.order = append(r.order, id)
	r.seen[id] = struct{}{}

	return true
}
