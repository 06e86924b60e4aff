package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/domain/timer"
	"github.com/oshokin/studio-control/internal/wire"
)

// Repository defines persistence operations for timer records keyed by studio.
type Repository interface {
	Load(ctx context.Context) (map[string]*timer.State, error)
	Save(ctx context.Context, timers map[string]*timer.State) error
}

// FileRepository persists timer records to a JSON file on disk.
// JSON is produced and consumed via protojson over the wire records.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// codec converts records and recomputes derived fields on load.
	codec wire.TimerCodec
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

const timersKey = "timers"

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("state not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string, policy timer.Policy) *FileRepository {
	return &FileRepository{
		path:  filepath.Clean(path),
		codec: wire.TimerCodec{Policy: policy},
	}
}

// Load reads every stored record from disk.
func (r *FileRepository) Load(_ context.Context) (map[string]*timer.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	stored := doc.GetFields()[timersKey].GetStructValue().GetFields()
	timers := make(map[string]*timer.State, len(stored))

	for studio, value := range stored {
		record, err := r.codec.FromStruct(value.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("decode studio %q: %w", studio, err)
		}

		timers[record.Studio] = record
	}

	return timers, nil
}

// Save writes all records to disk, replacing the previous file.
func (r *FileRepository) Save(_ context.Context, timers map[string]*timer.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make(map[string]*structpb.Value, len(timers))

	for studio, record := range timers {
		s, err := r.codec.ToStruct(record)
		if err != nil {
			return fmt.Errorf("encode studio %q: %w", studio, err)
		}

		records[studio] = structpb.NewStructValue(s)
	}

	doc := &structpb.Struct{Fields: map[string]*structpb.Value{
		timersKey: structpb.NewStructValue(&structpb.Struct{Fields: records}),
	}}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}
