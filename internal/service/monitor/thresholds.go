package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/studio-control/internal/domain/alarm"
	"github.com/oshokin/studio-control/internal/logger"
)

// LoadThresholds reads per-transmitter threshold overrides from a YAML file.
// A missing file yields the built-in defaults.
func LoadThresholds(path string) (*alarm.ThresholdSet, error) {
	set := new(alarm.ThresholdSet)
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // Path comes from trusted configuration.
	if errors.Is(err, os.ErrNotExist) {
		return set, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read thresholds: %w", err)
	}

	if err = yaml.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("parse thresholds %s: %w", path, err)
	}

	return set, nil
}

// WatchThresholds calls apply with the reloaded set whenever path changes,
// until ctx is done. The parent directory is watched so editors that
// replace the file are noticed too. A file that fails to parse is logged
// and the previous set stays in effect.
func WatchThresholds(ctx context.Context, path string, apply func(*alarm.ThresholdSet)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	defer func() {
		_ = watcher.Close()
	}()

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve thresholds path: %w", err)
	}

	if err = watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			name, _ := filepath.Abs(event.Name)
			if name != target || event.Op&reloadOps == 0 {
				continue
			}

			set, err := LoadThresholds(target)
			if err != nil {
				logger.WarnKV(ctx, "Threshold reload failed, keeping previous values", "file", target, "error", err)
				continue
			}

			logger.InfoKV(ctx, "Thresholds reloaded", "file", target, "transmitters", len(set.Transmitters))
			apply(set)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.WarnKV(ctx, "File watcher error", "error", err)
		}
	}
}
