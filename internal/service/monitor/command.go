package monitor

import (
	"context"
	"fmt"

	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/observability/metrics"
	"github.com/oshokin/studio-control/internal/service/common"
)

const binaryName = "alarm-monitor"

// Options configures the alarm monitor.
type Options struct {
	// ConfigPath to YAML settings file.
	ConfigPath string
	// ThresholdsFile overrides alarms.thresholds_file from config when specified.
	ThresholdsFile string
}

// Run monitors telemetry until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, binaryName)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	thresholdsFile := cfg.Alarms.ThresholdsFile
	if opts.ThresholdsFile != "" {
		thresholdsFile = opts.ThresholdsFile
	}

	thresholds, err := LoadThresholds(thresholdsFile)
	if err != nil {
		return err
	}

	channel, err := common.DialPush(ctx, cfg, binaryName)
	if err != nil {
		return fmt.Errorf("connect to push broker: %w", err)
	}

	defer channel.Close()

	if cfg.MetricsAddress != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddress); err != nil {
				logger.ErrorKV(ctx, "Metrics server failed", "error", err)
			}
		}()
	}

	m := New(channel, cfg.MQTT.TopicPrefix, cfg.Alarms.TelemetryTopic, thresholds)

	if thresholdsFile != "" {
		go func() {
			if err := WatchThresholds(ctx, thresholdsFile, m.SetThresholds); err != nil {
				logger.WarnKV(ctx, "Threshold reload disabled", "file", thresholdsFile, "error", err)
			}
		}()
	}

	return m.Run(ctx, cfg.Alarms.RefreshInterval)
}
