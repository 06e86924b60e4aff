package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of every studio-control binary.
type Config struct {
	// ServerAddress is the gRPC address of studio-server.
	ServerAddress string `yaml:"server_addr"`
	// StateFile is where studio-server persists timer records.
	StateFile string `yaml:"state_file"`
	// Timeout bounds every RPC and broker round-trip.
	Timeout time.Duration `yaml:"timeout"`
	// MetricsAddress enables the Prometheus endpoint when set.
	MetricsAddress string `yaml:"metrics_addr,omitempty"`
	// Studios lists the studio identifiers served by this deployment.
	Studios []string `yaml:"studios"`
	// LinesPerStudio is the fixed size of each studio's call-line pool.
	LinesPerStudio int `yaml:"lines_per_studio"`

	Timer  Timer  `yaml:"timer"`
	Sync   Sync   `yaml:"sync"`
	MQTT   MQTT   `yaml:"mqtt"`
	Alarms Alarms `yaml:"alarms"`
}

// Timer configures the countdown clock.
type Timer struct {
	// DefaultDuration is the initial and reset value of each studio timer.
	DefaultDuration time.Duration `yaml:"default_duration"`
	// DangerZone is the remaining time at or below which the timer is flagged.
	DangerZone time.Duration `yaml:"danger_zone"`
}

// Sync configures the replication intervals.
type Sync struct {
	PollInterval       time.Duration `yaml:"poll_interval"`
	TickInterval       time.Duration `yaml:"tick_interval"`
	StallThreshold     time.Duration `yaml:"stall_threshold"`
	StallCheckInterval time.Duration `yaml:"stall_check_interval"`
	// Tolerance is the remaining-time difference a follower ignores on poll.
	// Nil means DefaultTolerance; an explicit zero demands an exact match.
	Tolerance *time.Duration `yaml:"tolerance,omitempty"`
}

// PollTolerance returns Tolerance or its default when unset.
func (s Sync) PollTolerance() time.Duration {
	if s.Tolerance == nil || *s.Tolerance < 0 {
		return DefaultTolerance
	}

	return *s.Tolerance
}

// MQTT configures the push channel broker connection.
type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	QoS         byte   `yaml:"qos"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Alarms configures alarm-monitor.
type Alarms struct {
	// ThresholdsFile holds per-transmitter threshold overrides; watched for changes.
	ThresholdsFile string `yaml:"thresholds_file,omitempty"`
	// RefreshInterval is the classification tick.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// TelemetryTopic is the broker filter transmitters publish snapshots on.
	TelemetryTopic string `yaml:"telemetry_topic"`
}

const (
	// DefaultConfigFilename is the settings file looked up when no path is given.
	DefaultConfigFilename = "studio-control.yaml"
	// DefaultStateFilename is the timer state file of studio-server.
	DefaultStateFilename = "studio-timers.json"
	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second
	// DefaultFilePermissions is used for every file this project writes.
	DefaultFilePermissions = 0o600

	DefaultLinesPerStudio     = 4
	DefaultTimerDuration      = 5 * time.Minute
	DefaultDangerZone         = 120 * time.Second
	DefaultPollInterval       = 2 * time.Second
	DefaultTickInterval       = time.Second
	DefaultStallThreshold     = 5 * time.Second
	DefaultStallCheckInterval = time.Second
	DefaultTolerance          = time.Second
	DefaultBroker             = "tcp://localhost:1883"
	DefaultTopicPrefix        = "studio"
	DefaultRefreshInterval    = 5 * time.Second
	DefaultTelemetryTopic     = "transmitter/+/telemetry"
)

// Environment variables that override file values.
const (
	EnvServerAddress = "STUDIO_SERVER_ADDR"
	EnvMQTTBroker    = "STUDIO_MQTT_BROKER"
	EnvMQTTUsername  = "STUDIO_MQTT_USERNAME"
	EnvMQTTPassword  = "STUDIO_MQTT_PASSWORD"
)

// ErrUnknownStudio is returned for studio identifiers outside Studios.
var ErrUnknownStudio = errors.New("unknown studio")

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errInvalidStudio is returned for empty or duplicated studio identifiers.
	errInvalidStudio = errors.New("studio identifiers must be unique and non-empty")
	// errInvalidQoS is returned for MQTT QoS values outside 0..2.
	errInvalidQoS = errors.New("mqtt qos must be 0, 1 or 2")
	// errInvalidInterval is returned when intervals would stall the replicator.
	errInvalidInterval = errors.New("stall threshold must exceed the stall check interval")
)

// Load reads configuration from path, applies environment overrides and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	// A missing .env file is the common case.
	_ = godotenv.Load() //nolint:errcheck // Optional file.

	ApplyEnv(&cfg, os.Getenv)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyEnv overrides connection settings with non-empty environment values.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	override(&cfg.ServerAddress, EnvServerAddress)
	override(&cfg.MQTT.Broker, EnvMQTTBroker)
	override(&cfg.MQTT.Username, EnvMQTTUsername)
	override(&cfg.MQTT.Password, EnvMQTTPassword)
}

// Validate checks required fields and fills defaults in place.
//
//nolint:cyclop // A flat list of defaults reads better than helpers.
func Validate(cfg *Config) error {
	if cfg.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if len(cfg.Studios) == 0 {
		cfg.Studios = []string{"A", "B"}
	}

	for i, studio := range cfg.Studios {
		if strings.TrimSpace(studio) == "" || slices.Contains(cfg.Studios[:i], studio) {
			return fmt.Errorf("%w: %q", errInvalidStudio, studio)
		}
	}

	if cfg.LinesPerStudio <= 0 {
		cfg.LinesPerStudio = DefaultLinesPerStudio
	}

	setDuration(&cfg.Timer.DefaultDuration, DefaultTimerDuration)
	setDuration(&cfg.Timer.DangerZone, DefaultDangerZone)
	setDuration(&cfg.Sync.PollInterval, DefaultPollInterval)
	setDuration(&cfg.Sync.TickInterval, DefaultTickInterval)
	setDuration(&cfg.Sync.StallThreshold, DefaultStallThreshold)
	setDuration(&cfg.Sync.StallCheckInterval, DefaultStallCheckInterval)
	setDuration(&cfg.Alarms.RefreshInterval, DefaultRefreshInterval)

	if cfg.Sync.Tolerance == nil || *cfg.Sync.Tolerance < 0 {
		tolerance := DefaultTolerance
		cfg.Sync.Tolerance = &tolerance
	}

	if cfg.Sync.StallThreshold <= cfg.Sync.StallCheckInterval {
		return errInvalidInterval
	}

	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = DefaultBroker
	}

	if cfg.MQTT.QoS > 2 { //nolint:mnd // MQTT defines QoS 0..2.
		return errInvalidQoS
	}

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}

	if cfg.Alarms.TelemetryTopic == "" {
		cfg.Alarms.TelemetryTopic = DefaultTelemetryTopic
	}

	return nil
}

// HasStudio reports whether id is one of the configured studios.
func (c *Config) HasStudio(id string) bool {
	return slices.Contains(c.Studios, id)
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst <= 0 {
		*dst = def
	}
}
