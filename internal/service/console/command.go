package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/domain/operator"
	"github.com/oshokin/studio-control/internal/domain/signal"
	"github.com/oshokin/studio-control/internal/domain/timer"
	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/replicator"
	"github.com/oshokin/studio-control/internal/service/common"
	"github.com/oshokin/studio-control/internal/transport/push"
	"github.com/oshokin/studio-control/internal/version"
)

const binaryName = "studio-console"

// Options configures a console session.
type Options struct {
	// ConfigPath to YAML settings file.
	ConfigPath string
	// ServerAddress overrides the server address from config when specified.
	ServerAddress string
	// Role selects producer or talent behavior.
	Role operator.Role
	// Studio is the studio to control or follow; the first configured one when empty.
	Studio string
	// Input provides operator commands, os.Stdin when nil.
	Input io.Reader
	// Output receives console output, os.Stdout when nil.
	Output io.Writer
}

// ErrUnknownRole is returned for roles other than producer and talent.
var ErrUnknownRole = errors.New("unknown console role")

// environment holds what both console roles are built from.
type environment struct {
	settings *config.Config
	policy   timer.Policy
	actor    *operator.Actor
	timers   replicator.Store[*timer.State]
	signals  replicator.Store[*signal.Signal]
	lines    LineControl
	channel  push.Channel
	origin   string
	out      *printer
}

// Run starts the console and blocks until ctx is canceled.
//
//nolint:cyclop,funlen // Startup wiring reads best as one sequence.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, binaryName)

	if !opts.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, opts.Role)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	studio := opts.Studio
	if studio == "" {
		studio = cfg.Studios[0]
	}

	if !cfg.HasStudio(studio) {
		return fmt.Errorf("%w: %q", config.ErrUnknownStudio, studio)
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	actor, err := common.DetectActor(opts.Role)
	if err != nil {
		return fmt.Errorf("detect actor: %w", err)
	}

	policy := timer.NewPolicy(cfg.Timer.DangerZone)

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout), common.WithPolicy(policy))
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	origin := version.ClientID(binaryName, string(opts.Role), studio)

	var channel push.Channel

	mqtt, err := common.DialPush(ctx, cfg, binaryName, string(opts.Role), studio)
	if err != nil {
		logger.WarnKV(ctx, "Push channel unavailable, relying on polling", "broker", cfg.MQTT.Broker, "error", err)
	} else {
		defer mqtt.Close()

		channel = mqtt
	}

	input := opts.Input
	if input == nil {
		input = os.Stdin
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	env := &environment{
		settings: cfg,
		policy:   policy,
		actor:    actor,
		timers:   common.TimerStore{Client: client},
		signals:  common.SignalStore{Client: client},
		lines:    client,
		channel:  channel,
		origin:   origin,
		out:      newPrinter(output),
	}

	logger.InfoKV(ctx, "Console started",
		"role", opts.Role, "studio", studio, "server_address", serverAddress, "actor", actor.String())

	var session interface {
		run(ctx context.Context) func()
		execute(ctx context.Context, line string) error
	}

	switch opts.Role {
	case operator.RoleProducer:
		session = newProducer(env, studio)
	case operator.RoleTalent:
		session = newTalent(env, studio)
	}

	wait := session.run(ctx)
	defer wait()

	return commandLoop(ctx, input, env.out, session.execute)
}
