package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	api "github.com/oshokin/studio-control/internal/api/grpc/studio"
	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/domain/callline"
	"github.com/oshokin/studio-control/internal/domain/timer"
	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/observability/metrics"
	repository "github.com/oshokin/studio-control/internal/repository/state"
	"github.com/oshokin/studio-control/internal/service/common"
	"github.com/oshokin/studio-control/internal/transport/push"
	"github.com/oshokin/studio-control/internal/version"
)

const binaryName = "studio-server"

// Options controls the studio-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StateFile specifies the path to persist timer state JSON.
	StateFile string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the gRPC server and blocks until context is canceled or server stops.
// Loads configuration first, then determines listen address from config or override.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, binaryName)

	// Load configuration first to get server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// Use StateFile from config unless overridden by command line option.
	stateFile := settings.StateFile
	if opts.StateFile != "" {
		stateFile = opts.StateFile
	}

	// Determine listen address: CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	// The push channel is optional: without it consoles still converge by polling.
	var channel push.Channel

	mqtt, err := common.DialPush(ctx, settings, binaryName)
	if err != nil {
		logger.WarnKV(ctx, "Push channel unavailable, call-line events will not be published", "error", err)
	} else {
		defer mqtt.Close()

		channel = mqtt
	}

	publisher := newLinesPublisher(channel, settings.MQTT.TopicPrefix, version.ClientID(binaryName))

	go publisher.run(ctx)

	if settings.MetricsAddress != "" {
		go func() {
			if err := metrics.Serve(ctx, settings.MetricsAddress); err != nil {
				logger.ErrorKV(ctx, "Metrics server failed", "error", err)
			}
		}()
	}

	policy := timer.NewPolicy(settings.Timer.DangerZone)

	// Initialize state repository for timer persistence.
	repo := repository.NewFileRepository(stateFile, policy)

	svc, err := newService(ctx, settings, repo, callline.WithListener(publisher.listener(ctx)))
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	return serve(ctx, listenAddress, api.NewServer(svc, policy), stateFile)
}

// serve runs srv on listenAddress until ctx is done.
func serve(ctx context.Context, listenAddress string, srv *api.Server, stateFile string) error {
	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer()
	api.Register(grpcServer, srv)

	logger.InfoKV(ctx, "Studio server listening", "listen_address", listenAddress, "state_file", stateFile)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	// Use override address if provided (e.g., ":9090", "0.0.0.0:8080").
	if override != "" {
		return override, nil
	}

	// Extract port from config address (e.g., "server.example.com:8080" -> ":8080").
	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	// Parse the address to extract port.
	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Return port-only listen address to bind on all interfaces.
	return ":" + port, nil
}
