//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/studio-control/internal/api/grpc/studio"
	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/domain/callline"
	"github.com/oshokin/studio-control/internal/domain/signal"
	"github.com/oshokin/studio-control/internal/domain/timer"
	"github.com/oshokin/studio-control/internal/replicator"
	"github.com/oshokin/studio-control/internal/wire"
)

// Client wraps the gRPC StudioService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to studio-server.
	conn *grpc.ClientConn
	// api is the StudioService stub.
	api *api.Client

	timers  wire.TimerCodec
	signals wire.SignalCodec

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithPolicy sets the policy used to recompute derived timer fields on decode.
func WithPolicy(policy timer.Policy) Option {
	return func(c *Client) {
		c.timers = wire.TimerCodec{Policy: policy}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errNotDialed is returned by methods of a Client built without Dial.
	errNotDialed = errors.New("client is not connected")
)

// Dial establishes a gRPC connection to studio-server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial studio server: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewClient(conn),
		timers:      wire.TimerCodec{Policy: timer.NewPolicy(config.DefaultDangerZone)},
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// CommitTimer stores a full timer record and returns the stored one.
func (c *Client) CommitTimer(ctx context.Context, record *timer.State) (*timer.State, error) {
	req, err := c.timers.ToStruct(record)
	if err != nil {
		return nil, err
	}

	resp, err := c.invoke(ctx, api.MethodCommitTimer, req)
	if err != nil {
		return nil, fmt.Errorf("commit timer: %w", err)
	}

	return c.timers.FromStruct(resp)
}

// GetTimer reads the authoritative timer record of studio.
func (c *Client) GetTimer(ctx context.Context, studio string) (*timer.State, error) {
	resp, err := c.invoke(ctx, api.MethodGetTimer, wire.Studio(studio))
	if err != nil {
		return nil, fmt.Errorf("get timer: %w", err)
	}

	return c.timers.FromStruct(resp)
}

// CommitSignal stores a full signal record and returns the stored one.
func (c *Client) CommitSignal(ctx context.Context, record *signal.Signal) (*signal.Signal, error) {
	req, err := c.signals.ToStruct(record)
	if err != nil {
		return nil, err
	}

	resp, err := c.invoke(ctx, api.MethodCommitSignal, req)
	if err != nil {
		return nil, fmt.Errorf("commit signal: %w", err)
	}

	return c.signals.FromStruct(resp)
}

// GetSignal reads the latest signal of studio.
func (c *Client) GetSignal(ctx context.Context, studio string) (*signal.Signal, error) {
	resp, err := c.invoke(ctx, api.MethodGetSignal, wire.Studio(studio))
	if err != nil {
		return nil, fmt.Errorf("get signal: %w", err)
	}

	return c.signals.FromStruct(resp)
}

// ApplyCallEvent sends one call-control command and returns the studio's lines.
func (c *Client) ApplyCallEvent(ctx context.Context, studio string, cmd callline.Command) ([]callline.Line, error) {
	req, err := wire.CommandToStruct(studio, cmd)
	if err != nil {
		return nil, err
	}

	resp, err := c.invoke(ctx, api.MethodApplyCallEvent, req)
	if err != nil {
		return nil, fmt.Errorf("%s line %d: %w", cmd.Event, cmd.LineID, err)
	}

	_, lines, err := wire.LinesFromStruct(resp)

	return lines, err
}

// MakeCall dials caller on line.
func (c *Client) MakeCall(ctx context.Context, studio string, line int, caller callline.Caller) ([]callline.Line, error) {
	return c.ApplyCallEvent(ctx, studio, callline.Command{Event: callline.EventMakeCall, LineID: line, Caller: caller})
}

// HangupCall ends the call on line.
func (c *Client) HangupCall(ctx context.Context, studio string, line int) ([]callline.Line, error) {
	return c.ApplyCallEvent(ctx, studio, callline.Command{Event: callline.EventHangup, LineID: line})
}

// HoldCall puts line on hold.
func (c *Client) HoldCall(ctx context.Context, studio string, line int) ([]callline.Line, error) {
	return c.ApplyCallEvent(ctx, studio, callline.Command{Event: callline.EventHold, LineID: line})
}

// SendToAir puts line on air.
func (c *Client) SendToAir(ctx context.Context, studio string, line int) ([]callline.Line, error) {
	return c.ApplyCallEvent(ctx, studio, callline.Command{Event: callline.EventSendToAir, LineID: line})
}

// TakeOffAir returns the on-air line to active.
func (c *Client) TakeOffAir(ctx context.Context, studio string, line int) ([]callline.Line, error) {
	return c.ApplyCallEvent(ctx, studio, callline.Command{Event: callline.EventTakeOffAir, LineID: line})
}

// ListLines returns the call-line pool of studio.
func (c *Client) ListLines(ctx context.Context, studio string) ([]callline.Line, error) {
	resp, err := c.invoke(ctx, api.MethodListLines, wire.Studio(studio))
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}

	_, lines, err := wire.LinesFromStruct(resp)

	return lines, err
}

// SaveToPhoneBook stores the caller of line in the server's phone book.
func (c *Client) SaveToPhoneBook(ctx context.Context, studio string, line int) (callline.Entry, error) {
	resp, err := c.invoke(ctx, api.MethodSaveToPhoneBook, wire.LineRef(studio, line))
	if err != nil {
		return callline.Entry{}, fmt.Errorf("save to phone book: %w", err)
	}

	return wire.EntryFromStruct(resp)
}

func (c *Client) invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	if c.api == nil {
		return nil, errNotDialed
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Invoke(callCtx, method, req)
	if err != nil {
		return nil, fromStatus(err)
	}

	return resp, nil
}

// fromStatus keeps the status error and adds the matching domain sentinel.
func fromStatus(err error) error {
	switch status.Code(err) { //nolint:exhaustive // Other codes carry no domain meaning.
	case codes.NotFound:
		return fmt.Errorf("%w: %w", replicator.ErrNotFound, err)
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %w", callline.ErrInvalidTransition, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %w", wire.ErrInvalidRecord, err)
	default:
		return err
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// TimerStore adapts the client to replicator.Store for timer records.
type TimerStore struct {
	Client *Client
}

// Commit implements replicator.Store.
func (s TimerStore) Commit(ctx context.Context, record *timer.State) (*timer.State, error) {
	return s.Client.CommitTimer(ctx, record)
}

// Read implements replicator.Store.
func (s TimerStore) Read(ctx context.Context, studio string) (*timer.State, error) {
	return s.Client.GetTimer(ctx, studio)
}

// SignalStore adapts the client to replicator.Store for signal records.
type SignalStore struct {
	Client *Client
}

// Commit implements replicator.Store.
func (s SignalStore) Commit(ctx context.Context, record *signal.Signal) (*signal.Signal, error) {
	return s.Client.CommitSignal(ctx, record)
}

// Read implements replicator.Store.
func (s SignalStore) Read(ctx context.Context, studio string) (*signal.Signal, error) {
	return s.Client.GetSignal(ctx, studio)
}
