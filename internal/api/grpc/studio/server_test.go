package studio

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/domain/callline"
	"github.com/oshokin/studio-control/internal/domain/signal"
	"github.com/oshokin/studio-control/internal/domain/timer"
	"github.com/oshokin/studio-control/internal/wire"
)

var (
	policy     = timer.Policy{DangerZoneSeconds: 120}
	errTestIO  = errors.New("disk full")
	timerCodec = wire.TimerCodec{Policy: policy}
)

// fakeService implements the studio Service interface for unit testing the transport.
type fakeService struct {
	timers map[string]*timer.State
	board  *callline.Board
	book   *callline.MemoryPhoneBook
	// commitErr is returned from CommitTimer when set.
	commitErr error
}

func newFakeService() *fakeService {
	return &fakeService{
		timers: make(map[string]*timer.State),
		board:  callline.NewBoard("A", 2),
		book:   callline.NewMemoryPhoneBook(),
	}
}

func (f *fakeService) CommitTimer(_ context.Context, record *timer.State) (*timer.State, error) {
	if f.commitErr != nil {
		return nil, f.commitErr
	}

	f.timers[record.Studio] = record

	return record, nil
}

func (f *fakeService) GetTimer(_ context.Context, studio string) (*timer.State, error) {
	record, ok := f.timers[studio]
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStudio, studio)
	}

	return record, nil
}

func (f *fakeService) CommitSignal(_ context.Context, record *signal.Signal) (*signal.Signal, error) {
	return record, nil
}

func (f *fakeService) GetSignal(_ context.Context, studio string) (*signal.Signal, error) {
	return signal.Empty(studio), nil
}

func (f *fakeService) ApplyCallEvent(_ context.Context, studio string, cmd callline.Command) ([]callline.Line, error) {
	if studio != f.board.Studio() {
		return nil, callline.ErrStudioNotFound
	}

	if _, err := f.board.Apply(cmd); err != nil {
		return nil, err
	}

	return f.board.Lines(), nil
}

func (f *fakeService) ListLines(_ context.Context, _ string) ([]callline.Line, error) {
	return f.board.Lines(), nil
}

func (f *fakeService) SaveToPhoneBook(_ context.Context, _ string, lineID int) (callline.Entry, error) {
	return f.board.SaveToPhoneBook(lineID, f.book)
}

func command(t *testing.T, studio string, cmd callline.Command) *structpb.Struct {
	t.Helper()

	req, err := wire.CommandToStruct(studio, cmd)
	require.NoError(t, err)

	return req
}

// TestServer_Validation ensures malformed requests return InvalidArgument errors.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(newFakeService(), policy)

	_, err := s.CommitTimer(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.GetTimer(context.Background(), &structpb.Struct{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.SaveToPhoneBook(context.Background(), wire.Studio("A"))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_TimerRoundtrip exercises CommitTimer and GetTimer on the server implementation.
func TestServer_TimerRoundtrip(t *testing.T) {
	t.Parallel()

	s := NewServer(newFakeService(), policy)
	want := policy.Initial("A", 5*time.Minute, time.Now().UTC())
	want.IsRunning = true

	req, err := timerCodec.ToStruct(want)
	require.NoError(t, err)

	_, err = s.CommitTimer(context.Background(), req)
	require.NoError(t, err)

	resp, err := s.GetTimer(context.Background(), wire.Studio("A"))
	require.NoError(t, err)

	got, err := timerCodec.FromStruct(resp)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = s.GetTimer(context.Background(), wire.Studio("Z"))
	require.Equal(t, codes.NotFound, status.Code(err))
}

// TestServer_CommitFailure ensures persistence errors surface as Internal without details.
func TestServer_CommitFailure(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.commitErr = errTestIO
	s := NewServer(svc, policy)

	req, err := timerCodec.ToStruct(policy.Initial("A", time.Minute, time.Now()))
	require.NoError(t, err)

	_, err = s.CommitTimer(context.Background(), req)
	require.Equal(t, codes.Internal, status.Code(err))
	require.NotContains(t, status.Convert(err).Message(), errTestIO.Error())
}

// TestServer_CallControl ensures call events apply and map domain failures to status codes.
func TestServer_CallControl(t *testing.T) {
	t.Parallel()

	s := NewServer(newFakeService(), policy)
	ctx := context.Background()

	resp, err := s.ApplyCallEvent(ctx, command(t, "A", callline.Command{
		Event:  callline.EventMakeCall,
		LineID: 1,
		Caller: callline.Caller{Contact: "Bob", PhoneNumber: "+100"},
	}))
	require.NoError(t, err)

	_, lines, err := wire.LinesFromStruct(resp)
	require.NoError(t, err)
	require.Equal(t, callline.StatusActive, lines[0].Status)

	_, err = s.ApplyCallEvent(ctx, command(t, "A", callline.Command{Event: callline.EventResume, LineID: 1}))
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = s.ApplyCallEvent(ctx, command(t, "A", callline.Command{Event: callline.EventHold, LineID: 9}))
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = s.ApplyCallEvent(ctx, command(t, "B", callline.Command{Event: callline.EventHold, LineID: 1}))
	require.Equal(t, codes.NotFound, status.Code(err))

	resp, err = s.SaveToPhoneBook(ctx, wire.LineRef("A", 1))
	require.NoError(t, err)

	entry, err := wire.EntryFromStruct(resp)
	require.NoError(t, err)
	require.Equal(t, "+100", entry.PhoneNumber)

	_, err = s.SaveToPhoneBook(ctx, wire.LineRef("A", 2))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err = s.ListLines(ctx, wire.Studio("A"))
	require.NoError(t, err)

	studio, lines, err := wire.LinesFromStruct(resp)
	require.NoError(t, err)
	require.Equal(t, "A", studio)
	require.Len(t, lines, 2)
}
