package studio

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/domain/callline"
	"github.com/oshokin/studio-control/internal/domain/signal"
	"github.com/oshokin/studio-control/internal/domain/timer"
	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/replicator"
	"github.com/oshokin/studio-control/internal/wire"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	CommitTimer(ctx context.Context, record *timer.State) (*timer.State, error)
	GetTimer(ctx context.Context, studio string) (*timer.State, error)
	CommitSignal(ctx context.Context, record *signal.Signal) (*signal.Signal, error)
	GetSignal(ctx context.Context, studio string) (*signal.Signal, error)
	ApplyCallEvent(ctx context.Context, studio string, cmd callline.Command) ([]callline.Line, error)
	ListLines(ctx context.Context, studio string) ([]callline.Line, error)
	SaveToPhoneBook(ctx context.Context, studio string, lineID int) (callline.Entry, error)
}

// Server implements the StudioService gRPC API.
type Server struct {
	// service provides the business logic for studio operations.
	service Service
	// timers decodes timer records and recomputes their danger flag.
	timers wire.TimerCodec
	signals wire.SignalCodec
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service, policy timer.Policy) *Server {
	return &Server{
		service: service,
		timers:  wire.TimerCodec{Policy: policy},
	}
}

// CommitTimer stores a full timer record and returns the stored one.
func (s *Server) CommitTimer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	record, err := s.timers.FromStruct(req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	stored, err := s.service.CommitTimer(ctx, record)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	out, err := s.timers.ToStruct(stored)

	return encode(ctx, out, err)
}

// GetTimer returns the authoritative timer record of a studio.
func (s *Server) GetTimer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	studio, err := wire.StudioOf(req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	record, err := s.service.GetTimer(ctx, studio)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	out, err := s.timers.ToStruct(record)

	return encode(ctx, out, err)
}

// CommitSignal stores a full signal record and returns the stored one.
func (s *Server) CommitSignal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	record, err := s.signals.FromStruct(req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	stored, err := s.service.CommitSignal(ctx, record)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	out, err := s.signals.ToStruct(stored)

	return encode(ctx, out, err)
}

// GetSignal returns the latest signal of a studio.
func (s *Server) GetSignal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	studio, err := wire.StudioOf(req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	record, err := s.service.GetSignal(ctx, studio)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	out, err := s.signals.ToStruct(record)

	return encode(ctx, out, err)
}

// ApplyCallEvent applies one call-control command and returns the studio's lines.
func (s *Server) ApplyCallEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	studio, cmd, err := wire.CommandFromStruct(req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	lines, err := s.service.ApplyCallEvent(ctx, studio, cmd)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	out, err := wire.LinesToStruct(studio, lines)

	return encode(ctx, out, err)
}

// ListLines returns the call-line pool of a studio.
func (s *Server) ListLines(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	studio, err := wire.StudioOf(req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	lines, err := s.service.ListLines(ctx, studio)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	out, err := wire.LinesToStruct(studio, lines)

	return encode(ctx, out, err)
}

// SaveToPhoneBook stores the caller of a line in the phone book.
func (s *Server) SaveToPhoneBook(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	studio, lineID, err := wire.LineRefFrom(req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	entry, err := s.service.SaveToPhoneBook(ctx, studio, lineID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	out, err := wire.EntryToStruct(entry)

	return encode(ctx, out, err)
}

func encode(ctx context.Context, out *structpb.Struct, err error) (*structpb.Struct, error) {
	if err != nil {
		logger.Errorf(ctx, "Failed to encode response: %v", err)
		return nil, status.Error(codes.Internal, "unable to encode response")
	}

	return out, nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(ctx context.Context, err error) error {
	var code codes.Code

	switch {
	case errors.Is(err, wire.ErrInvalidRecord),
		errors.Is(err, callline.ErrNoPhoneNumber),
		errors.Is(err, timer.ErrNegativeDuration):
		code = codes.InvalidArgument
	case errors.Is(err, config.ErrUnknownStudio),
		errors.Is(err, callline.ErrStudioNotFound),
		errors.Is(err, callline.ErrLineNotFound),
		errors.Is(err, replicator.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, callline.ErrInvalidTransition):
		code = codes.FailedPrecondition
	default:
		logger.Errorf(ctx, "Request failed: %v", err)

		return status.Error(codes.Internal, "unable to process request")
	}

	logger.InfoKV(ctx, "Request rejected", "code", code.String(), "error", err)

	return status.Error(code, err.Error())
}
