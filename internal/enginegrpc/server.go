package enginegrpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"

	"pkt.systems/pslog"
	"pkt.systems/taskstream/schema"
)

// Backend is what the gRPC server exposes as an engine.
type Backend interface {
	NewTask(ctx context.Context, req schema.TaskRequest) (schema.TaskID, error)
	// Subscribe pushes state JSON payloads through send until the state
	// stream is exhausted (return nil) or ctx ends.
	Subscribe(ctx context.Context, send func(stateJSON []byte) error) error
	// ToggleMode switches the engine mode. Returning schema.ErrToggleRejected
	// answers false instead of failing the call.
	ToggleMode(ctx context.Context, mode schema.Mode) error
}

// Server serves cline.TaskService and cline.StateService from a Backend.
type Server struct {
	cfg     Config
	backend Backend
	logger  pslog.Logger
}

// NewServer constructs an engine gRPC server.
func NewServer(cfg Config, backend Backend) *Server {
	return &Server{cfg: cfg, backend: backend}
}

// Register attaches both services to reg.
func (s *Server) Register(reg grpc.ServiceRegistrar) {
	RegisterTaskServer(reg, s)
	RegisterStateServer(reg, s)
}

// ListenAndServe listens on cfg.Address over TCP and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	address := strings.TrimSpace(s.cfg.Address)
	if address == "" {
		return errors.New("engine listen address is required")
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx ends, then stops gracefully. Calls
// still running after cfg.StopGrace are cut off.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.backend == nil {
		return errors.New("engine backend is required")
	}
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	grpcServer := grpc.NewServer()
	s.Register(grpcServer)
	s.logger.Info("engine grpc listening", "address", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		s.stop(grpcServer)
		s.logger.Info("engine grpc stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) stop(grpcServer *grpc.Server) {
	grace := s.cfg.StopGrace
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn("engine grpc graceful stop timed out", "grace", grace)
		grpcServer.Stop()
		<-done
	}
}

// NewTask implements TaskServer.
func (s *Server) NewTask(ctx context.Context, in *dynamicpb.Message) (*dynamicpb.Message, error) {
	log := s.callLogger(ctx)
	req, err := fromPBTaskRequest(in)
	if err != nil {
		log.Warn("engine grpc new task rejected", "err", err)
		return nil, status.Errorf(codes.InvalidArgument, "new task: %v", err)
	}
	id, err := s.backend.NewTask(ctx, req)
	if err != nil {
		log.Warn("engine grpc new task failed", "err", err)
		return nil, backendStatus("new task", err)
	}
	log.Info("engine grpc task created", "task", id, "mode", req.Settings.Mode, "text_len", len(req.Text))
	return stringValue(string(id)), nil
}

// SubscribeToState implements StateServer.
func (s *Server) SubscribeToState(_ *dynamicpb.Message, stream grpc.ServerStream) error {
	ctx := stream.Context()
	log := s.callLogger(ctx)
	log.Debug("engine grpc state subscriber")
	sent := 0
	err := s.backend.Subscribe(ctx, func(stateJSON []byte) error {
		sent++
		return stream.SendMsg(stateValue(stateJSON))
	})
	if err != nil {
		if ctx.Err() != nil {
			log.Debug("engine grpc state subscriber gone", "sent", sent)
			return status.FromContextError(ctx.Err()).Err()
		}
		log.Warn("engine grpc state stream failed", "err", err, "sent", sent)
		return backendStatus("subscribe", err)
	}
	log.Debug("engine grpc state stream done", "sent", sent)
	return nil
}

// TogglePlanActModeProto implements StateServer.
func (s *Server) TogglePlanActModeProto(ctx context.Context, in *dynamicpb.Message) (*dynamicpb.Message, error) {
	log := s.callLogger(ctx)
	mode, err := fromPBToggleRequest(in)
	if err != nil {
		log.Warn("engine grpc toggle rejected", "err", err)
		return nil, status.Errorf(codes.InvalidArgument, "toggle mode: %v", err)
	}
	if err := s.backend.ToggleMode(ctx, mode); err != nil {
		if errors.Is(err, schema.ErrToggleRejected) {
			log.Info("engine grpc toggle declined", "mode", mode)
			return booleanValue(false), nil
		}
		log.Warn("engine grpc toggle failed", "mode", mode, "err", err)
		return nil, backendStatus("toggle mode", err)
	}
	log.Info("engine grpc mode toggled", "mode", mode)
	return booleanValue(true), nil
}

func (s *Server) callLogger(ctx context.Context) pslog.Logger {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(ctx)
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(clientIDHeader); len(ids) > 0 && ids[0] != "" {
			return log.With("client", ids[0])
		}
	}
	return log
}

func backendStatus(op string, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, schema.ErrInvalidRequest), errors.Is(err, schema.ErrInvalidMode), errors.Is(err, schema.ErrEmptyTask):
		return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: %v", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: %v", op, err)
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}
