package enginegrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"pkt.systems/pslog"
	"pkt.systems/taskstream/core"
	"pkt.systems/taskstream/internal/logx"
	"pkt.systems/taskstream/schema"
)

// Client implements core.Engine over gRPC.
type Client struct {
	conn     *grpc.ClientConn
	clientID schema.ClientID
	owned    bool
}

// Dial connects to the engine at cfg.Address.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, core.NewEngineError(core.EngineErrorInvalidRequest, "dial", errors.New("engine address is required"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	maxRecv := cfg.MaxRecvBytes
	if maxRecv <= 0 {
		maxRecv = DefaultMaxRecvBytes
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecv)),
	}
	if cfg.KeepaliveInterval > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveInterval,
			Timeout:             cfg.KeepaliveInterval,
			PermitWithoutStream: true,
		}))
	}
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, core.NewEngineError(core.EngineErrorConnection, "dial", err)
	}
	client := NewClient(conn, schema.ClientID(cfg.ClientID))
	client.owned = true
	if cfg.DialTimeout > 0 {
		if err := waitReady(ctx, conn, cfg.DialTimeout); err != nil {
			_ = conn.Close()
			pslog.Ctx(ctx).Warn("engine grpc dial failed", "address", address, "err", err)
			return nil, core.NewEngineError(core.EngineErrorConnection, "dial", err)
		}
	}
	logx.WithClient(ctx, client.clientID).Debug("engine grpc connected", "address", address)
	return client, nil
}

// NewClient wraps an existing connection. An empty clientID generates one.
func NewClient(conn *grpc.ClientConn, clientID schema.ClientID) *Client {
	if clientID == "" {
		clientID = schema.ClientID(uuid.NewString())
	}
	return &Client{conn: conn, clientID: clientID}
}

// ClientID returns the id sent as client-id metadata.
func (c *Client) ClientID() schema.ClientID {
	return c.clientID
}

// Close closes the underlying connection when the client dialled it.
func (c *Client) Close() error {
	if c.conn != nil && c.owned {
		return c.conn.Close()
	}
	return nil
}

// CreateTask calls cline.TaskService/newTask.
func (c *Client) CreateTask(ctx context.Context, req schema.TaskRequest) (schema.TaskID, error) {
	if c.conn == nil {
		return "", errors.New("engine client not initialized")
	}
	log := logx.WithClient(ctx, c.clientID)
	payload, err := toPBTaskRequest(req)
	if err != nil {
		return "", core.NewEngineError(core.EngineErrorInvalidRequest, "create_task", err)
	}
	log.Trace("engine grpc new task", "text_len", len(req.Text), "mode", req.Settings.Mode)
	out := newMessage(stringDesc)
	if err := c.conn.Invoke(c.outgoing(ctx), newTaskMethod, payload, out); err != nil {
		logGRPCError(log, "engine grpc new task failed", err)
		return "", wrapEngineError("create_task", err)
	}
	id := strings.TrimSpace(getString(out, "value"))
	if id == "" {
		return "", core.NewEngineError(core.EngineErrorUnknown, "create_task", errors.New("engine returned an empty task id"))
	}
	return schema.TaskID(id), nil
}

// SubscribeState opens cline.StateService/subscribeToState. Cancelling ctx or
// calling Close on the stream ends the subscription.
func (c *Client) SubscribeState(ctx context.Context) (core.SnapshotStream, error) {
	if c.conn == nil {
		return nil, errors.New("engine client not initialized")
	}
	log := logx.WithClient(ctx, c.clientID)
	streamCtx, cancel := context.WithCancel(c.outgoing(ctx))
	stream, err := c.conn.NewStream(streamCtx, subscribeToStateStreamDesc, subscribeToStateMethod)
	if err != nil {
		cancel()
		logGRPCError(log, "engine grpc subscribe failed", err)
		return nil, wrapEngineError("subscribe_state", err)
	}
	if err := stream.SendMsg(withMetadata(emptyRequestDesc)); err != nil {
		cancel()
		logGRPCError(log, "engine grpc subscribe failed", err)
		return nil, wrapEngineError("subscribe_state", err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		logGRPCError(log, "engine grpc subscribe failed", err)
		return nil, wrapEngineError("subscribe_state", err)
	}
	log.Trace("engine grpc subscribed")
	return &stateStream{stream: stream, cancel: cancel, logger: log}, nil
}

// ToggleMode calls cline.StateService/togglePlanActModeProto.
func (c *Client) ToggleMode(ctx context.Context, mode schema.Mode) error {
	if c.conn == nil {
		return errors.New("engine client not initialized")
	}
	payload, err := toPBToggleRequest(mode)
	if err != nil {
		return core.NewEngineError(core.EngineErrorInvalidRequest, "toggle_mode", err)
	}
	log := logx.WithClient(ctx, c.clientID)
	out := newMessage(booleanDesc)
	if err := c.conn.Invoke(c.outgoing(ctx), togglePlanActModeMethod, payload, out); err != nil {
		logGRPCError(log, "engine grpc toggle mode failed", err)
		return wrapEngineError("toggle_mode", err)
	}
	if !getBool(out, "value") {
		log.Warn("engine grpc toggle mode rejected", "mode", mode)
		return core.NewEngineError(core.EngineErrorToggle, "toggle_mode", fmt.Errorf("engine rejected mode %s", mode))
	}
	log.Trace("engine grpc toggle mode", "mode", mode)
	return nil
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, clientIDHeader, string(c.clientID))
}

type stateStream struct {
	stream grpc.ClientStream
	cancel context.CancelFunc
	logger pslog.Logger

	closeOnce sync.Once
}

func (s *stateStream) Next(ctx context.Context) (core.RawSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.RawSnapshot{}, err
	}
	msg := newMessage(stateDesc)
	if err := s.stream.RecvMsg(msg); err != nil {
		if errors.Is(err, io.EOF) {
			return core.RawSnapshot{}, io.EOF
		}
		if ctx.Err() != nil {
			return core.RawSnapshot{}, ctx.Err()
		}
		logGRPCError(s.logger, "engine grpc state stream failed", err)
		return core.RawSnapshot{}, wrapEngineError("subscribe_state", err)
	}
	stateJSON := getString(msg, "state_json")
	s.logger.Trace("engine grpc state update", "bytes", len(stateJSON))
	return core.RawSnapshot{StateJSON: []byte(stateJSON)}, nil
}

func (s *stateStream) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("connection shut down")
		}
		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("engine not ready after %s: %w", timeout, ctx.Err())
		}
	}
}

func logGRPCError(log pslog.Logger, msg string, err error) {
	if log == nil || err == nil {
		return
	}
	if st, ok := status.FromError(err); ok {
		log.Warn(msg, "err", err, "code", st.Code().String(), "message", st.Message())
		return
	}
	log.Warn(msg, "err", err)
}

func wrapEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *core.EngineError
	if errors.As(err, &existing) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return core.NewEngineError(core.EngineErrorCanceled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewEngineError(core.EngineErrorTimeout, op, err)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable:
			return core.NewEngineError(core.EngineErrorConnection, op, err)
		case codes.InvalidArgument, codes.FailedPrecondition:
			return core.NewEngineError(core.EngineErrorInvalidRequest, op, err)
		case codes.Unauthenticated:
			return core.NewEngineError(core.EngineErrorUnauthorized, op, err)
		case codes.PermissionDenied:
			return core.NewEngineError(core.EngineErrorPermissionDenied, op, err)
		case codes.DeadlineExceeded:
			return core.NewEngineError(core.EngineErrorTimeout, op, err)
		case codes.Canceled:
			return core.NewEngineError(core.EngineErrorCanceled, op, err)
		default:
			return core.NewEngineError(core.EngineErrorUnknown, op, err)
		}
	}
	return core.NewEngineError(core.EngineErrorUnknown, op, err)
}
