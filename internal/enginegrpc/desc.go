package enginegrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	taskServiceName  = "cline.TaskService"
	stateServiceName = "cline.StateService"

	newTaskMethod           = "/cline.TaskService/newTask"
	subscribeToStateMethod  = "/cline.StateService/subscribeToState"
	togglePlanActModeMethod = "/cline.StateService/togglePlanActModeProto"

	clientIDHeader = "client-id"
)

// TaskServer is the server side of cline.TaskService. Requests and replies
// are cline.NewTaskRequest and cline.String.
type TaskServer interface {
	NewTask(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
}

// StateServer is the server side of cline.StateService. subscribeToState
// takes a cline.EmptyRequest and streams cline.State; togglePlanActModeProto
// takes a cline.TogglePlanActModeRequest and answers cline.Boolean.
type StateServer interface {
	SubscribeToState(req *dynamicpb.Message, stream grpc.ServerStream) error
	TogglePlanActModeProto(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
}

var subscribeToStateStreamDesc = &grpc.StreamDesc{
	StreamName:    "subscribeToState",
	ServerStreams: true,
}

var taskServiceDesc = grpc.ServiceDesc{
	ServiceName: taskServiceName,
	HandlerType: (*TaskServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "newTask", Handler: newTaskHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cline/task.proto",
}

var stateServiceDesc = grpc.ServiceDesc{
	ServiceName: stateServiceName,
	HandlerType: (*StateServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "togglePlanActModeProto", Handler: togglePlanActModeHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "subscribeToState", Handler: subscribeToStateHandler, ServerStreams: true},
	},
	Metadata: "cline/state.proto",
}

// RegisterTaskServer registers srv as cline.TaskService.
func RegisterTaskServer(reg grpc.ServiceRegistrar, srv TaskServer) {
	reg.RegisterService(&taskServiceDesc, srv)
}

// RegisterStateServer registers srv as cline.StateService.
func RegisterStateServer(reg grpc.ServiceRegistrar, srv StateServer) {
	reg.RegisterService(&stateServiceDesc, srv)
}

func newTaskHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := newMessage(newTaskRequestDesc)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TaskServer).NewTask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: newTaskMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TaskServer).NewTask(ctx, req.(*dynamicpb.Message))
	}
	return interceptor(ctx, in, info, handler)
}

func togglePlanActModeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := newMessage(toggleRequestDesc)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StateServer).TogglePlanActModeProto(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: togglePlanActModeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StateServer).TogglePlanActModeProto(ctx, req.(*dynamicpb.Message))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeToStateHandler(srv any, stream grpc.ServerStream) error {
	in := newMessage(emptyRequestDesc)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(StateServer).SubscribeToState(in, stream)
}
