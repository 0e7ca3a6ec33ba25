// ABOUTME: Hand-written gRPC service descriptors for chat.v1 Account, Channel, and Config services
// ABOUTME: Generic unary adapters decode the request, run interceptors, and dispatch to the handler

package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/2389/chat-data/internal/channels"
)

// Service names
const (
	AccountServiceName = "chat.v1.AccountService"
	ChannelServiceName = "chat.v1.ChannelService"
	ConfigServiceName  = "chat.v1.ConfigService"
)

// AccountServiceServer is the server API for chat.v1.AccountService.
type AccountServiceServer interface {
	Create(context.Context, *CredentialsRequest) (*User, error)
	Login(context.Context, *CredentialsRequest) (*User, error)
	Token(context.Context, *CredentialsRequest) (*TokenResponse, error)
	Verify(context.Context, *VerifyRequest) (*User, error)
}

// ChannelServiceServer is the server API for chat.v1.ChannelService.
type ChannelServiceServer interface {
	CreateChannel(context.Context, *CreateChannelRequest) (*channels.ChannelView, error)
	CreateMessage(context.Context, *CreateMessageRequest) (*channels.MessageView, error)
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
	ListChannels(context.Context, *ListChannelsRequest) (*ListChannelsResponse, error)
	Subscribe(*SubscribeRequest, MessageStream) error
}

// ConfigServiceServer is the server API for chat.v1.ConfigService.
type ConfigServiceServer interface {
	GetStringConfig(context.Context, *GetStringConfigRequest) (*wrapperspb.StringValue, error)
}

// MessageStream is the server side of ChannelService/Subscribe.
type MessageStream interface {
	Send(*channels.MessageView) error
	Context() context.Context
}

type messageStream struct {
	grpc.ServerStream
}

func (s *messageStream) Send(m *channels.MessageView) error {
	return s.SendMsg(m)
}

func fullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// unary builds a MethodDesc for a handler method on server type S.
func unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	full := fullMethod(service, method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AccountServiceDesc describes chat.v1.AccountService.
var AccountServiceDesc = grpc.ServiceDesc{
	ServiceName: AccountServiceName,
	HandlerType: (*AccountServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(AccountServiceName, "Create", AccountServiceServer.Create),
		unary(AccountServiceName, "Login", AccountServiceServer.Login),
		unary(AccountServiceName, "Token", AccountServiceServer.Token),
		unary(AccountServiceName, "Verify", AccountServiceServer.Verify),
	},
	Metadata: "chat/v1/chat.proto",
}

// ChannelServiceDesc describes chat.v1.ChannelService.
var ChannelServiceDesc = grpc.ServiceDesc{
	ServiceName: ChannelServiceName,
	HandlerType: (*ChannelServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ChannelServiceName, "CreateChannel", ChannelServiceServer.CreateChannel),
		unary(ChannelServiceName, "CreateMessage", ChannelServiceServer.CreateMessage),
		unary(ChannelServiceName, "History", ChannelServiceServer.History),
		unary(ChannelServiceName, "ListChannels", ChannelServiceServer.ListChannels),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "chat/v1/chat.proto",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ChannelServiceServer).Subscribe(in, &messageStream{stream})
}

// ConfigServiceDesc describes chat.v1.ConfigService.
var ConfigServiceDesc = grpc.ServiceDesc{
	ServiceName: ConfigServiceName,
	HandlerType: (*ConfigServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ConfigServiceName, "GetStringConfig", ConfigServiceServer.GetStringConfig),
	},
	Metadata: "chat/v1/chat.proto",
}

// RegisterAccountServiceServer registers srv on s.
func RegisterAccountServiceServer(s grpc.ServiceRegistrar, srv AccountServiceServer) {
	s.RegisterService(&AccountServiceDesc, srv)
}

// RegisterChannelServiceServer registers srv on s.
func RegisterChannelServiceServer(s grpc.ServiceRegistrar, srv ChannelServiceServer) {
	s.RegisterService(&ChannelServiceDesc, srv)
}

// RegisterConfigServiceServer registers srv on s.
func RegisterConfigServiceServer(s grpc.ServiceRegistrar, srv ConfigServiceServer) {
	s.RegisterService(&ConfigServiceDesc, srv)
}
