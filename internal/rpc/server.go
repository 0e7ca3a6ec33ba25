// ABOUTME: gRPC server construction with keepalive policy and logging interceptors
// ABOUTME: Registers the account, channel, and config services on one server

package rpc

import (
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// Services groups the handlers served by one process.
type Services struct {
	Accounts *AccountService
	Channels *ChannelService
	Config   *ConfigService
}

// NewServer creates a gRPC server with the standard options and registers
// every non-nil service.
func NewServer(svcs Services, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	rpcLogger := logger.With("component", "rpc")

	opts = append([]grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(UnaryLoggingInterceptor(rpcLogger)),
		grpc.ChainStreamInterceptor(StreamLoggingInterceptor(rpcLogger)),
	}, opts...)

	server := grpc.NewServer(opts...)
	if svcs.Accounts != nil {
		RegisterAccountServiceServer(server, svcs.Accounts)
	}
	if svcs.Channels != nil {
		RegisterChannelServiceServer(server, svcs.Channels)
	}
	if svcs.Config != nil {
		RegisterConfigServiceServer(server, svcs.Config)
	}
	return server
}
