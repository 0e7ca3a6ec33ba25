// ABOUTME: ConfigService handler exposing shared string configuration values
// ABOUTME: Resolves values through the secret provisioner and returns them as StringValue

package rpc

import (
	"context"
	"log/slog"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/2389/chat-data/internal/secrets"
)

// Configs resolves string configuration values by type.
type Configs interface {
	Get(ctx context.Context, t secrets.ConfigType) (string, error)
}

// ConfigService implements ConfigServiceServer.
type ConfigService struct {
	configs Configs
	logger  *slog.Logger
}

// NewConfigService creates a ConfigService.
func NewConfigService(c Configs, logger *slog.Logger) *ConfigService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigService{configs: c, logger: logger.With("component", "rpc.config")}
}

// GetStringConfig returns the value for the requested type. Unknown types
// are InvalidArgument.
func (s *ConfigService) GetStringConfig(ctx context.Context, req *GetStringConfigRequest) (*wrapperspb.StringValue, error) {
	v, err := s.configs.Get(ctx, secrets.ConfigType(req.ConfigType))
	if err != nil {
		return nil, toStatus(ctx, s.logger, fullMethod(ConfigServiceName, "GetStringConfig"), err)
	}
	return wrapperspb.String(v), nil
}

var _ ConfigServiceServer = (*ConfigService)(nil)
