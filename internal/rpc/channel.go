// ABOUTME: ChannelService handlers for channels, messages, history, and live subscription
// ABOUTME: Translates wire requests to channel service calls and streams published messages

package rpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/2389/chat-data/internal/channels"
)

// Channels is the channel service surface the RPC layer needs.
type Channels interface {
	CreateChannel(ctx context.Context, name, description string, ownerID int64) (*channels.ChannelView, error)
	CreateMessage(ctx context.Context, content string, authorID, channelID int64) (*channels.MessageView, error)
	History(ctx context.Context, q channels.HistoryQuery) ([]*channels.MessageView, error)
	ListChannels(ctx context.Context, id *int64) ([]*channels.ChannelView, error)
	Subscribe(ctx context.Context, channelID int64) (<-chan *channels.MessageView, error)
}

// ChannelService implements ChannelServiceServer.
type ChannelService struct {
	channels Channels
	logger   *slog.Logger
}

// NewChannelService creates a ChannelService.
func NewChannelService(ch Channels, logger *slog.Logger) *ChannelService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelService{
		channels: ch,
		logger:   logger.With("component", "rpc.channels"),
	}
}

func (s *ChannelService) fail(ctx context.Context, method string, err error) error {
	return toStatus(ctx, s.logger, fullMethod(ChannelServiceName, method), err)
}

func (s *ChannelService) CreateChannel(ctx context.Context, req *CreateChannelRequest) (*channels.ChannelView, error) {
	ch, err := s.channels.CreateChannel(ctx, req.Name, req.Description, req.OwnerID)
	if err != nil {
		return nil, s.fail(ctx, "CreateChannel", err)
	}
	return ch, nil
}

func (s *ChannelService) CreateMessage(ctx context.Context, req *CreateMessageRequest) (*channels.MessageView, error) {
	m, err := s.channels.CreateMessage(ctx, req.Content, req.AuthorID, req.ChannelID)
	if err != nil {
		return nil, s.fail(ctx, "CreateMessage", err)
	}
	return m, nil
}

func (s *ChannelService) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	msgs, err := s.channels.History(ctx, channels.HistoryQuery{
		ChannelID: req.ChannelID,
		BeforeID:  req.BeforeID,
		AfterID:   req.AfterID,
		Limit:     int(req.Limit),
		Newest:    req.Newest,
	})
	if err != nil {
		return nil, s.fail(ctx, "History", err)
	}
	return &HistoryResponse{Messages: msgs}, nil
}

func (s *ChannelService) ListChannels(ctx context.Context, req *ListChannelsRequest) (*ListChannelsResponse, error) {
	chs, err := s.channels.ListChannels(ctx, req.ID)
	if err != nil {
		return nil, s.fail(ctx, "ListChannels", err)
	}
	return &ListChannelsResponse{Channels: chs}, nil
}

// Subscribe streams messages published to a channel until the caller goes
// away or the bus closes the subscription.
func (s *ChannelService) Subscribe(req *SubscribeRequest, stream MessageStream) error {
	ctx := stream.Context()
	msgs, err := s.channels.Subscribe(ctx, req.ChannelID)
	if err != nil {
		return s.fail(ctx, "Subscribe", err)
	}
	// Headers tell the client the subscription is live.
	if err := grpc.SendHeader(ctx, metadata.MD{}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := stream.Send(m); err != nil {
				return err
			}
		}
	}
}

var _ ChannelServiceServer = (*ChannelService)(nil)
