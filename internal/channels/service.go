// ABOUTME: Channel and message creation, listing, and live subscription
// ABOUTME: Single-table conditional inserts per entity plus the denormalized history write and fan-out publish

package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/chat-data/internal/accounts"
	"github.com/2389/chat-data/internal/bus"
	"github.com/2389/chat-data/internal/cache"
	"github.com/2389/chat-data/internal/consistency"
	"github.com/2389/chat-data/internal/coordinator"
	"github.com/2389/chat-data/internal/store"
)

// Service errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidQuery = errors.New("invalid query")
)

// ChannelView is a channel with its owner resolved. Owner is nil where the
// owner is deliberately not resolved (messages returned by History).
type ChannelView struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       *accounts.User `json:"owner,omitempty"`
}

// MessageView is a message with its author and channel resolved.
type MessageView struct {
	ID      int64          `json:"id"`
	Content string         `json:"content"`
	Author  *accounts.User `json:"author"`
	Channel *ChannelView   `json:"channel"`
}

// Options tune a Service. Zero values select defaults.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	// AccountCache, when set, is shared by every call. Account views are
	// immutable here, so entries only go stale by expiry.
	AccountCache *cache.Cache[int64, *accounts.User]
}

// Service owns channels and messages.
type Service struct {
	store        store.ChannelStore
	accounts     AccountResolver
	coord        *coordinator.Coordinator
	policy       *consistency.Policy
	publisher    bus.Publisher
	subscriber   bus.Subscriber
	accountCache *cache.Cache[int64, *accounts.User]
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// New creates a Service. Pass nil logger for default.
func New(s store.ChannelStore, accts AccountResolver, coord *coordinator.Coordinator, policy *consistency.Policy, b bus.Bus, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	return &Service{
		store:        s,
		accounts:     accts,
		coord:        coord,
		policy:       policy,
		publisher:    b,
		subscriber:   b,
		accountCache: opts.AccountCache,
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
		logger:       logger.With("component", "channels"),
	}
}

func channelView(ch *store.Channel, owner *accounts.User) *ChannelView {
	return &ChannelView{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: ch.Description,
		Owner:       owner,
	}
}

// getChannel reads a channel, mapping a miss to ErrNotFound.
func (s *Service) getChannel(ctx context.Context, id int64) (*store.Channel, error) {
	ch, err := s.store.GetChannel(ctx, id, s.policy.Level(consistency.ChannelLookup))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: channel %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading channel: %w", err)
	}
	return ch, nil
}

// CreateChannel creates a channel owned by ownerID. The owner must exist.
func (s *Service) CreateChannel(ctx context.Context, name, description string, ownerID int64) (*ChannelView, error) {
	owner, err := s.newResolver().account(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	ch := &store.Channel{Name: name, Description: description, OwnerID: ownerID}
	level := s.policy.Level(consistency.ChannelCreate)
	id, err := s.coord.Insert(ctx, func(ctx context.Context, id int64) (bool, error) {
		ch.ID = id
		applied, _, err := s.store.InsertChannel(ctx, ch, level)
		return applied, err
	})
	if err != nil {
		return nil, fmt.Errorf("creating channel: %w", err)
	}
	ch.ID = id

	s.logger.Debug("created channel", "id", id, "owner_id", ownerID)
	return channelView(ch, owner), nil
}

// CreateMessage appends a message to a channel and publishes it.
//
// Author, channel, and channel owner are resolved before anything is written.
// These are existence checks, not foreign keys. Once the uniqueness insert is
// accepted the history row is written unconditionally. A publish failure is
// returned as an error but the stored rows remain.
func (s *Service) CreateMessage(ctx context.Context, content string, authorID, channelID int64) (*MessageView, error) {
	res := s.newResolver()

	author, err := res.account(ctx, authorID)
	if err != nil {
		return nil, err
	}
	ch, err := s.getChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	owner, err := res.account(ctx, ch.OwnerID)
	if err != nil {
		return nil, err
	}

	msg := &store.Message{Content: content, AuthorID: authorID, ChannelID: channelID}
	level := s.policy.Level(consistency.MessageCreate)
	id, err := s.coord.Insert(ctx, func(ctx context.Context, id int64) (bool, error) {
		msg.ID = id
		applied, _, err := s.store.InsertMessage(ctx, msg, level)
		return applied, err
	})
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}
	msg.ID = id

	if err := s.store.AppendHistory(ctx, msg, s.policy.Level(consistency.MessageAppendHistory)); err != nil {
		s.logger.Error("message stored without history row", "id", id, "channel_id", channelID, "error", err)
		return nil, fmt.Errorf("writing history: %w", err)
	}

	view := &MessageView{
		ID:      id,
		Content: content,
		Author:  author,
		Channel: channelView(ch, owner),
	}

	payload, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	if err := s.publisher.Publish(ctx, bus.RoutingKey(channelID), payload); err != nil {
		s.logger.Error("message stored but not published", "id", id, "channel_id", channelID, "error", err)
		return nil, fmt.Errorf("publishing message: %w", err)
	}

	s.logger.Debug("created message", "id", id, "channel_id", channelID, "author_id", authorID)
	return view, nil
}

// ListChannels returns the channel with the given id, or every channel when
// id is nil. An unknown id yields an empty result.
func (s *Service) ListChannels(ctx context.Context, id *int64) ([]*ChannelView, error) {
	var rows []*store.Channel
	if id != nil {
		ch, err := s.store.GetChannel(ctx, *id, s.policy.Level(consistency.ChannelLookup))
		if errors.Is(err, store.ErrNotFound) {
			return []*ChannelView{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading channel: %w", err)
		}
		rows = []*store.Channel{ch}
	} else {
		var err error
		rows, err = s.store.ListChannels(ctx, s.policy.Level(consistency.ChannelList))
		if err != nil {
			return nil, fmt.Errorf("listing channels: %w", err)
		}
	}

	res := s.newResolver()
	views := make([]*ChannelView, 0, len(rows))
	for _, ch := range rows {
		owner, err := res.account(ctx, ch.OwnerID)
		if err != nil {
			return nil, err
		}
		views = append(views, channelView(ch, owner))
	}
	return views, nil
}

// Subscribe streams messages created in channelID from now on. The channel
// is closed when ctx is done.
func (s *Service) Subscribe(ctx context.Context, channelID int64) (<-chan *MessageView, error) {
	if _, err := s.getChannel(ctx, channelID); err != nil {
		return nil, err
	}

	payloads, err := s.subscriber.Subscribe(ctx, bus.RoutingKey(channelID))
	if err != nil {
		return nil, fmt.Errorf("subscribing: %w", err)
	}

	out := make(chan *MessageView)
	go func() {
		defer close(out)
		for p := range payloads {
			var view MessageView
			if err := json.Unmarshal(p, &view); err != nil {
				s.logger.Warn("dropping undecodable payload", "channel_id", channelID, "error", err)
				continue
			}
			select {
			case out <- &view:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
