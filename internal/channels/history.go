// ABOUTME: Bounded, direction-aware message history for one channel
// ABOUTME: Resolves authors once per call and attaches a shared owner-less channel view

package channels

import (
	"context"
	"fmt"
	"math"

	"github.com/2389/chat-data/internal/consistency"
	"github.com/2389/chat-data/internal/store"
)

// History limits.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// HistoryQuery selects messages of a channel with AfterID <= id <= BeforeID.
//
// A nil or zero BeforeID means no upper bound; a nil or zero AfterID means no
// lower bound. Zero is never a valid message id, so treating it as absent
// loses nothing. Limit 0 selects the default limit and values above the
// maximum are clamped. Newest returns the most recent messages first.
type HistoryQuery struct {
	ChannelID int64
	BeforeID  *int64
	AfterID   *int64
	Limit     int
	Newest    bool
}

func (q HistoryQuery) bounds() (before, after int64) {
	before, after = math.MaxInt64, math.MinInt64
	if q.BeforeID != nil && *q.BeforeID != 0 {
		before = *q.BeforeID
	}
	if q.AfterID != nil && *q.AfterID != 0 {
		after = *q.AfterID
	}
	return before, after
}

func (s *Service) limit(requested int) (int, error) {
	switch {
	case requested < 0:
		return 0, fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, requested)
	case requested == 0:
		return s.defaultLimit, nil
	case requested > s.maxLimit:
		return s.maxLimit, nil
	default:
		return requested, nil
	}
}

// History returns a page of messages for a channel.
func (s *Service) History(ctx context.Context, q HistoryQuery) ([]*MessageView, error) {
	limit, err := s.limit(q.Limit)
	if err != nil {
		return nil, err
	}

	before, after := q.bounds()
	if after > before {
		return []*MessageView{}, nil
	}

	ch, err := s.getChannel(ctx, q.ChannelID)
	if err != nil {
		return nil, err
	}
	// Owner is left unresolved; every message shares this one view.
	chView := channelView(ch, nil)

	rows, err := s.store.History(ctx, store.HistoryRange{
		ChannelID: q.ChannelID,
		BeforeID:  before,
		AfterID:   after,
		Limit:     limit,
		Newest:    q.Newest,
	}, s.policy.Level(consistency.MessageHistory))
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	res := s.newResolver()
	views := make([]*MessageView, 0, len(rows))
	for _, m := range rows {
		author, err := res.account(ctx, m.AuthorID)
		if err != nil {
			return nil, err
		}
		views = append(views, &MessageView{
			ID:      m.ID,
			Content: m.Content,
			Author:  author,
			Channel: chView,
		})
	}
	return views, nil
}
