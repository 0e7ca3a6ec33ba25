// ABOUTME: Store interfaces and row types for the chat data tier
// ABOUTME: Defines conditional inserts with echoed rows and per-statement consistency levels

package store

import (
	"context"
	"errors"
	"math"

	"github.com/2389/chat-data/internal/consistency"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Table names, shared by every backend and used in log fields.
const (
	TableAccountByUsername  = "accounts.info_by_username"
	TableAccountByID        = "accounts.info_by_id"
	TableChannelByID        = "data.channel_by_id"
	TableMessageByID        = "data.message_by_id"
	TableMessageByChannelID = "data.message_by_channel_id"
	TableConfigText         = "config.cfg_text"
)

// Account is a row of either account projection. Both projections carry the
// same columns.
type Account struct {
	ID             int64
	Username       string
	HashedPassword string
	Permissions    int64
}

// Channel is a row of the channel table
type Channel struct {
	ID          int64
	Name        string
	Description string
	OwnerID     int64
}

// Message is a row of the message tables. The same row is written to the
// uniqueness table and to the channel-ordered history table.
type Message struct {
	ID        int64
	Content   string
	AuthorID  int64
	ChannelID int64
}

// HistoryRange selects messages of one channel with AfterID <= id <= BeforeID.
// Newest orders the result by descending id; otherwise ascending.
type HistoryRange struct {
	ChannelID int64
	BeforeID  int64
	AfterID   int64
	Limit     int
	Newest    bool
}

// Unbounded returns a range covering every message of the channel.
func Unbounded(channelID int64, limit int, newest bool) HistoryRange {
	return HistoryRange{
		ChannelID: channelID,
		BeforeID:  math.MaxInt64,
		AfterID:   math.MinInt64,
		Limit:     limit,
		Newest:    newest,
	}
}

// AccountStore holds both account projections. Conditional inserts report
// whether they were applied and, when they were not, the row that already
// occupies the key.
type AccountStore interface {
	InsertAccountByUsername(ctx context.Context, acct *Account, lvl consistency.Level) (bool, *Account, error)
	InsertAccountByID(ctx context.Context, acct *Account, lvl consistency.Level) (bool, *Account, error)
	// SetAccountID unconditionally rewrites the id column of the by-username row.
	SetAccountID(ctx context.Context, username string, id int64, lvl consistency.Level) error
	GetAccountByUsername(ctx context.Context, username string, lvl consistency.Level) (*Account, error)
	GetAccountByID(ctx context.Context, id int64, lvl consistency.Level) (*Account, error)
}

// ChannelStore holds channels, messages and the denormalized history.
type ChannelStore interface {
	InsertChannel(ctx context.Context, ch *Channel, lvl consistency.Level) (bool, *Channel, error)
	GetChannel(ctx context.Context, id int64, lvl consistency.Level) (*Channel, error)
	ListChannels(ctx context.Context, lvl consistency.Level) ([]*Channel, error)

	InsertMessage(ctx context.Context, msg *Message, lvl consistency.Level) (bool, *Message, error)
	// AppendHistory unconditionally writes msg to the history table.
	AppendHistory(ctx context.Context, msg *Message, lvl consistency.Level) error
	History(ctx context.Context, r HistoryRange, lvl consistency.Level) ([]*Message, error)
}

// ConfigStore holds write-once text configuration values.
type ConfigStore interface {
	// InsertConfig stores value under key unless the key exists. When it
	// does, the stored value is returned instead.
	InsertConfig(ctx context.Context, key, value string, lvl consistency.Level) (bool, string, error)
	GetConfig(ctx context.Context, key string, lvl consistency.Level) (string, error)
}

// Store is the full row store used by the services.
type Store interface {
	AccountStore
	ChannelStore
	ConfigStore

	Ping(ctx context.Context) error
	Close() error
}
