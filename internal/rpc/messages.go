// ABOUTME: Request and response bodies for the chat.v1 services
// ABOUTME: Responses reuse the account and channel views so the wire shape matches the domain

package rpc

import (
	"time"

	"github.com/2389/chat-data/internal/accounts"
	"github.com/2389/chat-data/internal/channels"
)

// CredentialsRequest is used by Create, Login and Token.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries a signed bearer token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type VerifyRequest struct {
	AccessToken string `json:"access_token"`
}

type CreateChannelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     int64  `json:"owner_id"`
}

type CreateMessageRequest struct {
	Content   string `json:"content"`
	AuthorID  int64  `json:"author_id"`
	ChannelID int64  `json:"channel_id"`
}

// HistoryRequest pages through a channel. Absent or zero bounds are unbounded.
type HistoryRequest struct {
	ChannelID int64  `json:"channel_id"`
	BeforeID  *int64 `json:"before_id,omitempty"`
	AfterID   *int64 `json:"after_id,omitempty"`
	Limit     int32  `json:"limit"`
	Newest    bool   `json:"newest"`
}

type HistoryResponse struct {
	Messages []*channels.MessageView `json:"messages"`
}

// ListChannelsRequest lists one channel when ID is set, otherwise all.
type ListChannelsRequest struct {
	ID *int64 `json:"id,omitempty"`
}

type ListChannelsResponse struct {
	Channels []*channels.ChannelView `json:"channels"`
}

type SubscribeRequest struct {
	ChannelID int64 `json:"channel_id"`
}

type GetStringConfigRequest struct {
	ConfigType int32 `json:"config_type"`
}

// User is the account view returned by the account service.
type User = accounts.User
