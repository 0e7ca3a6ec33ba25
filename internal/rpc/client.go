// ABOUTME: Typed client for the chat.v1 services over a gRPC connection
// ABOUTME: Every call uses the JSON content subtype; Subscribe returns a receive-only stream

package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/2389/chat-data/internal/channels"
	"github.com/2389/chat-data/internal/secrets"
)

// Client calls the chat.v1 services.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to addr without transport security. Extra options are
// appended after the defaults.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection. Close is a no-op for it.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes a connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, service, method string, req, resp any, opts ...grpc.CallOption) error {
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	return c.cc.Invoke(ctx, fullMethod(service, method), req, resp, opts...)
}

func (c *Client) CreateAccount(ctx context.Context, username, password string) (*User, error) {
	out := new(User)
	err := c.invoke(ctx, AccountServiceName, "Create", &CredentialsRequest{Username: username, Password: password}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	out := new(User)
	err := c.invoke(ctx, AccountServiceName, "Login", &CredentialsRequest{Username: username, Password: password}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Token(ctx context.Context, username, password string) (*TokenResponse, error) {
	out := new(TokenResponse)
	err := c.invoke(ctx, AccountServiceName, "Token", &CredentialsRequest{Username: username, Password: password}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Verify(ctx context.Context, token string) (*User, error) {
	out := new(User)
	if err := c.invoke(ctx, AccountServiceName, "Verify", &VerifyRequest{AccessToken: token}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateChannel(ctx context.Context, name, description string, ownerID int64) (*channels.ChannelView, error) {
	out := new(channels.ChannelView)
	req := &CreateChannelRequest{Name: name, Description: description, OwnerID: ownerID}
	if err := c.invoke(ctx, ChannelServiceName, "CreateChannel", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateMessage(ctx context.Context, content string, authorID, channelID int64) (*channels.MessageView, error) {
	out := new(channels.MessageView)
	req := &CreateMessageRequest{Content: content, AuthorID: authorID, ChannelID: channelID}
	if err := c.invoke(ctx, ChannelServiceName, "CreateMessage", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, req *HistoryRequest) ([]*channels.MessageView, error) {
	out := new(HistoryResponse)
	if err := c.invoke(ctx, ChannelServiceName, "History", req, out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// ListChannels lists every channel, or only id when it is non-nil.
func (c *Client) ListChannels(ctx context.Context, id *int64) ([]*channels.ChannelView, error) {
	out := new(ListChannelsResponse)
	if err := c.invoke(ctx, ChannelServiceName, "ListChannels", &ListChannelsRequest{ID: id}, out); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

func (c *Client) GetStringConfig(ctx context.Context, t secrets.ConfigType) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, ConfigServiceName, "GetStringConfig", &GetStringConfigRequest{ConfigType: int32(t)}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Subscription receives messages from ChannelService/Subscribe.
type Subscription struct {
	stream grpc.ClientStream
}

// Recv blocks for the next message. It returns io.EOF when the server ends
// the stream. Errors from opening the subscription, such as an unknown
// channel, surface on the first Recv.
func (s *Subscription) Recv() (*channels.MessageView, error) {
	m := new(channels.MessageView)
	if err := s.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Subscribe opens a live stream for a channel. Cancel ctx to stop it.
func (c *Client) Subscribe(ctx context.Context, channelID int64) (*Subscription, error) {
	desc := &ChannelServiceDesc.Streams[0]
	stream, err := c.cc.NewStream(ctx, desc, fullMethod(ChannelServiceName, desc.StreamName), grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&SubscribeRequest{ChannelID: channelID}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	// Returns once the server is subscribed, or the stream has already ended.
	if _, err := stream.Header(); err != nil {
		return nil, err
	}
	return &Subscription{stream: stream}, nil
}
