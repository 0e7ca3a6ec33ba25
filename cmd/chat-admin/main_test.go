// ABOUTME: Tests for the chat-admin CLI
// ABOUTME: Runs commands against an in-process gateway backed by SQLite

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chat-data/internal/config"
	"github.com/2389/chat-data/internal/gateway"
	"github.com/2389/chat-data/internal/rpc"
	"github.com/2389/chat-data/internal/snowflake"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// startServer runs a gateway and returns an admin wired to it.
func startServer(t *testing.T) (*admin, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true

	cfg := &config.Config{
		Server:  config.ServerConfig{GRPCAddr: freeAddr(t), HTTPAddr: freeAddr(t)},
		Store:   config.StoreConfig{Driver: config.StoreSQLite, Path: filepath.Join(t.TempDir(), "chat.db")},
		Bus:     config.BusConfig{Driver: config.BusMemory},
		Auth:    config.AuthConfig{BcryptCost: 4, TokenTTL: time.Hour},
		Secrets: config.SecretsConfig{Length: 32},
		History: config.HistoryConfig{DefaultLimit: 50, MaxLimit: 100},
	}
	gw, err := gateway.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client, err := rpc.Dial(cfg.Server.GRPCAddr)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	out := &bytes.Buffer{}
	return &admin{client: client, out: out, in: strings.NewReader(""), epoch: snowflake.DefaultEpoch}, out
}

func TestParseArgs(t *testing.T) {
	flags, pos := parseArgs([]string{"create", "--name", "general", "--newest", "--limit=5", "hello", "world"})
	assert.Equal(t, []string{"create", "hello", "world"}, pos)
	assert.Equal(t, "general", flags["name"])
	assert.Equal(t, "true", flags["newest"])
	assert.Equal(t, "5", flags["limit"])

	flags, _ = parseArgs([]string{"--newest", "--channel", "7"})
	assert.Equal(t, "true", flags["newest"])
	assert.Equal(t, "7", flags["channel"])
}

func TestResolveAddr(t *testing.T) {
	t.Setenv("CHAT_ADDR", "")
	t.Setenv("CHAT_SERVER_GRPC_ADDR", "")
	assert.Equal(t, "localhost:50051", resolveAddr(""))

	t.Setenv("CHAT_SERVER_GRPC_ADDR", "srv:1")
	assert.Equal(t, "srv:1", resolveAddr(""))

	t.Setenv("CHAT_ADDR", "admin:2")
	assert.Equal(t, "admin:2", resolveAddr(""))
	assert.Equal(t, "flag:3", resolveAddr("flag:3"))
}

func TestResolveEpoch(t *testing.T) {
	e, err := resolveEpoch("")
	require.NoError(t, err)
	assert.Equal(t, snowflake.DefaultEpoch, e)

	e, err = resolveEpoch("2020-06-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2020, e.Year())

	_, err = resolveEpoch("yesterday")
	assert.Error(t, err)
}

func TestCmdID(t *testing.T) {
	// 1000ms after the epoch, sequence 3.
	id := int64(1000)<<snowflake.SequenceBits | 3

	var out bytes.Buffer
	require.NoError(t, cmdID(&out, snowflake.DefaultEpoch, []string{strconv.FormatInt(id, 10)}))
	assert.Contains(t, out.String(), "2024-01-01 00:00:01.000")
	assert.Contains(t, out.String(), "3\n")

	assert.Error(t, cmdID(&out, snowflake.DefaultEpoch, []string{"abc"}))
	assert.Error(t, cmdID(&out, snowflake.DefaultEpoch, nil))
}

func TestAdminWorkflow(t *testing.T) {
	a, out := startServer(t)
	ctx := context.Background()

	var err error
	require.Eventually(t, func() bool {
		out.Reset()
		err = a.dispatch(ctx, "accounts", map[string]string{"password": "pw"}, []string{"create", "alice"})
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	assert.Contains(t, out.String(), "Account created")
	assert.Contains(t, out.String(), "alice")

	user, err := a.client.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	owner := strconv.FormatInt(user.ID, 10)

	out.Reset()
	require.NoError(t, a.dispatch(ctx, "channels", map[string]string{"name": "general", "owner": owner}, []string{"create"}))
	assert.Contains(t, out.String(), "general")

	chans, err := a.client.ListChannels(ctx, nil)
	require.NoError(t, err)
	require.Len(t, chans, 1)
	channel := strconv.FormatInt(chans[0].ID, 10)

	out.Reset()
	require.NoError(t, a.dispatch(ctx, "send", map[string]string{"channel": channel, "author": owner}, []string{"hello", "there"}))
	assert.Contains(t, out.String(), "Sent")

	out.Reset()
	require.NoError(t, a.dispatch(ctx, "history", map[string]string{"channel": channel, "newest": "true"}, nil))
	assert.Contains(t, out.String(), "alice: hello there")

	out.Reset()
	require.NoError(t, a.dispatch(ctx, "token", map[string]string{"password": "pw"}, []string{"alice"}))
	token := strings.SplitN(out.String(), "\n", 2)[0]
	assert.NotEmpty(t, token)

	out.Reset()
	require.NoError(t, a.dispatch(ctx, "verify", nil, []string{token}))
	assert.Contains(t, out.String(), "Token valid")

	out.Reset()
	require.NoError(t, a.dispatch(ctx, "secret", nil, nil))
	assert.Len(t, strings.TrimSpace(out.String()), 32)
}

func TestAdminErrors(t *testing.T) {
	a, _ := startServer(t)
	ctx := context.Background()

	assert.Error(t, a.dispatch(ctx, "bogus", nil, nil))
	assert.Error(t, a.dispatch(ctx, "send", map[string]string{"channel": "x"}, []string{"hi"}))
	assert.Error(t, a.dispatch(ctx, "history", map[string]string{}, nil))
	assert.Error(t, a.dispatch(ctx, "channels", map[string]string{"owner": "1"}, []string{"create"}))
}
