// ABOUTME: Tests for the Gateway orchestrator
// ABOUTME: Runs a real gateway on SQLite and the in-process bus and talks to it over gRPC and HTTP

package gateway

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chat-data/internal/config"
	"github.com/2389/chat-data/internal/rpc"
	"github.com/2389/chat-data/internal/secrets"
)

// freeAddr returns a loopback address with an available port.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// testConfig creates a minimal config for testing with available ports.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			GRPCAddr: freeAddr(t),
			HTTPAddr: freeAddr(t),
		},
		Store: config.StoreConfig{
			Driver: config.StoreSQLite,
			Path:   filepath.Join(t.TempDir(), "chat.db"),
		},
		Bus:     config.BusConfig{Driver: config.BusMemory},
		Auth:    config.AuthConfig{BcryptCost: 4, TokenTTL: time.Hour},
		Secrets: config.SecretsConfig{Length: secrets.DefaultLength},
		History: config.HistoryConfig{DefaultLimit: 50, MaxLimit: 100},
		Cache:   config.CacheConfig{AccountTTL: time.Minute, AccountMaxEntries: 100},
	}
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGatewayNew(t *testing.T) {
	cfg := testConfig(t)

	gw, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer gw.Shutdown(context.Background())

	assert.Same(t, cfg, gw.config)
	assert.NotNil(t, gw.store)
	assert.NotNil(t, gw.bus)
	assert.NotNil(t, gw.grpcServer)
	assert.NotNil(t, gw.accountCache)
}

func TestGatewayNew_RejectsBadConsistencyOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.Consistency.Overrides = map[string]string{"account.login": "sometimes"}

	_, err := New(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}

func TestGatewayNew_UnknownStoreDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "postgres"

	_, err := New(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}

func TestHealthEndpoints(t *testing.T) {
	gw, err := New(context.Background(), testConfig(t), testLogger())
	require.NoError(t, err)

	srv := httptest.NewServer(gw.httpServer.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sqlite")

	// Once the store is closed readiness fails.
	require.NoError(t, gw.Shutdown(context.Background()))
	resp, err = http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGatewayRun_ServesRPCsAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	gw, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	client, err := rpc.Dial(cfg.Server.GRPCAddr)
	require.NoError(t, err)
	defer client.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer callCancel()

	var user *rpc.User
	require.Eventually(t, func() bool {
		user, err = client.CreateAccount(callCtx, "alice", "pw")
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	ch, err := client.CreateChannel(callCtx, "general", "", user.ID)
	require.NoError(t, err)

	_, err = client.CreateMessage(callCtx, "hello", user.ID, ch.ID)
	require.NoError(t, err)

	msgs, err := client.History(callCtx, &rpc.HistoryRequest{ChannelID: ch.ID})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)

	secret, err := client.GetStringConfig(callCtx, secrets.SecretKey)
	require.NoError(t, err)
	assert.Len(t, secret, secrets.DefaultLength)

	resp, err := http.Get("http://" + cfg.Server.HTTPAddr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestResolveTailscaleAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")
	_, err := resolveTailscaleAuthKey("")
	assert.Error(t, err)

	key, err := resolveTailscaleAuthKey("tskey-abc")
	require.NoError(t, err)
	assert.Equal(t, "tskey-abc", key)

	t.Setenv("TS_AUTHKEY", "tskey-env")
	key, err = resolveTailscaleAuthKey("")
	require.NoError(t, err)
	assert.Equal(t, "tskey-env", key)
}

func TestResolveTailscaleStateDir(t *testing.T) {
	dir, err := resolveTailscaleStateDir("/var/lib/chat")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/chat", dir)

	dir, err = resolveTailscaleStateDir("")
	require.NoError(t, err)
	assert.Contains(t, dir, filepath.Join("chat-data", "tailscale"))
}
