// Package gateway orchestrates the chat-data server components.
//
// # Overview
//
// The gateway is the process-level owner of every long-lived handle: the row
// store connection and the fan-out bus connection are opened once in New and
// shared by all requests until Shutdown.
//
// # Wiring
//
// New builds, in order:
//
//   - the consistency policy from consistency.overrides
//   - the row store (cassandra, or sqlite/sqlite3 for single-node use)
//   - the bus (amqp, or an in-process broadcaster)
//   - the snowflake generator and conditional write coordinator
//   - the account registry, secret provisioner, and token issuer
//   - the channel service with its optional account cache
//   - the gRPC server with the chat.v1 services registered
//
// # Endpoints
//
//   - gRPC: chat.v1.AccountService, chat.v1.ChannelService, chat.v1.ConfigService
//   - GET /health: liveness
//   - GET /health/ready: 200 when the store answers a ping, 503 otherwise
//
// # Tailscale
//
// With tailscale.enabled the gateway joins the tailnet through tsnet and
// listens on :50051 (gRPC) and :80 (HTTP) there instead of the configured
// server addresses.
//
// # Shutdown
//
// Shutdown stops HTTP, closes the bus (ending live subscriptions), stops gRPC
// gracefully with a forced stop on timeout, then closes the store.
package gateway
