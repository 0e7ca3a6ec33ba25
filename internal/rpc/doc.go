// Package rpc exposes the chat data tier over gRPC.
//
// # Services
//
//   - chat.v1.AccountService: Create, Login, Token, Verify
//   - chat.v1.ChannelService: CreateChannel, CreateMessage, History,
//     ListChannels, Subscribe (server stream)
//   - chat.v1.ConfigService: GetStringConfig
//
// Service descriptors are written by hand and bodies travel as JSON under the
// "json" content subtype. Protobuf well-known types such as StringValue are
// encoded with protojson. Clients must send grpc.CallContentSubtype("json");
// Client does this for every call.
//
// # Errors
//
// Domain errors map to exactly one status code:
//
//   - username taken: AlreadyExists
//   - bad credentials or token: Unauthenticated
//   - unknown author, owner, or channel: NotFound
//   - malformed input, limit, or config type: InvalidArgument
//
// Everything else is Internal with the message "internal error". The full
// error is logged server side with the request id.
//
// # Request IDs
//
// Each call is assigned a request id (or reuses an inbound x-request-id),
// which is returned in the x-request-id response header and attached to
// every log line for the call.
package rpc
