// ABOUTME: Maps domain errors to gRPC status codes
// ABOUTME: Anything unrecognized becomes a generic Internal error with detail kept in server logs

package rpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/chat-data/internal/accounts"
	"github.com/2389/chat-data/internal/auth"
	"github.com/2389/chat-data/internal/channels"
	"github.com/2389/chat-data/internal/secrets"
	"github.com/2389/chat-data/internal/store"
)

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{accounts.ErrAlreadyExists, codes.AlreadyExists},
	{accounts.ErrUnauthenticated, codes.Unauthenticated},
	{auth.ErrInvalidToken, codes.Unauthenticated},
	{auth.ErrExpiredToken, codes.Unauthenticated},
	{auth.ErrMissingClaim, codes.Unauthenticated},
	{accounts.ErrNotFound, codes.NotFound},
	{channels.ErrNotFound, codes.NotFound},
	{store.ErrNotFound, codes.NotFound},
	{accounts.ErrInvalidCredentials, codes.InvalidArgument},
	{channels.ErrInvalidQuery, codes.InvalidArgument},
	{secrets.ErrUnknownKey, codes.InvalidArgument},
}

// codeOf returns the code for err, or codes.Internal.
func codeOf(err error) codes.Code {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

// toStatus converts a handler error to a status error. Internal failures are
// logged in full and the caller sees only "internal error".
func toStatus(ctx context.Context, logger *slog.Logger, method string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codeOf(err)
	if code == codes.Internal {
		logger.ErrorContext(ctx, "internal error",
			"method", method,
			"request_id", RequestID(ctx),
			"error", err,
		)
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
