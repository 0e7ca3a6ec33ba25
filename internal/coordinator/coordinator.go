// ABOUTME: Retry protocol over single-row conditional inserts for id-uniqueness tables
// ABOUTME: Draws a fresh candidate id after every rejected insert until one is accepted

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when the attempt cap is reached without an accepted insert.
var ErrExhausted = errors.New("identifier space exhausted")

// Allocator produces candidate identifiers.
type Allocator interface {
	Next() int64
}

// InsertFunc performs one conditional insert keyed by id and reports whether
// it was applied. It must only be rejected because id is already taken.
type InsertFunc func(ctx context.Context, id int64) (applied bool, err error)

// Coordinator drives InsertFuncs to completion. It is only correct for tables
// whose sole uniqueness dimension is the allocated id; a rejection on a domain
// field (such as a username) must never be retried through it.
type Coordinator struct {
	ids         Allocator
	maxAttempts int
	logger      *slog.Logger
}

// New creates a Coordinator. maxAttempts bounds the number of inserts tried per
// call; zero or less means unbounded. Pass nil logger for default.
func New(ids Allocator, maxAttempts int, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &Coordinator{
		ids:         ids,
		maxAttempts: maxAttempts,
		logger:      logger.With("component", "coordinator"),
	}
}

// Allocate returns a fresh candidate id.
func (c *Coordinator) Allocate() int64 {
	return c.ids.Next()
}

// Insert allocates a candidate id and retries fn until an insert is applied.
// It returns the accepted id.
func (c *Coordinator) Insert(ctx context.Context, fn InsertFunc) (int64, error) {
	return c.InsertWith(ctx, c.ids.Next(), fn)
}

// InsertWith is Insert starting from a caller-chosen first candidate.
func (c *Coordinator) InsertWith(ctx context.Context, id int64, fn InsertFunc) (int64, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		applied, err := fn(ctx, id)
		if err != nil {
			return 0, err
		}
		if applied {
			return id, nil
		}

		c.logger.Debug("id collision, retrying", "id", id, "attempt", attempt)

		if c.maxAttempts > 0 && attempt >= c.maxAttempts {
			c.logger.Error("giving up after repeated id collisions", "attempts", attempt)
			return 0, fmt.Errorf("%w after %d attempts", ErrExhausted, attempt)
		}
		id = c.ids.Next()
	}
}
