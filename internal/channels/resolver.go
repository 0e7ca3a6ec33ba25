// ABOUTME: Per-call account resolution shared by channel, message, and history reads
// ABOUTME: Each distinct account id is fetched at most once per call, optionally backed by a process cache

package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/chat-data/internal/accounts"
)

// AccountResolver looks up the public view of an account.
type AccountResolver interface {
	Lookup(ctx context.Context, id int64) (*accounts.User, error)
}

// resolver memoizes account lookups for the lifetime of one call.
type resolver struct {
	svc  *Service
	seen map[int64]*accounts.User
}

func (s *Service) newResolver() *resolver {
	return &resolver{svc: s, seen: make(map[int64]*accounts.User)}
}

// account returns the account with id, or ErrNotFound.
func (r *resolver) account(ctx context.Context, id int64) (*accounts.User, error) {
	if u, ok := r.seen[id]; ok {
		return u, nil
	}
	if r.svc.accountCache != nil {
		if u, ok := r.svc.accountCache.Get(id); ok {
			r.seen[id] = u
			return u, nil
		}
	}

	u, err := r.svc.accounts.Lookup(ctx, id)
	if errors.Is(err, accounts.ErrNotFound) {
		return nil, fmt.Errorf("%w: account %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	r.seen[id] = u
	if r.svc.accountCache != nil {
		r.svc.accountCache.Put(id, u)
	}
	return u, nil
}
