// ABOUTME: Account registry keeping the by-username and by-id projections unique and in agreement
// ABOUTME: Username reservation is the authoritative check; id collisions are retried and repaired

package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/chat-data/internal/auth"
	"github.com/2389/chat-data/internal/consistency"
	"github.com/2389/chat-data/internal/coordinator"
	"github.com/2389/chat-data/internal/store"
)

// Registry errors
var (
	ErrAlreadyExists      = errors.New("username already exists")
	ErrUnauthenticated    = errors.New("invalid username or password")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("account not found")
)

// User is the public view of an account. It never carries the password digest.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Permissions int64  `json:"permissions"`
}

func userFrom(a *store.Account) *User {
	return &User{ID: a.ID, Username: a.Username, Permissions: a.Permissions}
}

// Registry creates and authenticates accounts.
type Registry struct {
	store  store.AccountStore
	coord  *coordinator.Coordinator
	hasher auth.PasswordHasher
	policy *consistency.Policy
	logger *slog.Logger
}

// New creates a Registry. Pass nil logger for default.
func New(s store.AccountStore, coord *coordinator.Coordinator, hasher auth.PasswordHasher, policy *consistency.Policy, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  s,
		coord:  coord,
		hasher: hasher,
		policy: policy,
		logger: logger.With("component", "accounts"),
	}
}

// Create registers a new account.
//
// The by-username insert is the only uniqueness check for usernames; when it
// is rejected nothing else is written. The by-id insert goes through the
// coordinator, and if it had to move to a fresh id the by-username row is
// rewritten to match. Until that rewrite lands the account is not fully
// created: the two projections briefly disagree on the id.
func (r *Registry) Create(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidCredentials)
	}

	digest, err := r.hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if err != nil {
		return nil, err
	}

	acct := &store.Account{
		ID:             r.coord.Allocate(),
		Username:       username,
		HashedPassword: digest,
	}

	applied, _, err := r.store.InsertAccountByUsername(ctx, acct, r.policy.Level(consistency.AccountReserveUsername))
	if err != nil {
		return nil, fmt.Errorf("reserving username: %w", err)
	}
	if !applied {
		return nil, ErrAlreadyExists
	}
	reservedID := acct.ID

	confirmLevel := r.policy.Level(consistency.AccountConfirmID)
	acceptedID, err := r.coord.InsertWith(ctx, reservedID, func(ctx context.Context, id int64) (bool, error) {
		row := *acct
		row.ID = id
		applied, _, err := r.store.InsertAccountByID(ctx, &row, confirmLevel)
		return applied, err
	})
	if err != nil {
		r.logger.Error("username reserved but id never confirmed", "username", username, "reserved_id", reservedID, "error", err)
		return nil, fmt.Errorf("confirming account id: %w", err)
	}

	if acceptedID != reservedID {
		if err := r.store.SetAccountID(ctx, username, acceptedID, r.policy.Level(consistency.AccountRepairID)); err != nil {
			r.logger.Error("account id repair failed", "username", username, "reserved_id", reservedID, "accepted_id", acceptedID, "error", err)
			return nil, fmt.Errorf("repairing account id: %w", err)
		}
		r.logger.Info("repaired account id after collision", "username", username, "reserved_id", reservedID, "accepted_id", acceptedID)
	}

	acct.ID = acceptedID
	r.logger.Debug("created account", "id", acceptedID, "username", username)
	return userFrom(acct), nil
}

// Login authenticates username and password. An unknown username and a wrong
// password both return ErrUnauthenticated and cost one bcrypt comparison.
func (r *Registry) Login(ctx context.Context, username, password string) (*User, error) {
	acct, err := r.store.GetAccountByUsername(ctx, username, r.policy.Level(consistency.AccountLogin))
	if errors.Is(err, store.ErrNotFound) {
		r.hasher.Verify(password, "")
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("reading account: %w", err)
	}

	if !r.hasher.Verify(password, acct.HashedPassword) {
		return nil, ErrUnauthenticated
	}
	return userFrom(acct), nil
}

// Lookup returns the account with the given id.
func (r *Registry) Lookup(ctx context.Context, id int64) (*User, error) {
	acct, err := r.store.GetAccountByID(ctx, id, r.policy.Level(consistency.AccountLookup))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading account: %w", err)
	}
	return userFrom(acct), nil
}
