// ABOUTME: AccountService handlers for account creation, login, and bearer tokens
// ABOUTME: Token signs a JWT after a successful login; Verify checks one and returns the account

package rpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/2389/chat-data/internal/accounts"
	"github.com/2389/chat-data/internal/auth"
)

// Accounts is the registry surface the account service needs.
type Accounts interface {
	Create(ctx context.Context, username, password string) (*accounts.User, error)
	Login(ctx context.Context, username, password string) (*accounts.User, error)
	Lookup(ctx context.Context, id int64) (*accounts.User, error)
}

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	Issue(ctx context.Context, accountID int64, username string, permissions int64) (string, time.Time, error)
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// AccountService implements AccountServiceServer.
type AccountService struct {
	accounts Accounts
	tokens   Tokens
	logger   *slog.Logger
}

// NewAccountService creates an AccountService. tokens may be nil, in which
// case Token and Verify fail with Internal.
func NewAccountService(accts Accounts, tokens Tokens, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		accounts: accts,
		tokens:   tokens,
		logger:   logger.With("component", "rpc.accounts"),
	}
}

var errNoTokens = errors.New("token issuer not configured")

func (s *AccountService) fail(ctx context.Context, method string, err error) error {
	return toStatus(ctx, s.logger, fullMethod(AccountServiceName, method), err)
}

// Create registers a new account.
func (s *AccountService) Create(ctx context.Context, req *CredentialsRequest) (*User, error) {
	u, err := s.accounts.Create(ctx, req.Username, req.Password)
	if err != nil {
		return nil, s.fail(ctx, "Create", err)
	}
	return u, nil
}

// Login checks credentials and returns the account.
func (s *AccountService) Login(ctx context.Context, req *CredentialsRequest) (*User, error) {
	u, err := s.accounts.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, s.fail(ctx, "Login", err)
	}
	return u, nil
}

// Token logs in and returns a signed access token.
func (s *AccountService) Token(ctx context.Context, req *CredentialsRequest) (*TokenResponse, error) {
	if s.tokens == nil {
		return nil, s.fail(ctx, "Token", errNoTokens)
	}
	u, err := s.accounts.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, s.fail(ctx, "Token", err)
	}
	tok, exp, err := s.tokens.Issue(ctx, u.ID, u.Username, u.Permissions)
	if err != nil {
		return nil, s.fail(ctx, "Token", err)
	}
	return &TokenResponse{AccessToken: tok, TokenType: "bearer", ExpiresAt: exp}, nil
}

// Verify validates an access token and returns the account it names. A
// token for an account that no longer resolves is Unauthenticated.
func (s *AccountService) Verify(ctx context.Context, req *VerifyRequest) (*User, error) {
	if s.tokens == nil {
		return nil, s.fail(ctx, "Verify", errNoTokens)
	}
	claims, err := s.tokens.Verify(ctx, req.AccessToken)
	if err != nil {
		return nil, s.fail(ctx, "Verify", err)
	}
	id, err := claims.AccountID()
	if err != nil {
		return nil, s.fail(ctx, "Verify", err)
	}
	u, err := s.accounts.Lookup(ctx, id)
	if errors.Is(err, accounts.ErrNotFound) {
		return nil, s.fail(ctx, "Verify", accounts.ErrUnauthenticated)
	}
	if err != nil {
		return nil, s.fail(ctx, "Verify", err)
	}
	return u, nil
}

var _ AccountServiceServer = (*AccountService)(nil)
