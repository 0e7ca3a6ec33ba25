// ABOUTME: Bearer token issuance and verification for chat accounts
// ABOUTME: HS256 JWTs signed with the cluster-wide shared secret

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// SecretSource yields the signing secret. Every instance must return the same
// value, which is why it is resolved through the shared config table.
type SecretSource interface {
	Secret(ctx context.Context) (string, error)
}

// SecretFunc adapts a function to SecretSource.
type SecretFunc func(ctx context.Context) (string, error)

// Secret calls f.
func (f SecretFunc) Secret(ctx context.Context) (string, error) { return f(ctx) }

// Claims carried by an access token.
type Claims struct {
	Username    string `json:"username"`
	Permissions int64  `json:"permissions"`
	jwt.RegisteredClaims
}

// AccountID parses the subject claim.
func (c *Claims) AccountID() (int64, error) {
	if c.Subject == "" {
		return 0, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: sub is not an account id", ErrInvalidToken)
	}
	return id, nil
}

// TokenIssuer signs and verifies access tokens.
type TokenIssuer struct {
	secret SecretSource
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer whose tokens live for ttl.
func NewTokenIssuer(secret SecretSource, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue creates a token for the given account.
func (i *TokenIssuer) Issue(ctx context.Context, accountID int64, username string, permissions int64) (string, time.Time, error) {
	secret, err := i.secret.Secret(ctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("resolving signing secret: %w", err)
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := &Claims{
		Username:    username,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates the token and returns its claims.
func (i *TokenIssuer) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	secret, err := i.secret.Secret(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving signing secret: %w", err)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())

	if err != nil {
		// Check if it's specifically an expiration error
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, err
	}
	return claims, nil
}
