// Package auth provides password hashing and bearer tokens for chat accounts.
//
// # Passwords
//
// BcryptHasher implements PasswordHasher. Verify never fails: a malformed or
// empty digest is simply a mismatch. An empty digest still runs a bcrypt
// comparison so unknown usernames and wrong passwords take the same time.
//
// # Tokens
//
// TokenIssuer issues HS256 JWTs with these claims:
//
//   - sub: account id, decimal
//   - username
//   - permissions: account permission bitmask
//   - iat, exp
//
// The signing key is the shared secret every instance agrees on through the
// config table, so a token issued by one instance verifies on all of them.
package auth
