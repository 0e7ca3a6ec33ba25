// ABOUTME: Lazily agrees on shared configuration values across every instance
// ABOUTME: First caller anywhere writes a random candidate with a conditional insert; everyone adopts the winner

package secrets

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/2389/chat-data/internal/consistency"
	"github.com/2389/chat-data/internal/store"
)

// ErrUnknownKey is returned for configuration types with no known key.
var ErrUnknownKey = errors.New("unknown config key")

// ConfigType enumerates the string configuration values callers can request.
type ConfigType int32

const (
	// SecretKey is the shared signing secret.
	SecretKey ConfigType = 0
)

// DefaultLength is the length of generated values.
const DefaultLength = 32

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var keys = map[ConfigType]string{
	SecretKey: "secret_key",
}

// Key returns the storage key for t.
func (t ConfigType) Key() (string, error) {
	k, ok := keys[t]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownKey, int32(t))
	}
	return k, nil
}

// Provisioner resolves configuration values once per process. A value, once
// resolved, is never re-read from the store.
type Provisioner struct {
	store  store.ConfigStore
	policy *consistency.Policy
	length int
	logger *slog.Logger

	mu     sync.RWMutex
	values map[string]string
	group  singleflight.Group
}

// NewProvisioner creates a provisioner. length <= 0 selects DefaultLength.
func NewProvisioner(s store.ConfigStore, policy *consistency.Policy, length int, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	if length <= 0 {
		length = DefaultLength
	}
	return &Provisioner{
		store:  s,
		policy: policy,
		length: length,
		logger: logger.With("component", "secrets"),
		values: make(map[string]string),
	}
}

// Get returns the value for t, creating it cluster-wide on first use.
func (p *Provisioner) Get(ctx context.Context, t ConfigType) (string, error) {
	key, err := t.Key()
	if err != nil {
		return "", err
	}

	p.mu.RLock()
	v, ok := p.values[key]
	p.mu.RUnlock()
	if ok {
		return v, nil
	}

	// Concurrent first calls in this process share one store round trip.
	res, err, _ := p.group.Do(key, func() (any, error) {
		p.mu.RLock()
		v, ok := p.values[key]
		p.mu.RUnlock()
		if ok {
			return v, nil
		}

		v, err := p.resolve(ctx, key)
		if err != nil {
			return "", err
		}

		p.mu.Lock()
		p.values[key] = v
		p.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// Secret returns the shared signing secret.
func (p *Provisioner) Secret(ctx context.Context) (string, error) {
	return p.Get(ctx, SecretKey)
}

func (p *Provisioner) resolve(ctx context.Context, key string) (string, error) {
	candidate, err := randomString(p.length)
	if err != nil {
		return "", fmt.Errorf("generating candidate: %w", err)
	}

	applied, existing, err := p.store.InsertConfig(ctx, key, candidate, p.policy.Level(consistency.ConfigCreate))
	if err != nil {
		return "", fmt.Errorf("provisioning %s: %w", key, err)
	}
	if applied {
		p.logger.Info("provisioned config value", "key", key)
		return candidate, nil
	}

	p.logger.Debug("adopted existing config value", "key", key)
	return existing, nil
}

func randomString(n int) (string, error) {
	size := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
