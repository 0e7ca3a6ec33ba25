// ABOUTME: Tests for the shared value provisioner
// ABOUTME: Simulates many independent instances racing to create the same value

package secrets

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/2389/chat-data/internal/consistency"
	"github.com/2389/chat-data/internal/store"
)

func TestGet_CreatesOnceAndCaches(t *testing.T) {
	s := store.NewMockStore()
	p := NewProvisioner(s, consistency.Default(), 0, nil)
	ctx := context.Background()

	v, err := p.Get(ctx, SecretKey)
	require.NoError(t, err)
	assert.Len(t, v, DefaultLength)
	for _, r := range v {
		assert.Contains(t, alphabet, string(r))
	}

	again, err := p.Get(ctx, SecretKey)
	require.NoError(t, err)
	assert.Equal(t, v, again)

	// the second call never reached the store
	assert.Equal(t, 1, s.CallCount("InsertConfig"))
	assert.Equal(t, []consistency.Level{consistency.Quorum}, s.LevelsFor("InsertConfig"))

	stored, err := s.GetConfig(ctx, "secret_key", consistency.One)
	require.NoError(t, err)
	assert.Equal(t, v, stored)
}

func TestGet_AdoptsExistingValue(t *testing.T) {
	s := store.NewMockStore()
	ctx := context.Background()
	_, _, err := s.InsertConfig(ctx, "secret_key", "already-there", consistency.Quorum)
	require.NoError(t, err)

	p := NewProvisioner(s, consistency.Default(), 0, nil)
	v, err := p.Secret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "already-there", v)
	// adopted from the echoed row, no separate read
	assert.Equal(t, 0, s.CallCount("GetConfig"))
}

func TestGet_IndependentInstancesConverge(t *testing.T) {
	s := store.NewMockStore()
	ctx := context.Background()

	const instances = 32
	results := make([]string, instances)

	var start sync.WaitGroup
	start.Add(1)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < instances; i++ {
		p := NewProvisioner(s, consistency.Default(), 0, nil)
		g.Go(func() error {
			start.Wait()
			v, err := p.Get(ctx, SecretKey)
			results[i] = v
			return err
		})
	}
	start.Done()
	require.NoError(t, g.Wait())

	for _, v := range results {
		assert.Equal(t, results[0], v)
	}
}

func TestGet_ConcurrentCallersShareOneInsert(t *testing.T) {
	s := store.NewMockStore()
	p := NewProvisioner(s, consistency.Default(), 16, nil)

	var g errgroup.Group
	results := make([]string, 50)
	for i := range results {
		g.Go(func() error {
			v, err := p.Get(context.Background(), SecretKey)
			results[i] = v
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, v := range results {
		assert.Equal(t, results[0], v)
	}
	assert.Len(t, results[0], 16)
	assert.LessOrEqual(t, s.CallCount("InsertConfig"), 50)
}

func TestGet_FailureIsRetried(t *testing.T) {
	s := store.NewMockStore()
	p := NewProvisioner(s, consistency.Default(), 0, nil)
	ctx := context.Background()

	boom := errors.New("timeout")
	s.FailWith("InsertConfig", boom)
	_, err := p.Get(ctx, SecretKey)
	assert.ErrorIs(t, err, boom)

	s.FailWith("InsertConfig", nil)
	v, err := p.Get(ctx, SecretKey)
	require.NoError(t, err)
	assert.NotEmpty(t, v)
}

func TestGet_UnknownKey(t *testing.T) {
	p := NewProvisioner(store.NewMockStore(), consistency.Default(), 0, nil)

	_, err := p.Get(context.Background(), ConfigType(7))
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestGet_SQLiteInstancesConverge(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "cfg.db"))
	require.NoError(t, err)
	defer s.Close()

	a := NewProvisioner(s, consistency.Default(), 0, nil)
	b := NewProvisioner(s, consistency.Default(), 0, nil)

	va, err := a.Secret(context.Background())
	require.NoError(t, err)
	vb, err := b.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, va, vb)
}
