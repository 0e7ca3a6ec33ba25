// ABOUTME: Backend-independent contract tests for the Store interface
// ABOUTME: Exercised by the mock and SQLite tests so both behave the same

package store

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chat-data/internal/consistency"
)

func runStoreContract(t *testing.T, s Store) {
	t.Helper()

	t.Run("accounts", func(t *testing.T) { testAccounts(t, s) })
	t.Run("channels", func(t *testing.T) { testChannels(t, s) })
	t.Run("history", func(t *testing.T) { testHistory(t, s) })
	t.Run("config", func(t *testing.T) { testConfig(t, s) })
	t.Run("ping", func(t *testing.T) { assert.NoError(t, s.Ping(context.Background())) })
}

func testAccounts(t *testing.T, s Store) {
	ctx := context.Background()
	lvl := consistency.All

	alice := &Account{ID: 10, Username: "alice", HashedPassword: "h1"}
	applied, existing, err := s.InsertAccountByUsername(ctx, alice, lvl)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Nil(t, existing)

	// Same username, different id: rejected and the winner is echoed back.
	applied, existing, err = s.InsertAccountByUsername(ctx, &Account{ID: 11, Username: "alice", HashedPassword: "h2"}, lvl)
	require.NoError(t, err)
	assert.False(t, applied)
	require.NotNil(t, existing)
	assert.Equal(t, *alice, *existing)

	applied, _, err = s.InsertAccountByID(ctx, alice, lvl)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, existing, err = s.InsertAccountByID(ctx, &Account{ID: 10, Username: "bob", HashedPassword: "h3"}, lvl)
	require.NoError(t, err)
	assert.False(t, applied)
	require.NotNil(t, existing)
	assert.Equal(t, "alice", existing.Username)

	require.NoError(t, s.SetAccountID(ctx, "alice", 99, lvl))
	got, err := s.GetAccountByUsername(ctx, "alice", consistency.One)
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.ID)
	assert.Equal(t, "h1", got.HashedPassword)

	got, err = s.GetAccountByID(ctx, 10, consistency.One)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = s.GetAccountByUsername(ctx, "nobody", consistency.One)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetAccountByID(ctx, 12345, consistency.One)
	assert.ErrorIs(t, err, ErrNotFound)
}

func testChannels(t *testing.T, s Store) {
	ctx := context.Background()

	general := &Channel{ID: 200, Name: "general", Description: "say hi ✨", OwnerID: 10}
	applied, _, err := s.InsertChannel(ctx, general, consistency.Quorum)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, existing, err := s.InsertChannel(ctx, &Channel{ID: 200, Name: "other"}, consistency.Quorum)
	require.NoError(t, err)
	assert.False(t, applied)
	require.NotNil(t, existing)
	assert.Equal(t, *general, *existing)

	_, _, err = s.InsertChannel(ctx, &Channel{ID: 100, Name: "random", OwnerID: 10}, consistency.Quorum)
	require.NoError(t, err)

	got, err := s.GetChannel(ctx, 200, consistency.One)
	require.NoError(t, err)
	assert.Equal(t, *general, *got)

	_, err = s.GetChannel(ctx, 404, consistency.One)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.ListChannels(ctx, consistency.One)
	require.NoError(t, err)
	ids := make([]int64, 0, len(all))
	for _, c := range all {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []int64{100, 200}, ids)

	msg := &Message{ID: 1, Content: "hello", AuthorID: 10, ChannelID: 200}
	applied, _, err = s.InsertMessage(ctx, msg, consistency.Quorum)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, existingMsg, err := s.InsertMessage(ctx, &Message{ID: 1, Content: "dup"}, consistency.Quorum)
	require.NoError(t, err)
	assert.False(t, applied)
	require.NotNil(t, existingMsg)
	assert.Equal(t, *msg, *existingMsg)
}

func testHistory(t *testing.T, s Store) {
	ctx := context.Background()
	const channelID = 300

	for id := int64(1); id <= 5; id++ {
		require.NoError(t, s.AppendHistory(ctx, &Message{ID: id, Content: "m", AuthorID: 10, ChannelID: channelID}, consistency.One))
	}
	// another channel must never leak in
	require.NoError(t, s.AppendHistory(ctx, &Message{ID: 3, Content: "x", AuthorID: 10, ChannelID: channelID + 1}, consistency.One))

	ids := func(msgs []*Message) []int64 {
		out := make([]int64, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, m.ID)
			assert.Equal(t, int64(channelID), m.ChannelID)
		}
		return out
	}

	msgs, err := s.History(ctx, Unbounded(channelID, 10, false), consistency.One)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(msgs))

	msgs, err = s.History(ctx, Unbounded(channelID, 10, true), consistency.One)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, ids(msgs))

	msgs, err = s.History(ctx, HistoryRange{ChannelID: channelID, BeforeID: 4, AfterID: 2, Limit: 10}, consistency.One)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, ids(msgs))

	msgs, err = s.History(ctx, HistoryRange{ChannelID: channelID, BeforeID: math.MaxInt64, AfterID: 2, Limit: 2, Newest: true}, consistency.One)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4}, ids(msgs))

	msgs, err = s.History(ctx, HistoryRange{ChannelID: channelID, BeforeID: 3, AfterID: math.MinInt64, Limit: 2}, consistency.One)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(msgs))

	msgs, err = s.History(ctx, Unbounded(999, 10, false), consistency.One)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func testConfig(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetConfig(ctx, "secret_key", consistency.One)
	assert.ErrorIs(t, err, ErrNotFound)

	applied, existing, err := s.InsertConfig(ctx, "secret_key", "first", consistency.Quorum)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Empty(t, existing)

	applied, existing, err = s.InsertConfig(ctx, "secret_key", "second", consistency.Quorum)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "first", existing)

	v, err := s.GetConfig(ctx, "secret_key", consistency.One)
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}
