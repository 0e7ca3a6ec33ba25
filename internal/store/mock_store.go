// ABOUTME: Mock Store implementation for testing
// ABOUTME: Linearizable in-memory CAS tables with call recording and error injection

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/2389/chat-data/internal/consistency"
)

// Call records one store method invocation and the level it was issued at.
type Call struct {
	Method string
	Level  consistency.Level
}

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu                sync.RWMutex
	accountByUsername map[string]*Account
	accountByID       map[int64]*Account
	channels          map[int64]*Channel
	messages          map[int64]*Message
	history           map[int64][]*Message // keyed by channel ID, sorted by id
	config            map[string]string

	calls  []Call
	errors map[string]error // keyed by method name
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		accountByUsername: make(map[string]*Account),
		accountByID:       make(map[int64]*Account),
		channels:          make(map[int64]*Channel),
		messages:          make(map[int64]*Message),
		history:           make(map[int64][]*Message),
		config:            make(map[string]string),
		errors:            make(map[string]error),
	}
}

// FailWith makes every later call to method return err. A nil err clears it.
func (m *MockStore) FailWith(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, method)
		return
	}
	m.errors[method] = err
}

// Calls returns every recorded call in order.
func (m *MockStore) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times method was called.
func (m *MockStore) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LevelsFor returns the levels method was called with, in order.
func (m *MockStore) LevelsFor(method string) []consistency.Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []consistency.Level
	for _, c := range m.calls {
		if c.Method == method {
			out = append(out, c.Level)
		}
	}
	return out
}

// record must be called with mu held for writing.
func (m *MockStore) record(method string, lvl consistency.Level) error {
	m.calls = append(m.calls, Call{Method: method, Level: lvl})
	return m.errors[method]
}

// InsertAccountByUsername conditionally stores acct keyed by username.
func (m *MockStore) InsertAccountByUsername(ctx context.Context, acct *Account, lvl consistency.Level) (bool, *Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("InsertAccountByUsername", lvl); err != nil {
		return false, nil, err
	}
	if existing, ok := m.accountByUsername[acct.Username]; ok {
		a := *existing
		return false, &a, nil
	}
	a := *acct
	m.accountByUsername[a.Username] = &a
	return true, nil, nil
}

// InsertAccountByID conditionally stores acct keyed by id.
func (m *MockStore) InsertAccountByID(ctx context.Context, acct *Account, lvl consistency.Level) (bool, *Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("InsertAccountByID", lvl); err != nil {
		return false, nil, err
	}
	if existing, ok := m.accountByID[acct.ID]; ok {
		a := *existing
		return false, &a, nil
	}
	a := *acct
	m.accountByID[a.ID] = &a
	return true, nil, nil
}

// SetAccountID rewrites the id of the by-username row. Like a CQL UPDATE it
// creates the row when it is missing.
func (m *MockStore) SetAccountID(ctx context.Context, username string, id int64, lvl consistency.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("SetAccountID", lvl); err != nil {
		return err
	}
	a, ok := m.accountByUsername[username]
	if !ok {
		a = &Account{Username: username}
		m.accountByUsername[username] = a
	}
	a.ID = id
	return nil
}

// GetAccountByUsername retrieves the by-username row.
func (m *MockStore) GetAccountByUsername(ctx context.Context, username string, lvl consistency.Level) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("GetAccountByUsername", lvl); err != nil {
		return nil, err
	}
	a, ok := m.accountByUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	result := *a
	return &result, nil
}

// GetAccountByID retrieves the by-id row.
func (m *MockStore) GetAccountByID(ctx context.Context, id int64, lvl consistency.Level) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("GetAccountByID", lvl); err != nil {
		return nil, err
	}
	a, ok := m.accountByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *a
	return &result, nil
}

// InsertChannel conditionally stores ch keyed by id.
func (m *MockStore) InsertChannel(ctx context.Context, ch *Channel, lvl consistency.Level) (bool, *Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("InsertChannel", lvl); err != nil {
		return false, nil, err
	}
	if existing, ok := m.channels[ch.ID]; ok {
		c := *existing
		return false, &c, nil
	}
	c := *ch
	m.channels[c.ID] = &c
	return true, nil, nil
}

// GetChannel retrieves a channel by id.
func (m *MockStore) GetChannel(ctx context.Context, id int64, lvl consistency.Level) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("GetChannel", lvl); err != nil {
		return nil, err
	}
	c, ok := m.channels[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// ListChannels returns every channel ordered by id.
func (m *MockStore) ListChannels(ctx context.Context, lvl consistency.Level) ([]*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("ListChannels", lvl); err != nil {
		return nil, err
	}
	result := make([]*Channel, 0, len(m.channels))
	for _, c := range m.channels {
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// InsertMessage conditionally stores msg in the uniqueness table.
func (m *MockStore) InsertMessage(ctx context.Context, msg *Message, lvl consistency.Level) (bool, *Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("InsertMessage", lvl); err != nil {
		return false, nil, err
	}
	if existing, ok := m.messages[msg.ID]; ok {
		cp := *existing
		return false, &cp, nil
	}
	cp := *msg
	m.messages[cp.ID] = &cp
	return true, nil, nil
}

// AppendHistory writes msg to the history table, replacing any row with the
// same (channel, id) key.
func (m *MockStore) AppendHistory(ctx context.Context, msg *Message, lvl consistency.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("AppendHistory", lvl); err != nil {
		return err
	}
	cp := *msg
	rows := m.history[cp.ChannelID]
	i := sort.Search(len(rows), func(i int) bool { return rows[i].ID >= cp.ID })
	if i < len(rows) && rows[i].ID == cp.ID {
		rows[i] = &cp
		return nil
	}
	rows = append(rows, nil)
	copy(rows[i+1:], rows[i:])
	rows[i] = &cp
	m.history[cp.ChannelID] = rows
	return nil
}

// History returns the messages selected by r.
func (m *MockStore) History(ctx context.Context, r HistoryRange, lvl consistency.Level) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("History", lvl); err != nil {
		return nil, err
	}

	rows := m.history[r.ChannelID]
	var result []*Message
	take := func(msg *Message) bool {
		if msg.ID < r.AfterID || msg.ID > r.BeforeID {
			return true
		}
		cp := *msg
		result = append(result, &cp)
		return r.Limit <= 0 || len(result) < r.Limit
	}

	if r.Newest {
		for i := len(rows) - 1; i >= 0; i-- {
			if !take(rows[i]) {
				break
			}
		}
	} else {
		for _, msg := range rows {
			if !take(msg) {
				break
			}
		}
	}
	return result, nil
}

// InsertConfig conditionally stores a config value.
func (m *MockStore) InsertConfig(ctx context.Context, key, value string, lvl consistency.Level) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("InsertConfig", lvl); err != nil {
		return false, "", err
	}
	if existing, ok := m.config[key]; ok {
		return false, existing, nil
	}
	m.config[key] = value
	return true, "", nil
}

// GetConfig retrieves a config value.
func (m *MockStore) GetConfig(ctx context.Context, key string, lvl consistency.Level) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("GetConfig", lvl); err != nil {
		return "", err
	}
	v, ok := m.config[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Ping always succeeds unless an error was injected.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors["Ping"]
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)
