// ABOUTME: Cassandra/ScyllaDB implementation of the Store interface using gocql
// ABOUTME: Conditional inserts are lightweight transactions; every statement carries its own consistency

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	gocql "github.com/apache/cassandra-gocql-driver/v2"

	"github.com/2389/chat-data/internal/consistency"
)

// CassandraConfig configures the cluster connection.
type CassandraConfig struct {
	Hosts             []string
	Timeout           time.Duration
	ReplicationFactor int
}

// CassandraStore implements the Store interface on a Cassandra-compatible cluster.
// Table names are fully qualified, so the session is not bound to a keyspace.
type CassandraStore struct {
	session *gocql.Session
	cfg     CassandraConfig
	logger  *slog.Logger
}

// NewCassandraStore connects to the cluster. It does not create the schema;
// call Bootstrap for that.
func NewCassandraStore(cfg CassandraConfig) (*CassandraStore, error) {
	logger := slog.Default().With("component", "store", "backend", "cassandra")

	if len(cfg.Hosts) == 0 {
		return nil, errors.New("at least one cassandra host is required")
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
		cluster.ConnectTimeout = cfg.Timeout
	}
	cluster.Consistency = gocql.One

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connecting to cassandra: %w", err)
	}

	logger.Info("Cassandra store initialized", "hosts", cfg.Hosts)
	return &CassandraStore{
		session: session,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Close closes the session
func (s *CassandraStore) Close() error {
	s.logger.Info("closing Cassandra store")
	s.session.Close()
	return nil
}

// Ping reads the local node's release version.
func (s *CassandraStore) Ping(ctx context.Context) error {
	var version string
	if err := s.session.Query(`SELECT release_version FROM system.local`).ScanContext(ctx, &version); err != nil {
		return fmt.Errorf("pinging cassandra: %w", err)
	}
	return nil
}

// Bootstrap creates the keyspaces and tables if they don't exist.
func (s *CassandraStore) Bootstrap(ctx context.Context) error {
	for _, stmt := range SchemaStatements(s.cfg.ReplicationFactor) {
		if err := s.session.Query(stmt).Consistency(gocql.All).ExecContext(ctx); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	s.logger.Info("schema bootstrapped", "replication_factor", s.cfg.ReplicationFactor)
	return nil
}

// gocqlLevel maps a policy level onto the driver's consistency.
func gocqlLevel(lvl consistency.Level) gocql.Consistency {
	switch lvl {
	case consistency.All:
		return gocql.All
	case consistency.Quorum:
		return gocql.Quorum
	default:
		return gocql.One
	}
}

func (s *CassandraStore) query(lvl consistency.Level, stmt string, args ...any) *gocql.Query {
	return s.session.Query(stmt, args...).Consistency(gocqlLevel(lvl))
}

// cas runs an IF NOT EXISTS insert. When it is not applied, the existing row's
// columns are left in the returned map.
func (s *CassandraStore) cas(ctx context.Context, table string, lvl consistency.Level, stmt string, args ...any) (bool, map[string]any, error) {
	existing := make(map[string]any)
	applied, err := s.query(lvl, stmt, args...).MapScanCASContext(ctx, existing)
	if err != nil {
		return false, nil, fmt.Errorf("conditional insert into %s: %w", table, err)
	}
	if !applied {
		s.logger.Debug("conditional insert rejected", "table", table)
	}
	return applied, existing, nil
}

func int64Col(row map[string]any, name string) int64 {
	v, _ := row[name].(int64)
	return v
}

func stringCol(row map[string]any, name string) string {
	v, _ := row[name].(string)
	return v
}

func accountFromRow(row map[string]any) *Account {
	return &Account{
		ID:             int64Col(row, "id"),
		Username:       stringCol(row, "username"),
		HashedPassword: stringCol(row, "hashed_password"),
		Permissions:    int64Col(row, "permissions"),
	}
}

// InsertAccountByUsername conditionally stores acct keyed by username.
func (s *CassandraStore) InsertAccountByUsername(ctx context.Context, acct *Account, lvl consistency.Level) (bool, *Account, error) {
	applied, row, err := s.cas(ctx, TableAccountByUsername, lvl, `
		INSERT INTO accounts.info_by_username (username, id, hashed_password, permissions)
		VALUES (?, ?, ?, ?)
		IF NOT EXISTS
	`, acct.Username, acct.ID, acct.HashedPassword, acct.Permissions)
	if err != nil || applied {
		return applied, nil, err
	}
	return false, accountFromRow(row), nil
}

// InsertAccountByID conditionally stores acct keyed by id.
func (s *CassandraStore) InsertAccountByID(ctx context.Context, acct *Account, lvl consistency.Level) (bool, *Account, error) {
	applied, row, err := s.cas(ctx, TableAccountByID, lvl, `
		INSERT INTO accounts.info_by_id (id, username, hashed_password, permissions)
		VALUES (?, ?, ?, ?)
		IF NOT EXISTS
	`, acct.ID, acct.Username, acct.HashedPassword, acct.Permissions)
	if err != nil || applied {
		return applied, nil, err
	}
	return false, accountFromRow(row), nil
}

// SetAccountID rewrites the id of the by-username row.
func (s *CassandraStore) SetAccountID(ctx context.Context, username string, id int64, lvl consistency.Level) error {
	err := s.query(lvl,
		`UPDATE accounts.info_by_username SET id = ? WHERE username = ?`,
		id, username,
	).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("updating account id: %w", err)
	}
	return nil
}

func (s *CassandraStore) getAccount(ctx context.Context, lvl consistency.Level, stmt string, key any) (*Account, error) {
	var a Account
	err := s.query(lvl, stmt, key).ScanContext(ctx, &a.ID, &a.Username, &a.HashedPassword, &a.Permissions)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &a, nil
}

// GetAccountByUsername retrieves the by-username row.
func (s *CassandraStore) GetAccountByUsername(ctx context.Context, username string, lvl consistency.Level) (*Account, error) {
	return s.getAccount(ctx, lvl, `
		SELECT id, username, hashed_password, permissions
		FROM accounts.info_by_username
		WHERE username = ?
	`, username)
}

// GetAccountByID retrieves the by-id row.
func (s *CassandraStore) GetAccountByID(ctx context.Context, id int64, lvl consistency.Level) (*Account, error) {
	return s.getAccount(ctx, lvl, `
		SELECT id, username, hashed_password, permissions
		FROM accounts.info_by_id
		WHERE id = ?
	`, id)
}

// InsertChannel conditionally stores ch keyed by id.
func (s *CassandraStore) InsertChannel(ctx context.Context, ch *Channel, lvl consistency.Level) (bool, *Channel, error) {
	applied, row, err := s.cas(ctx, TableChannelByID, lvl, `
		INSERT INTO data.channel_by_id (id, name, description, owner_id)
		VALUES (?, ?, ?, ?)
		IF NOT EXISTS
	`, ch.ID, ch.Name, ch.Description, ch.OwnerID)
	if err != nil || applied {
		return applied, nil, err
	}
	return false, &Channel{
		ID:          int64Col(row, "id"),
		Name:        stringCol(row, "name"),
		Description: stringCol(row, "description"),
		OwnerID:     int64Col(row, "owner_id"),
	}, nil
}

// GetChannel retrieves a channel by id.
func (s *CassandraStore) GetChannel(ctx context.Context, id int64, lvl consistency.Level) (*Channel, error) {
	var c Channel
	err := s.query(lvl, `
		SELECT id, name, description, owner_id
		FROM data.channel_by_id
		WHERE id = ?
	`, id).ScanContext(ctx, &c.ID, &c.Name, &c.Description, &c.OwnerID)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying channel: %w", err)
	}
	return &c, nil
}

// ListChannels returns every channel in token order.
func (s *CassandraStore) ListChannels(ctx context.Context, lvl consistency.Level) ([]*Channel, error) {
	iter := s.query(lvl, `
		SELECT id, name, description, owner_id
		FROM data.channel_by_id
	`).IterContext(ctx)

	var channels []*Channel
	var c Channel
	for iter.Scan(&c.ID, &c.Name, &c.Description, &c.OwnerID) {
		cp := c
		channels = append(channels, &cp)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	return channels, nil
}

// InsertMessage conditionally stores msg in the uniqueness table.
func (s *CassandraStore) InsertMessage(ctx context.Context, msg *Message, lvl consistency.Level) (bool, *Message, error) {
	applied, row, err := s.cas(ctx, TableMessageByID, lvl, `
		INSERT INTO data.message_by_id (id, content, author_id, channel_id)
		VALUES (?, ?, ?, ?)
		IF NOT EXISTS
	`, msg.ID, msg.Content, msg.AuthorID, msg.ChannelID)
	if err != nil || applied {
		return applied, nil, err
	}
	return false, &Message{
		ID:        int64Col(row, "id"),
		Content:   stringCol(row, "content"),
		AuthorID:  int64Col(row, "author_id"),
		ChannelID: int64Col(row, "channel_id"),
	}, nil
}

// AppendHistory writes msg to the history table.
func (s *CassandraStore) AppendHistory(ctx context.Context, msg *Message, lvl consistency.Level) error {
	err := s.query(lvl, `
		INSERT INTO data.message_by_channel_id (channel_id, id, content, author_id)
		VALUES (?, ?, ?, ?)
	`, msg.ChannelID, msg.ID, msg.Content, msg.AuthorID).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("inserting history row: %w", err)
	}
	return nil
}

// Ordering is part of the statement, never a bind parameter.
const (
	cqlHistoryOldestFirst = `
		SELECT id, content, author_id, channel_id
		FROM data.message_by_channel_id
		WHERE channel_id = ? AND id <= ? AND id >= ?
		ORDER BY id ASC
		LIMIT ?
	`
	cqlHistoryNewestFirst = `
		SELECT id, content, author_id, channel_id
		FROM data.message_by_channel_id
		WHERE channel_id = ? AND id <= ? AND id >= ?
		ORDER BY id DESC
		LIMIT ?
	`
)

// History returns the messages selected by r.
func (s *CassandraStore) History(ctx context.Context, r HistoryRange, lvl consistency.Level) ([]*Message, error) {
	stmt := cqlHistoryOldestFirst
	if r.Newest {
		stmt = cqlHistoryNewestFirst
	}
	limit := r.Limit
	if limit <= 0 || limit > math.MaxInt32 {
		limit = math.MaxInt32
	}

	iter := s.query(lvl, stmt, r.ChannelID, r.BeforeID, r.AfterID, limit).IterContext(ctx)

	var messages []*Message
	var m Message
	for iter.Scan(&m.ID, &m.Content, &m.AuthorID, &m.ChannelID) {
		cp := m
		messages = append(messages, &cp)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	return messages, nil
}

// InsertConfig conditionally stores a config value.
func (s *CassandraStore) InsertConfig(ctx context.Context, key, value string, lvl consistency.Level) (bool, string, error) {
	applied, row, err := s.cas(ctx, TableConfigText, lvl, `
		INSERT INTO config.cfg_text (key, value)
		VALUES (?, ?)
		IF NOT EXISTS
	`, key, value)
	if err != nil || applied {
		return applied, "", err
	}
	return false, stringCol(row, "value"), nil
}

// GetConfig retrieves a config value.
func (s *CassandraStore) GetConfig(ctx context.Context, key string, lvl consistency.Level) (string, error) {
	var value string
	err := s.query(lvl, `SELECT value FROM config.cfg_text WHERE key = ?`, key).ScanContext(ctx, &value)
	if errors.Is(err, gocql.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying config: %w", err)
	}
	return value, nil
}

// Ensure CassandraStore implements Store
var _ Store = (*CassandraStore)(nil)
