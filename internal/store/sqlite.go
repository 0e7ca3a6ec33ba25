// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite or mattn/go-sqlite3
// ABOUTME: Emulates conditional inserts with ON CONFLICT DO NOTHING and a read-back of the winner

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/2389/chat-data/internal/consistency"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLite driver names accepted by NewSQLiteStoreWithDriver.
const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3, cgo
)

// SQLiteStore implements the Store interface using SQLite. Consistency levels
// are accepted and ignored: a single node is trivially linearizable.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path using the pure Go
// driver. The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithDriver(DriverSQLite, path)
}

// NewSQLiteStoreWithDriver is NewSQLiteStore with an explicit database/sql driver name.
func NewSQLiteStoreWithDriver(driver, path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store", "backend", driver)

	if driver != DriverSQLite && driver != DriverSQLite3 {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection serializes writers (no SQLITE_BUSY) and keeps a
	// :memory: database alive across calls.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist. Keyspaces are
// folded into table names.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts_info_by_username (
			username        TEXT PRIMARY KEY,
			id              INTEGER NOT NULL,
			hashed_password TEXT NOT NULL,
			permissions     INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS accounts_info_by_id (
			id              INTEGER PRIMARY KEY,
			username        TEXT NOT NULL,
			hashed_password TEXT NOT NULL,
			permissions     INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS data_channel_by_id (
			id          INTEGER PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL,
			owner_id    INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS data_message_by_id (
			id         INTEGER PRIMARY KEY,
			content    TEXT NOT NULL,
			author_id  INTEGER NOT NULL,
			channel_id INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS data_message_by_channel_id (
			channel_id INTEGER NOT NULL,
			id         INTEGER NOT NULL,
			content    TEXT NOT NULL,
			author_id  INTEGER NOT NULL,
			PRIMARY KEY (channel_id, id)
		);

		CREATE TABLE IF NOT EXISTS config_cfg_text (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// insertIfAbsent runs an ON CONFLICT DO NOTHING insert and reports whether a
// row was written.
func (s *SQLiteStore) insertIfAbsent(ctx context.Context, table, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("inserting into %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting into %s: %w", table, err)
	}
	return n == 1, nil
}

// InsertAccountByUsername conditionally stores acct keyed by username.
func (s *SQLiteStore) InsertAccountByUsername(ctx context.Context, acct *Account, _ consistency.Level) (bool, *Account, error) {
	applied, err := s.insertIfAbsent(ctx, TableAccountByUsername, `
		INSERT INTO accounts_info_by_username (username, id, hashed_password, permissions)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (username) DO NOTHING
	`, acct.Username, acct.ID, acct.HashedPassword, acct.Permissions)
	if err != nil || applied {
		return applied, nil, err
	}

	existing, err := s.GetAccountByUsername(ctx, acct.Username, consistency.One)
	if err != nil {
		return false, nil, fmt.Errorf("reading conflicting account: %w", err)
	}
	return false, existing, nil
}

// InsertAccountByID conditionally stores acct keyed by id.
func (s *SQLiteStore) InsertAccountByID(ctx context.Context, acct *Account, _ consistency.Level) (bool, *Account, error) {
	applied, err := s.insertIfAbsent(ctx, TableAccountByID, `
		INSERT INTO accounts_info_by_id (id, username, hashed_password, permissions)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, acct.ID, acct.Username, acct.HashedPassword, acct.Permissions)
	if err != nil || applied {
		return applied, nil, err
	}

	existing, err := s.GetAccountByID(ctx, acct.ID, consistency.One)
	if err != nil {
		return false, nil, fmt.Errorf("reading conflicting account: %w", err)
	}
	return false, existing, nil
}

// SetAccountID rewrites the id of the by-username row.
func (s *SQLiteStore) SetAccountID(ctx context.Context, username string, id int64, _ consistency.Level) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts_info_by_username SET id = ? WHERE username = ?`,
		id, username,
	)
	if err != nil {
		return fmt.Errorf("updating account id: %w", err)
	}
	s.logger.Debug("repaired account id", "username", username, "id", id)
	return nil
}

func (s *SQLiteStore) scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.HashedPassword, &a.Permissions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &a, nil
}

// GetAccountByUsername retrieves the by-username row.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetAccountByUsername(ctx context.Context, username string, _ consistency.Level) (*Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, username, hashed_password, permissions
		FROM accounts_info_by_username
		WHERE username = ?
	`, username))
}

// GetAccountByID retrieves the by-id row.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, id int64, _ consistency.Level) (*Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, username, hashed_password, permissions
		FROM accounts_info_by_id
		WHERE id = ?
	`, id))
}

// InsertChannel conditionally stores ch keyed by id.
func (s *SQLiteStore) InsertChannel(ctx context.Context, ch *Channel, _ consistency.Level) (bool, *Channel, error) {
	applied, err := s.insertIfAbsent(ctx, TableChannelByID, `
		INSERT INTO data_channel_by_id (id, name, description, owner_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, ch.ID, ch.Name, ch.Description, ch.OwnerID)
	if err != nil || applied {
		return applied, nil, err
	}

	existing, err := s.GetChannel(ctx, ch.ID, consistency.One)
	if err != nil {
		return false, nil, fmt.Errorf("reading conflicting channel: %w", err)
	}
	return false, existing, nil
}

// GetChannel retrieves a channel by id.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetChannel(ctx context.Context, id int64, _ consistency.Level) (*Channel, error) {
	var c Channel
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, owner_id
		FROM data_channel_by_id
		WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Description, &c.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying channel: %w", err)
	}
	return &c, nil
}

// ListChannels returns every channel ordered by id.
func (s *SQLiteStore) ListChannels(ctx context.Context, _ consistency.Level) ([]*Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, owner_id
		FROM data_channel_by_id
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer rows.Close()

	var channels []*Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.OwnerID); err != nil {
			return nil, fmt.Errorf("scanning channel: %w", err)
		}
		channels = append(channels, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating channels: %w", err)
	}
	return channels, nil
}

// InsertMessage conditionally stores msg in the uniqueness table.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *Message, _ consistency.Level) (bool, *Message, error) {
	applied, err := s.insertIfAbsent(ctx, TableMessageByID, `
		INSERT INTO data_message_by_id (id, content, author_id, channel_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, msg.ID, msg.Content, msg.AuthorID, msg.ChannelID)
	if err != nil || applied {
		return applied, nil, err
	}

	var m Message
	err = s.db.QueryRowContext(ctx, `
		SELECT id, content, author_id, channel_id
		FROM data_message_by_id
		WHERE id = ?
	`, msg.ID).Scan(&m.ID, &m.Content, &m.AuthorID, &m.ChannelID)
	if err != nil {
		return false, nil, fmt.Errorf("reading conflicting message: %w", err)
	}
	return false, &m, nil
}

// AppendHistory writes msg to the history table.
func (s *SQLiteStore) AppendHistory(ctx context.Context, msg *Message, _ consistency.Level) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO data_message_by_channel_id (channel_id, id, content, author_id)
		VALUES (?, ?, ?, ?)
	`, msg.ChannelID, msg.ID, msg.Content, msg.AuthorID)
	if err != nil {
		return fmt.Errorf("inserting history row: %w", err)
	}
	return nil
}

const (
	historyOldestFirst = `
		SELECT id, content, author_id, channel_id
		FROM data_message_by_channel_id
		WHERE channel_id = ? AND id <= ? AND id >= ?
		ORDER BY id ASC
		LIMIT ?
	`
	historyNewestFirst = `
		SELECT id, content, author_id, channel_id
		FROM data_message_by_channel_id
		WHERE channel_id = ? AND id <= ? AND id >= ?
		ORDER BY id DESC
		LIMIT ?
	`
)

// History returns the messages selected by r.
func (s *SQLiteStore) History(ctx context.Context, r HistoryRange, _ consistency.Level) ([]*Message, error) {
	query := historyOldestFirst
	if r.Newest {
		query = historyNewestFirst
	}
	limit := r.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, query, r.ChannelID, r.BeforeID, r.AfterID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Content, &m.AuthorID, &m.ChannelID); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return messages, nil
}

// InsertConfig conditionally stores a config value.
func (s *SQLiteStore) InsertConfig(ctx context.Context, key, value string, _ consistency.Level) (bool, string, error) {
	applied, err := s.insertIfAbsent(ctx, TableConfigText, `
		INSERT INTO config_cfg_text (key, value)
		VALUES (?, ?)
		ON CONFLICT (key) DO NOTHING
	`, key, value)
	if err != nil || applied {
		return applied, "", err
	}

	existing, err := s.GetConfig(ctx, key, consistency.One)
	if err != nil {
		return false, "", fmt.Errorf("reading conflicting config: %w", err)
	}
	return false, existing, nil
}

// GetConfig retrieves a config value.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetConfig(ctx context.Context, key string, _ consistency.Level) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM config_cfg_text WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying config: %w", err)
	}
	return value, nil
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
