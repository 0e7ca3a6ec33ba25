// Package store provides the row store behind the chat data tier.
//
// # Architecture
//
// The store package is interface-driven:
//
//   - AccountStore: the by-username and by-id account projections
//   - ChannelStore: channels, messages, and the channel-ordered history table
//   - ConfigStore: write-once text configuration values
//   - Store: all of the above plus Ping and Close
//
// Three backends implement Store:
//
//   - CassandraStore: Cassandra or ScyllaDB through gocql, using lightweight
//     transactions (INSERT ... IF NOT EXISTS) for conditional inserts
//   - SQLiteStore: single node SQLite, using INSERT ... ON CONFLICT DO NOTHING
//   - MockStore: in-memory, for unit tests
//
// # Conditional Inserts
//
// Every Insert* method on a uniqueness table is a single-row compare-and-swap.
// It returns applied=true when the row was written. When the key is taken it
// returns applied=false together with the existing row, so callers never need
// a separate read to learn who won.
//
// # Consistency
//
// Every method takes a consistency.Level chosen by the caller. CassandraStore
// forwards it to the driver; the single node backends accept and ignore it
// (MockStore records it for assertions).
//
// # Schema
//
// Keyspaces and tables:
//
//	accounts.info_by_username  (username PRIMARY KEY)
//	accounts.info_by_id        (id PRIMARY KEY)
//	data.channel_by_id         (id PRIMARY KEY)
//	data.message_by_id         (id PRIMARY KEY)
//	data.message_by_channel_id (channel_id, id) clustered by id
//	config.cfg_text            (key PRIMARY KEY)
//
// Bootstrap creates them on Cassandra. SQLiteStore creates equivalent tables on
// open, with the keyspace folded into the table name.
//
// # Testing
//
// Use NewMockStore() for unit tests:
//
//	s := store.NewMockStore()
//
// Use NewSQLiteStore(filepath.Join(t.TempDir(), "test.db")) for integration
// tests against real SQL.
package store
