// ABOUTME: Fixed CQL schema for the chat data tier
// ABOUTME: Keyspaces and tables are idempotent so bootstrap can run on every start

package store

import "fmt"

// SchemaStatements returns the CQL statements that create every keyspace and
// table, in dependency order.
func SchemaStatements(replicationFactor int) []string {
	if replicationFactor <= 0 {
		replicationFactor = 1
	}
	keyspace := func(name string) string {
		return fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s
			WITH REPLICATION = {'class': 'SimpleStrategy', 'replication_factor': %d}
			AND durable_writes = true`, name, replicationFactor)
	}

	return []string{
		keyspace("accounts"),
		keyspace("data"),
		keyspace("config"),

		`CREATE TABLE IF NOT EXISTS accounts.info_by_username (
			username        text PRIMARY KEY,
			id              bigint,
			hashed_password text,
			permissions     bigint
		)`,
		`CREATE TABLE IF NOT EXISTS accounts.info_by_id (
			id              bigint PRIMARY KEY,
			username        text,
			hashed_password text,
			permissions     bigint
		)`,

		`CREATE TABLE IF NOT EXISTS data.channel_by_id (
			id          bigint PRIMARY KEY,
			name        text,
			description text,
			owner_id    bigint
		)`,
		`CREATE TABLE IF NOT EXISTS data.message_by_id (
			id         bigint PRIMARY KEY,
			content    text,
			author_id  bigint,
			channel_id bigint
		)`,
		// Partitioned by channel, clustered by id for range scans in either direction.
		`CREATE TABLE IF NOT EXISTS data.message_by_channel_id (
			channel_id bigint,
			id         bigint,
			content    text,
			author_id  bigint,
			PRIMARY KEY ((channel_id), id)
		) WITH CLUSTERING ORDER BY (id DESC)`,

		`CREATE TABLE IF NOT EXISTS config.cfg_text (
			key   text PRIMARY KEY,
			value text
		)`,
	}
}
