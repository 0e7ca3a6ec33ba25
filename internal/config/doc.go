// Package config handles configuration loading for chat-data.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension) with
// environment variable expansion, then individual fields may be overridden by
// CHAT_* environment variables. Defaults are applied before validation.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CHAT_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. ~/.config/chat-data/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	bus:
//	  url: "${CHAT_AMQP_URL}"
//
// Unset variables expand to the empty string.
//
// # Environment Overrides
//
// Every field has a CHAT_<SECTION>_<FIELD> override, for example
// CHAT_STORE_DRIVER=sqlite or CHAT_HISTORY_MAX_LIMIT=200. Lists are comma
// separated and maps use key:value pairs:
//
//	CHAT_STORE_HOSTS=db1,db2
//	CHAT_CONSISTENCY_OVERRIDES=account.login:quorum
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	store:
//	  timeout: "5s"
//	auth:
//	  token_ttl: "24h"
//
// The id epoch is an RFC 3339 timestamp.
package config
