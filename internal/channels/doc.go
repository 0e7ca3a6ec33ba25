// Package channels implements channel and message storage on top of the row
// store.
//
// Channels and messages each have a single id-uniqueness table written with a
// conditional insert through the coordinator. A message is also written to the
// channel-ordered history table, but only after its uniqueness insert is
// accepted, so a message is in history if and only if it exists.
//
// Reads resolve referenced accounts (channel owners, message authors) through
// a per-call map so each distinct account is fetched once per call. An optional
// process-wide cache can sit behind that map.
//
// # History bounds
//
// A nil or zero bound means unbounded in that direction. An inverted range
// (after > before) returns an empty page without touching the store.
package channels
