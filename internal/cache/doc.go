// Package cache provides a small TTL and size bounded cache for immutable
// values such as resolved account views.
package cache
