// Package cache is the in-memory response cache that sits in front of the
// market-data provider.
//
// Entries are keyed by route identifier plus the raw query string exactly as
// received, so "?a=1&b=2" and "?b=2&a=1" are separate entries. An entry is
// served while now < StoredAt+TTL; expired entries are treated as absent and
// replaced by the next successful fetch. Failed fetches are never stored.
//
// Concurrent misses on the same key each reach the provider unless the cache
// is built WithInflightDedupe, which collapses them with singleflight.
package cache
