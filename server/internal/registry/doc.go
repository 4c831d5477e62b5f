// Package registry holds the immutable table of supported stocks.
//
// A Registry is built once at startup from config.StockConfig entries and is
// safe for concurrent use because it is never mutated afterwards. Resolve
// upper-cases its input, falls back to the default key when the input is
// empty, and returns an error matching ErrInvalidStockKey for unknown keys.
package registry
