package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ownerwatch/ownerwatch/server/internal/config"
)

// ErrInvalidStockKey is matched by errors returned from Resolve for unknown keys.
var ErrInvalidStockKey = errors.New("invalid stock key")

// InvalidKeyError reports a stock key that has no registry entry.
type InvalidKeyError struct {
	Key string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid stock key: %s", e.Key)
}

// Is reports whether target is ErrInvalidStockKey.
func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidStockKey
}

// Registry is a read-only lookup table from stock key to StockConfig.
type Registry struct {
	stocks     []config.StockConfig
	byKey      map[string]config.StockConfig
	defaultKey string
}

// New builds a Registry. Keys are normalised to upper case; empty or
// duplicate keys and an unregistered default key are rejected.
func New(stocks []config.StockConfig, defaultKey string) (*Registry, error) {
	r := &Registry{
		stocks:     make([]config.StockConfig, 0, len(stocks)),
		byKey:      make(map[string]config.StockConfig, len(stocks)),
		defaultKey: normalize(defaultKey),
	}
	for i, s := range stocks {
		s.Key = normalize(s.Key)
		if s.Key == "" {
			return nil, fmt.Errorf("registry: stocks[%d]: empty key", i)
		}
		if _, dup := r.byKey[s.Key]; dup {
			return nil, fmt.Errorf("registry: duplicate key %q", s.Key)
		}
		r.byKey[s.Key] = s
		r.stocks = append(r.stocks, s)
	}
	if _, ok := r.byKey[r.defaultKey]; !ok {
		return nil, fmt.Errorf("registry: default key %q is not registered", defaultKey)
	}
	return r, nil
}

// Resolve returns the stock for key. An empty key resolves to the default.
func (r *Registry) Resolve(key string) (config.StockConfig, error) {
	k := normalize(key)
	if k == "" {
		k = r.defaultKey
	}
	s, ok := r.byKey[k]
	if !ok {
		return config.StockConfig{}, &InvalidKeyError{Key: k}
	}
	return s, nil
}

// List returns all stocks in configuration order.
func (r *Registry) List() []config.StockConfig {
	out := make([]config.StockConfig, len(r.stocks))
	copy(out, r.stocks)
	return out
}

// Default returns the default stock key.
func (r *Registry) Default() string { return r.defaultKey }

func normalize(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
