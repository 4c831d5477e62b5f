// Package config loads and watches the server configuration file (config.yaml).
//
// Top-level types:
//   - Config{Server, Upstream, Cache, Timezone, DefaultStock, Stocks}
//   - ServerConfig: host, http_port, log_level
//   - UpstreamConfig: base_url of the market-data provider, request timeout
//   - CacheConfig: per-route TTLs (owners, market_guide, owner_change),
//     dedupe_inflight, sweep_interval
//   - StockConfig: key, id, name, owner_filter_upper_bound
//
// Load(path) reads the YAML file, applies defaults (0.0.0.0:5000, 1h/6h/1h TTLs,
// Europe/Stockholm, the built-in ASCELIA and EGETIS stocks), applies the
// OWNERWATCH_HOST and OWNERWATCH_HTTP_PORT environment overrides, then validates.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config.
package config
