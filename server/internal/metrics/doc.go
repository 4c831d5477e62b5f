// Package metrics holds the server's Prometheus collectors and serves them
// through promhttp at /metrics.
//
// Collectors live on a private registry, so only these families are exposed:
//
//	ownerwatch_cache_requests_total{route,result}       hit | miss | error
//	ownerwatch_upstream_requests_total{kind,outcome}    json | html, ok | error
//	ownerwatch_scrapes_total{outcome}                   ok | row_not_found | malformed
//	ownerwatch_cache_entries                            gauge, read at scrape time
package metrics
