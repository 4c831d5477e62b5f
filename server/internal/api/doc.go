// Package api implements the HTTP endpoints the chart page reads from.
//
// New(Deps) returns an http.Handler that serves:
//
//	GET /api/stocks                        configured stocks and the default key
//	GET /api/config?stock=KEY              stockId, stockName, stockKey; 400 if unknown
//	GET /data.json?stock=KEY               provider owners time series (from/to optional)
//	GET /api/market-guide?stock=KEY        provider market-guide document
//	GET /api/ascelia-owner-change?stock=KEY
//	GET /api/owner-change?stock=KEY        owner count and 1d/1w/1m/3m/ytd changes
//
// The stock key is resolved before any cache or upstream work. The last three
// routes are cached per route and raw query string with the TTL configured for
// the route; responses carry X-Cache: HIT or MISS.
//
// Errors are JSON {"error": "..."}: 400 for an unknown stock or bad dates,
// the provider's own status for non-200 upstream answers, 404 when the owner
// row is absent, 500 when the owner table has an unexpected shape, 502 for
// transport failures. Non-GET methods get 405.
package api
