// Package upstream talks to the market-data provider.
//
// The provider rejects default HTTP-library user agents, so every request
// carries fixed headers injected by a RoundTripper: the JSON API gets
// "Accept: application/json" with a short Mozilla user agent, the
// advanced-filter HTML page gets a full desktop browser user agent. These
// strings must not change.
//
// Non-200 responses are returned as *StatusError so the API can answer with
// the same status code. Nothing is retried.
package upstream
