// Package types defines the JSON shapes shared by the scraper, the API and the
// chart front end: the owner snapshot served by the owner-change endpoint and
// the owners time series returned by the provider's number-of-owners API.
package types
