// Package scraper extracts the owner snapshot from the provider's
// advanced-filter HTML page.
//
// The filter is parameterised so the requested stock is the first result row.
// ParseRow locates that row inside the scrollable table container and reads
// exactly seven cells, positionally:
//
//	sector | owners | Δ1d | Δ1w | Δ1m | Δ3m | ΔYTD
//
// The six numeric cells use spaces or non-breaking spaces as thousands
// separators. Parsing is all-or-nothing: one bad cell fails the whole row
// with a *MalformedCellError. A missing row, or a row without seven cells,
// is ErrRowNotFound, the normal result when the filter excludes the stock.
package scraper
