package scraper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ownerwatch/ownerwatch/pkg/types"
	"github.com/ownerwatch/ownerwatch/server/internal/metrics"
)

// HTMLFetcher is the part of the upstream client the scraper needs.
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, url string) ([]byte, error)
}

// Scraper fetches the advanced-filter page and turns it into a snapshot.
type Scraper struct {
	fetcher HTMLFetcher
	loc     *time.Location
	now     func() time.Time
	metrics *metrics.Metrics
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithClock replaces time.Now, for deterministic lastUpdated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// New creates a Scraper that stamps snapshots in loc.
func New(f HTMLFetcher, loc *time.Location, m *metrics.Metrics, opts ...Option) *Scraper {
	s := &Scraper{fetcher: f, loc: loc, now: time.Now, metrics: m}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot fetches url and parses the owner row. Upstream errors are
// returned unchanged; parse failures are ErrRowNotFound or *MalformedCellError.
func (s *Scraper) Snapshot(ctx context.Context, url string) (*types.OwnerSnapshot, error) {
	body, err := s.fetcher.FetchHTML(ctx, url)
	if err != nil {
		return nil, err
	}

	row, err := ParseRow(bytes.NewReader(body))
	if err != nil {
		s.observe(err)
		return nil, err
	}
	s.observe(nil)

	return &types.OwnerSnapshot{
		NumberOfOwners: row.NumberOfOwners,
		Changes:        row.Changes,
		LastUpdated:    s.now().In(s.loc).Format(types.LastUpdatedLayout),
	}, nil
}

func (s *Scraper) observe(err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrRowNotFound):
		outcome = metrics.OutcomeRowNotFound
		slog.Info("scraper: owner row not found", "err", err)
	default:
		outcome = metrics.OutcomeMalformed
		slog.Warn("scraper: unexpected table shape", "err", err)
	}
	s.metrics.Scrape(outcome)
}
