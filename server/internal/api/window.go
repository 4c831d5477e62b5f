package api

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/ownerwatch/ownerwatch/pkg/types"
	"github.com/ownerwatch/ownerwatch/server/internal/upstream"
)

const dateLayout = "2006-01-02"

// window is an optional [from, to] date range in UTC; to is inclusive.
type window struct {
	from, to time.Time // zero means unbounded
}

func (w window) empty() bool { return w.from.IsZero() && w.to.IsZero() }

// contains reports whether t falls in the window.
func (w window) contains(t time.Time) bool {
	if !w.from.IsZero() && t.Before(w.from) {
		return false
	}
	if !w.to.IsZero() && !t.Before(w.to.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// parseWindow reads the from and to query parameters.
func parseWindow(q url.Values) (window, error) {
	var w window
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &w.from}, {"to", &w.to}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			return window{}, fmt.Errorf("invalid %s date %q: want YYYY-MM-DD", p.name, v)
		}
		*p.dst = t
	}
	if !w.from.IsZero() && !w.to.IsZero() && w.to.Before(w.from) {
		return window{}, fmt.Errorf("to date %s is before from date %s",
			w.to.Format(dateLayout), w.from.Format(dateLayout))
	}
	return w, nil
}

// filterOwners drops ownersPoints outside win. Point order and every other
// field of the provider document are preserved.
func filterOwners(body []byte, win window) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", upstream.ErrInvalidBody, err)
	}
	rawPoints, ok := doc["ownersPoints"]
	if !ok {
		return body, nil
	}

	var points []json.RawMessage
	if err := json.Unmarshal(rawPoints, &points); err != nil {
		return nil, fmt.Errorf("%w: ownersPoints: %v", upstream.ErrInvalidBody, err)
	}
	kept := make([]json.RawMessage, 0, len(points))
	for _, raw := range points {
		var p types.OwnerPoint
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: owners point: %v", upstream.ErrInvalidBody, err)
		}
		if win.contains(time.UnixMilli(p.Timestamp).UTC()) {
			kept = append(kept, raw)
		}
	}

	filtered, err := json.Marshal(kept)
	if err != nil {
		return nil, err
	}
	doc["ownersPoints"] = filtered
	return json.Marshal(doc)
}
