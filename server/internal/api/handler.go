package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ownerwatch/ownerwatch/server/internal/cache"
	"github.com/ownerwatch/ownerwatch/server/internal/config"
	"github.com/ownerwatch/ownerwatch/server/internal/metrics"
	"github.com/ownerwatch/ownerwatch/server/internal/registry"
	"github.com/ownerwatch/ownerwatch/server/internal/scraper"
	"github.com/ownerwatch/ownerwatch/server/internal/upstream"
)

// Route identifiers, used as cache key prefixes and metrics labels.
const (
	RouteOwners      = "data"
	RouteMarketGuide = "market-guide"
	RouteOwnerChange = "owner-change"
)

// Deps are the collaborators a Handler is built from.
type Deps struct {
	Registry *registry.Registry
	Cache    *cache.Cache
	Upstream *upstream.Client
	Scraper  *scraper.Scraper
	TTL      config.TTLConfig
	Metrics  *metrics.Metrics // optional
}

// Handler is the HTTP handler for the chart data endpoints.
type Handler struct {
	reg     *registry.Registry
	cache   *cache.Cache
	up      *upstream.Client
	scraper *scraper.Scraper
	ttl     config.TTLConfig
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

// New creates a Handler from d and registers all routes.
func New(d Deps) http.Handler {
	h := &Handler{
		reg:     d.Registry,
		cache:   d.Cache,
		up:      d.Upstream,
		scraper: d.Scraper,
		ttl:     d.TTL,
		metrics: d.Metrics,
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("/api/stocks", h.stocks)
	h.mux.HandleFunc("/api/config", h.stockConfig)
	h.mux.HandleFunc("/data.json", h.ownersData)
	h.mux.HandleFunc("/api/market-guide", h.marketGuide)
	h.mux.HandleFunc("/api/ascelia-owner-change", h.ownerChange)
	h.mux.HandleFunc("/api/owner-change", h.ownerChange)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// stocks returns GET /api/stocks: every configured stock and the default key.
func (h *Handler) stocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	list := h.reg.List()
	out := StocksResponse{
		Stocks:  make([]StockEntry, 0, len(list)),
		Default: h.reg.Default(),
	}
	for _, s := range list {
		out.Stocks = append(out.Stocks, StockEntry{Key: s.Key, ID: s.ID, Name: s.Name})
	}
	jsonResp(w, http.StatusOK, out)
}

// stockConfig returns GET /api/config?stock=KEY: the resolved stock's identifiers.
func (h *Handler) stockConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stock, ok := h.resolve(w, r)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, ConfigResponse{
		StockID:   stock.ID,
		StockName: stock.Name,
		StockKey:  stock.Key,
	})
}

// ownersData returns GET /data.json?stock=KEY: the provider's owners time
// series, optionally narrowed to from/to dates.
func (h *Handler) ownersData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stock, ok := h.resolve(w, r)
	if !ok {
		return
	}
	win, err := parseWindow(r.URL.Query())
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	h.serveCached(w, r, stock, RouteOwners, h.ttl.Owners, func(ctx context.Context) ([]byte, error) {
		body, err := h.up.FetchJSON(ctx, h.up.OwnersURL(stock.ID))
		if err != nil || win.empty() {
			return body, err
		}
		return filterOwners(body, win)
	})
}

// marketGuide returns GET /api/market-guide?stock=KEY: the provider's
// market-guide document, passed through.
func (h *Handler) marketGuide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stock, ok := h.resolve(w, r)
	if !ok {
		return
	}

	h.serveCached(w, r, stock, RouteMarketGuide, h.ttl.MarketGuide, func(ctx context.Context) ([]byte, error) {
		return h.up.FetchJSON(ctx, h.up.MarketGuideURL(stock.ID))
	})
}

// ownerChange returns GET /api/ascelia-owner-change?stock=KEY: the current
// owner count and its changes, scraped from the advanced filter.
func (h *Handler) ownerChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stock, ok := h.resolve(w, r)
	if !ok {
		return
	}

	h.serveCached(w, r, stock, RouteOwnerChange, h.ttl.OwnerChange, func(ctx context.Context) ([]byte, error) {
		snap, err := h.scraper.Snapshot(ctx, h.up.OwnerFilterURL(stock.OwnerFilterUpperBound))
		if err != nil {
			return nil, err
		}
		return json.Marshal(snap)
	})
}

// --- helpers ----------------------------------------------------------------

// resolve looks up the stock query parameter and writes a 400 if it is unknown.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (config.StockConfig, bool) {
	stock, err := h.reg.Resolve(r.URL.Query().Get("stock"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return stock, false
	}
	return stock, true
}

// serveCached answers from the cache keyed on route and the raw query string,
// calling fetch on a miss.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, stock config.StockConfig, route string, ttl time.Duration, fetch cache.FetchFunc) {
	body, hit, err := h.cache.GetOrFetch(r.Context(), route, r.URL.RawQuery, ttl, fetch)
	if err != nil {
		h.metrics.CacheRequest(route, metrics.ResultError)
		h.writeFetchError(w, stock, route, err)
		return
	}

	result, header := metrics.ResultMiss, "MISS"
	if hit {
		result, header = metrics.ResultHit, "HIT"
	}
	h.metrics.CacheRequest(route, result)
	slog.Debug("api: served", "route", route, "stock", stock.Key, "cache", result)

	w.Header().Set("X-Cache", header)
	rawJSON(w, http.StatusOK, body)
}

// writeFetchError maps upstream and scrape failures onto a JSON error response.
func (h *Handler) writeFetchError(w http.ResponseWriter, stock config.StockConfig, route string, err error) {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, scraper.ErrRowNotFound):
		jsonErr(w, http.StatusNotFound, fmt.Sprintf("%s row not found", shortName(stock.Key)))

	case errors.Is(err, scraper.ErrMalformedCell):
		slog.Error("api: owner table format changed", "stock", stock.Key, "err", err)
		jsonErr(w, http.StatusInternalServerError, "Failed to parse owner table: "+err.Error())

	case errors.As(err, &se):
		slog.Warn("api: upstream returned error status",
			"route", route, "stock", stock.Key, "status", se.StatusCode)
		jsonErr(w, se.StatusCode, fmt.Sprintf("Failed to fetch data: %d", se.StatusCode))

	case errors.Is(err, upstream.ErrInvalidBody):
		slog.Warn("api: upstream returned invalid body", "route", route, "stock", stock.Key, "err", err)
		jsonErr(w, http.StatusBadGateway, "Failed to fetch data: invalid upstream response")

	default:
		slog.Warn("api: upstream request failed", "route", route, "stock", stock.Key, "err", err)
		jsonErr(w, http.StatusBadGateway, "Failed to fetch data: upstream unavailable")
	}
}

// shortName turns a stock key into the name used in error messages,
// e.g. "ASCELIA" -> "Ascelia".
func shortName(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if size == 0 {
		return key
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(key[size:])
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func rawJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body) //nolint:errcheck
}
