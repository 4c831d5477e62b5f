package upstream

import (
	"net/url"
	"strconv"
	"strings"
)

// Provider paths.
const (
	ownersPath       = "/_api/market-guide/number-of-owners/"
	marketGuidePath  = "/_api/market-guide/stock/"
	ownerFilterPath  = "/frontend/template.html/marketing/advanced-filter/advanced-filter-template"
	ownerUpperParam  = "widgets.numberOfOwners.filter.upper"
	ownerFilterLimit = 1
)

// ownerFilterFixed are the filter parameters shared by every stock: the
// health care sector, small caps on the Swedish lists, sorted by owner count
// so the stock just below the upper bound lands on row 1. Order is kept.
var ownerFilterFixed = [][2]string{
	{"widgets.marketCapitalInSek.filter.lower", ""},
	{"widgets.marketCapitalInSek.filter.upper", "1000000000"},
	{"widgets.marketCapitalInSek.active", "true"},
	{"widgets.stockLists.filter.list[0]", "SE.XSTO"},
	{"widgets.stockLists.filter.list[1]", "SE.FNSE"},
	{"widgets.stockLists.filter.list[2]", "SE.XNGM"},
	{"widgets.stockLists.active", "true"},
	{"widgets.sector.filter.list[0]", "17"},
	{"widgets.sector.active", "true"},
	{"widgets.numberOfOwners.filter.lower", ""},
	{"widgets.numberOfOwners.active", "true"},
	{"parameters.startIndex", "0"},
	{"parameters.maxResults", strconv.Itoa(ownerFilterLimit)},
	{"parameters.sortField", "NUMBER_OF_OWNERS"},
	{"parameters.sortOrder", "DESCENDING"},
	{"parameters.selectedFields[0]", "SECTOR"},
	{"parameters.selectedFields[1]", "NUMBER_OF_OWNERS"},
	{"parameters.selectedFields[2]", "NUMBER_OF_OWNERS_CHANGE_1D"},
	{"parameters.selectedFields[3]", "NUMBER_OF_OWNERS_CHANGE_1W"},
	{"parameters.selectedFields[4]", "NUMBER_OF_OWNERS_CHANGE_1M"},
	{"parameters.selectedFields[5]", "NUMBER_OF_OWNERS_CHANGE_3M"},
	{"parameters.selectedFields[6]", "NUMBER_OF_OWNERS_CHANGE_YTD"},
}

// OwnersURL returns the number-of-owners time series URL for a provider id.
func (c *Client) OwnersURL(id string) string {
	return c.baseURL + ownersPath + url.PathEscape(id)
}

// MarketGuideURL returns the market-guide URL for a provider id.
func (c *Client) MarketGuideURL(id string) string {
	return c.baseURL + marketGuidePath + url.PathEscape(id)
}

// OwnerFilterURL returns the advanced-filter HTML URL bounded at upper owners.
// The query starts with a bare millisecond timestamp that defeats caches
// between us and the provider.
func (c *Client) OwnerFilterURL(upper int) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString(ownerFilterPath)
	b.WriteByte('?')
	b.WriteString(strconv.FormatInt(c.now().UnixMilli(), 10))
	for _, kv := range ownerFilterFixed {
		writeParam(&b, kv[0], kv[1])
	}
	writeParam(&b, ownerUpperParam, strconv.Itoa(upper))
	return b.String()
}

func writeParam(b *strings.Builder, k, v string) {
	b.WriteByte('&')
	b.WriteString(url.QueryEscape(k))
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(v))
}
