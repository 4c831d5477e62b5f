package types

// OwnerChanges holds the signed change in owner count over each lookback window.
type OwnerChanges struct {
	OneDay      int `json:"1d"`
	OneWeek     int `json:"1w"`
	OneMonth    int `json:"1m"`
	ThreeMonths int `json:"3m"`
	YearToDate  int `json:"ytd"`
}

// OwnerSnapshot is the payload for the owner-change endpoint.
type OwnerSnapshot struct {
	NumberOfOwners int          `json:"numberOfOwners"`
	Changes        OwnerChanges `json:"changes"`

	// LastUpdated is wall-clock time in the configured zone, minute precision.
	LastUpdated string `json:"lastUpdated"`
}

// LastUpdatedLayout is the time layout used for OwnerSnapshot.LastUpdated.
const LastUpdatedLayout = "2006-01-02 15:04"

// OwnerPoint is one sample of the owners time series.
type OwnerPoint struct {
	Timestamp      int64 `json:"timestamp"` // unix milliseconds
	NumberOfOwners int   `json:"numberOfOwners"`
}

// OwnersTimeSeries is the body of the provider's number-of-owners endpoint.
// Points are kept in the order the provider returned them.
type OwnersTimeSeries struct {
	OwnersPoints []OwnerPoint `json:"ownersPoints"`
}
