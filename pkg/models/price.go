package models

import (
	"encoding/json"
	"time"
)

// PricePoint is one observation of a chart series.
type PricePoint struct {
	Timestamp int64    `json:"timestamp"` // seconds since epoch, as supplied upstream
	Close     *float64 `json:"close"`     // nil when upstream has no close for the bar
}

// Time returns the observation time in UTC.
func (p PricePoint) Time() time.Time {
	return time.Unix(p.Timestamp, 0).UTC()
}

// MarshalJSON adds a derived RFC 3339 date next to the raw timestamp.
func (p PricePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Timestamp int64    `json:"timestamp"`
		Date      string   `json:"date"`
		Close     *float64 `json:"close"`
	}{
		Timestamp: p.Timestamp,
		Date:      p.Time().Format(time.RFC3339),
		Close:     p.Close,
	})
}
