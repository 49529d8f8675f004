package models

import (
	"fmt"
	"time"
)

// Importance is the market impact rating of a calendar event.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

var importanceRatings = map[int]Importance{
	1: ImportanceLow,
	2: ImportanceMedium,
	3: ImportanceHigh,
}

// ImportanceFromRating maps an upstream bull rating (1..3) to an Importance.
func ImportanceFromRating(rating int) (Importance, error) {
	imp, ok := importanceRatings[rating]
	if !ok {
		return "", fmt.Errorf("unknown importance rating %d", rating)
	}
	return imp, nil
}

// CalendarEvent is one economic-indicator release.
type CalendarEvent struct {
	ID         string      `json:"id"`
	Date       time.Time   `json:"date"` // UTC midnight of the day boundary
	Time       string      `json:"time"`
	Zone       *string     `json:"zone"`
	Currency   *string     `json:"currency"`
	Importance *Importance `json:"importance"`
	Event      string      `json:"event"`
	Actual     *string     `json:"actual"`
	Forecast   *string     `json:"forecast"`
	Previous   *string     `json:"previous"`
}

// Deref returns the pointed-to string, or "" for nil.
func Deref[T ~string](p *T) string {
	if p == nil {
		return ""
	}
	return string(*p)
}
