package utils

import (
	"net/url"
	"strings"
)

// NormalizeSymbol trims and upper-cases a ticker symbol.
// Yahoo symbols are case-insensitive; index symbols keep their "^" prefix.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// IsIndexSymbol reports whether the symbol names an index (e.g. "^YH311").
func IsIndexSymbol(symbol string) bool {
	return strings.HasPrefix(NormalizeSymbol(symbol), "^")
}

// EscapeSymbol makes a symbol safe for use as a URL path segment.
func EscapeSymbol(symbol string) string {
	return url.PathEscape(NormalizeSymbol(symbol))
}

// SectorSlug converts a sector display name to the slug used in sector URLs,
// e.g. "Financial Services" -> "financial-services".
func SectorSlug(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, "-")
}
