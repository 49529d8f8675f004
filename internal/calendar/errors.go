package calendar

import (
	"fmt"
	"strconv"
)

// PageParseError reports a calendar page whose body could not be decoded.
// It is fatal to the crawl.
type PageParseError struct {
	Offset int
	Err    error
}

func (e *PageParseError) Error() string {
	return fmt.Sprintf("calendar page %d: parse body: %v", e.Offset, e.Err)
}

func (e *PageParseError) Unwrap() error { return e.Err }

// MappingError reports an event row whose importance rating is not one of
// the known codes. The row is skipped; the rest of the page is kept.
type MappingError struct {
	RowID  string
	Rating string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("calendar row %s: unknown importance rating %s", e.RowID, strconv.Quote(e.Rating))
}

// IncompleteError is returned when a crawl hits its page or time ceiling
// before the upstream signalled the end of data.
type IncompleteError struct {
	Pages  int
	Events int
	Reason string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("calendar crawl incomplete after %d pages (%d events): %s", e.Pages, e.Events, e.Reason)
}
