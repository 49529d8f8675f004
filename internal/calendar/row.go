package calendar

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/swamplocks/marketdata/pkg/models"
	"github.com/swamplocks/marketdata/pkg/utils"
)

// Upstream row markup conventions.
const (
	eventRowPrefix  = "eventRowId_"
	dayCellPrefix   = "theDay"
	ratingKeyPrefix = "bull"
	actualPrefix    = "eventActual_"
	forecastPrefix  = "eventForecast_"
	previousPrefix  = "eventPrevious_"
)

// RowKind tags the result of ClassifyRow.
type RowKind int

const (
	RowUnrecognized RowKind = iota
	RowDateSeparator
	RowEvent
)

func (k RowKind) String() string {
	switch k {
	case RowDateSeparator:
		return "date-separator"
	case RowEvent:
		return "event"
	default:
		return "unrecognized"
	}
}

// Row is one classified calendar row. Date is set for separators, Event
// for event rows.
type Row struct {
	Kind  RowKind
	Date  time.Time
	Event models.CalendarEvent
}

// ClassifyRow classifies a calendar tr node. current is the day boundary in
// effect for event rows; the returned time is the one in effect for the
// next row.
//
// A row without an id is a date separator when its first cell carries a
// theDay<epoch> id, and unrecognized otherwise. A row with an id is an
// event row. An unknown importance rating yields a *MappingError and the
// row must be skipped.
func ClassifyRow(row *goquery.Selection, current time.Time) (Row, time.Time, error) {
	rawID, _ := row.Attr("id")
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		day, ok := separatorDate(row)
		if !ok {
			return Row{Kind: RowUnrecognized}, current, nil
		}
		return Row{Kind: RowDateSeparator, Date: day}, day, nil
	}

	ev, err := extractEvent(row, strings.TrimPrefix(rawID, eventRowPrefix), current)
	if err != nil {
		return Row{Kind: RowUnrecognized}, current, err
	}
	return Row{Kind: RowEvent, Date: current, Event: ev}, current, nil
}

func separatorDate(row *goquery.Selection) (time.Time, bool) {
	cellID, ok := row.Find("td").First().Attr("id")
	if !ok || !strings.HasPrefix(cellID, dayCellPrefix) {
		return time.Time{}, false
	}
	epoch, err := strconv.ParseInt(strings.TrimPrefix(cellID, dayCellPrefix), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return utils.DayFromUnix(epoch), true
}

func extractEvent(row *goquery.Selection, id string, day time.Time) (models.CalendarEvent, error) {
	ev := models.CalendarEvent{ID: id, Date: day}
	var rating string

	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		class, _ := cell.Attr("class")
		cellID, _ := cell.Attr("id")
		text := strings.TrimSpace(cell.Text())

		switch {
		case strings.Contains(class, "first left"):
			ev.Time = text
		case strings.Contains(class, "flagCur"):
			if title, ok := cell.Find("span").First().Attr("title"); ok {
				zone := strings.ToLower(title)
				ev.Zone = &zone
			}
			ev.Currency = nonEmpty(text)
		case strings.Contains(class, "sentiment"):
			if key, ok := cell.Attr("data-img_key"); ok {
				rating = strings.TrimPrefix(key, ratingKeyPrefix)
			}
		case strings.TrimSpace(class) == "left event":
			ev.Event = text
		case cellID == actualPrefix+id:
			ev.Actual = nonEmpty(text)
		case cellID == forecastPrefix+id:
			ev.Forecast = nonEmpty(text)
		case cellID == previousPrefix+id:
			ev.Previous = nonEmpty(text)
		}
	})

	if rating != "" {
		n, err := strconv.Atoi(rating)
		if err != nil {
			return ev, &MappingError{RowID: id, Rating: rating}
		}
		imp, err := models.ImportanceFromRating(n)
		if err != nil {
			return ev, &MappingError{RowID: id, Rating: rating}
		}
		ev.Importance = &imp
	}
	return ev, nil
}

// terminalID returns the id of the last row carrying one, scanning rows in
// reverse document order.
func terminalID(rows *goquery.Selection) string {
	for i := rows.Length() - 1; i >= 0; i-- {
		id, _ := rows.Eq(i).Attr("id")
		if id = strings.TrimSpace(id); id != "" {
			return strings.TrimPrefix(id, eventRowPrefix)
		}
	}
	return ""
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
