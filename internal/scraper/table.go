// Package scraper extracts tables from rendered pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/phuslu/log"

	"github.com/swamplocks/marketdata/internal/infra"
	"github.com/swamplocks/marketdata/internal/logging"
	"github.com/swamplocks/marketdata/internal/render"
	"github.com/swamplocks/marketdata/pkg/models"
)

// ErrRenderTimeout is returned when the table container did not appear in
// the rendered page within the timeout. The accompanying result is empty.
var ErrRenderTimeout = errors.New("scraper: render timeout")

// Extractor renders pages and converts their tables into rows.
type Extractor struct {
	browser  render.Browser
	cooldown time.Duration
	logger   *log.Logger
	pause    func(context.Context, time.Duration) error
}

// NewExtractor creates an Extractor. cooldown is the pause taken after each
// session teardown so back-to-back calls do not trip upstream rate limits.
func NewExtractor(browser render.Browser, cooldown time.Duration, logger *log.Logger) *Extractor {
	return &Extractor{
		browser:  browser,
		cooldown: cooldown,
		logger:   logging.OrDiscard(logger),
		pause:    infra.Sleep,
	}
}

// ExtractTable renders url, waits up to timeout for containerSelector and
// returns the container's body rows keyed by its header cells.
//
// The session is closed on every path before ExtractTable returns, followed
// by the cool-down pause. A wait timeout yields ErrRenderTimeout. A missing
// container or empty header/body yields an empty result and no error.
func (e *Extractor) ExtractTable(ctx context.Context, url, containerSelector string, timeout time.Duration) (rows []models.SectorRow, err error) {
	sess, err := e.browser.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session for %s: %w", url, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			e.logger.Warn().Err(cerr).Str("url", url).Msg("scraper: session close failed")
		}
		// The cool-down is best effort; a cancelled context just ends it early.
		_ = e.pause(ctx, e.cooldown)
	}()

	if err := sess.Navigate(url); err != nil {
		return nil, err
	}

	if err := sess.WaitFor(containerSelector, timeout); err != nil {
		if errors.Is(err, render.ErrWaitTimeout) {
			e.logger.Warn().Str("url", url).Str("selector", containerSelector).Dur("timeout", timeout).Msg("scraper: container did not render")
			return nil, fmt.Errorf("%w: %s", ErrRenderTimeout, url)
		}
		return nil, err
	}

	html, err := sess.HTML()
	if err != nil {
		return nil, err
	}

	rows, skipped := ParseTable(html, containerSelector)
	switch {
	case rows == nil:
		e.logger.Warn().Str("url", url).Str("selector", containerSelector).Msg("scraper: no table data found")
	case skipped > 0:
		e.logger.Debug().Str("url", url).Int("skipped", skipped).Msg("scraper: dropped rows with mismatched width")
	}
	return rows, nil
}

// ParseTable extracts rows from the first element matching containerSelector.
// Header names come from its th cells; each tbody tr becomes a row when its
// td count equals the header width. Blank or repeated header names are
// made unique (see models.UniqueColumnNames). skipped counts the rows
// dropped for a width mismatch. A missing container, no headers or no rows
// yields nil.
func ParseTable(html, containerSelector string) (rows []models.SectorRow, skipped int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0
	}

	container := doc.Find(containerSelector).First()
	if container.Length() == 0 {
		return nil, 0
	}

	var headers []string
	container.Find("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, cellText(th))
	})
	if len(headers) == 0 {
		return nil, 0
	}
	headers = models.UniqueColumnNames(headers)

	container.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, cellText(td))
		})
		if len(cells) == 0 {
			return
		}
		row, ok := models.NewSectorRow(headers, cells)
		if !ok {
			skipped++
			return
		}
		rows = append(rows, row)
	})
	return rows, skipped
}

func cellText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
