package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/swamplocks/marketdata/internal/logging"
	"github.com/swamplocks/marketdata/pkg/models"
)

// ErrUnknownSector is returned for a sector name missing from the sector table.
var ErrUnknownSector = errors.New("scraper: unknown sector")

// Options configures a Sectors batch.
type Options struct {
	Sectors           []models.Sector
	ContainerSelector string
	Timeout           time.Duration
}

// Sectors scrapes the configured sector listing pages.
type Sectors struct {
	extractor *Extractor
	opts      Options
	logger    *log.Logger
}

// NewSectors creates a sector scraper over the given extractor.
func NewSectors(extractor *Extractor, opts Options, logger *log.Logger) *Sectors {
	return &Sectors{
		extractor: extractor,
		opts:      opts,
		logger:    logging.OrDiscard(logger),
	}
}

// Names returns the configured sector names in order.
func (s *Sectors) Names() []string {
	names := make([]string, len(s.opts.Sectors))
	for i, sec := range s.opts.Sectors {
		names[i] = sec.Name
	}
	return names
}

// Lookup finds a sector by name, ignoring case.
func (s *Sectors) Lookup(name string) (models.Sector, error) {
	for _, sec := range s.opts.Sectors {
		if strings.EqualFold(sec.Name, strings.TrimSpace(name)) {
			return sec, nil
		}
	}
	return models.Sector{}, fmt.Errorf("%w: %q", ErrUnknownSector, name)
}

// Ticker returns the index ticker of the named sector.
func (s *Sectors) Ticker(name string) (string, error) {
	sec, err := s.Lookup(name)
	if err != nil {
		return "", err
	}
	if sec.Ticker == "" {
		return "", fmt.Errorf("sector %q has no index ticker configured", sec.Name)
	}
	return sec.Ticker, nil
}

// FetchSector scrapes one sector's listing table.
func (s *Sectors) FetchSector(ctx context.Context, name string) ([]models.SectorRow, error) {
	sec, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	return s.extractor.ExtractTable(ctx, sec.URL, s.opts.ContainerSelector, s.opts.Timeout)
}

// FetchAll scrapes every configured sector in order. A failing sector is
// recorded in its entry and logged; the batch always covers every sector
// unless ctx is cancelled.
func (s *Sectors) FetchAll(ctx context.Context) []models.SectorTable {
	tables := make([]models.SectorTable, 0, len(s.opts.Sectors))
	for _, sec := range s.opts.Sectors {
		if err := ctx.Err(); err != nil {
			tables = append(tables, models.SectorTable{Sector: sec.Name, URL: sec.URL, Err: err})
			continue
		}

		s.logger.Info().Str("sector", sec.Name).Msg("fetching sector stocks")
		start := time.Now()
		rows, err := s.extractor.ExtractTable(ctx, sec.URL, s.opts.ContainerSelector, s.opts.Timeout)
		if err != nil {
			s.logger.Error().Err(err).Str("sector", sec.Name).Msg("sector fetch failed")
		} else {
			s.logger.Info().Str("sector", sec.Name).Int("rows", len(rows)).Dur("took", time.Since(start)).Msg("sector fetched")
		}
		tables = append(tables, models.SectorTable{Sector: sec.Name, URL: sec.URL, Rows: rows, Err: err})
	}
	return tables
}
