package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/swamplocks/marketdata/pkg/models"
	"github.com/swamplocks/marketdata/pkg/utils"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

func outputFormat(cmd *cobra.Command) (string, error) {
	f, _ := cmd.Flags().GetString("format")
	switch f = strings.ToLower(strings.TrimSpace(f)); f {
	case formatTable, formatCSV, formatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, csv or json)", f)
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func renderTable(t table.Writer, format string) {
	if format == formatCSV {
		t.RenderCSV()
		return
	}
	t.Render()
}

func writeJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Sectors ---

type sectorView struct {
	Sector string             `json:"sector"`
	URL    string             `json:"url"`
	Rows   []models.SectorRow `json:"rows"`
	Error  string             `json:"error,omitempty"`
}

func writeSectors(w io.Writer, format string, tables []models.SectorTable) error {
	if format == formatJSON {
		views := make([]sectorView, len(tables))
		for i, t := range tables {
			views[i] = sectorView{Sector: t.Sector, URL: t.URL, Rows: t.Rows}
			if views[i].Rows == nil {
				views[i].Rows = []models.SectorRow{}
			}
			if t.Err != nil {
				views[i].Error = t.Err.Error()
			}
		}
		return writeJSONTo(w, views)
	}

	for _, st := range tables {
		if format == formatTable {
			fmt.Fprintf(w, "%s (%d rows)\n", st.Sector, len(st.Rows))
		}
		if st.Err != nil {
			fmt.Fprintf(w, "  error: %v\n", st.Err)
			continue
		}
		if len(st.Rows) == 0 {
			continue
		}

		t := newTable(w)
		header := table.Row{"Sector"}
		for _, c := range st.Rows[0].Columns() {
			header = append(header, c)
		}
		t.AppendHeader(header)
		for _, r := range st.Rows {
			row := table.Row{st.Sector}
			for _, v := range r.Values() {
				row = append(row, v)
			}
			t.AppendRow(row)
		}
		renderTable(t, format)
	}
	return nil
}

// --- Series ---

type symbolSeries struct {
	Symbol string              `json:"symbol"`
	Points []models.PricePoint `json:"points"`
}

func writeSeries(w io.Writer, format string, series []symbolSeries) error {
	if format == formatJSON {
		return writeJSONTo(w, series)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Symbol", "Date", "Close"})
	for _, s := range series {
		for _, p := range s.Points {
			t.AppendRow(table.Row{s.Symbol, utils.FormatAPIDate(p.Time()), formatClose(p.Close)})
		}
	}
	renderTable(t, format)
	return nil
}

func formatClose(c *float64) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%.4f", *c)
}

// --- Calendar ---

func writeCalendar(w io.Writer, format string, events []models.CalendarEvent) error {
	if format == formatJSON {
		return writeJSONTo(w, events)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Date", "Time", "Zone", "Currency", "Importance", "Event", "Actual", "Forecast", "Previous"})
	for _, e := range events {
		t.AppendRow(table.Row{
			e.ID,
			utils.FormatCalendarDate(e.Date),
			e.Time,
			models.Deref(e.Zone),
			models.Deref(e.Currency),
			models.Deref(e.Importance),
			e.Event,
			models.Deref(e.Actual),
			models.Deref(e.Forecast),
			models.Deref(e.Previous),
		})
	}
	renderTable(t, format)
	return nil
}

// --- News ---

func writeNews(w io.Writer, format string, articles []models.NewsArticle) error {
	if format == formatJSON {
		if articles == nil {
			articles = []models.NewsArticle{}
		}
		return writeJSONTo(w, articles)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Published", "Source", "Title", "Topics", "Score", "Sentiment"})
	for _, a := range articles {
		t.AppendRow(table.Row{
			a.TimePublished.UTC().Format(time.RFC3339),
			a.Source,
			a.Title,
			strings.Join(a.TopicNames(), "; "),
			fmt.Sprintf("%.4f", a.SentimentScore),
			a.SentimentLabel,
		})
	}
	renderTable(t, format)
	return nil
}
