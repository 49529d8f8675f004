// Package models defines the records produced by the marketdata scrapers.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field is one named cell of a SectorRow.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SectorRow is one listed security's snapshot from a sector page.
// Columns are discovered from the page's own header row, so a row is an
// ordered list of fields rather than a fixed struct.
type SectorRow []Field

// NewSectorRow zips headers and cells into a row. It returns false when the
// widths differ; such rows are dropped, never padded. Header names are made
// unique with UniqueColumnNames.
func NewSectorRow(headers, cells []string) (SectorRow, bool) {
	if len(headers) == 0 || len(headers) != len(cells) {
		return nil, false
	}
	names := UniqueColumnNames(headers)
	row := make(SectorRow, len(names))
	for i, h := range names {
		row[i] = Field{Name: h, Value: cells[i]}
	}
	return row, true
}

// UniqueColumnNames returns headers with every name distinct, so a row
// encodes to a JSON object without repeated keys. A blank header becomes
// "Column N" (1-based position); a repeated one gets a " (2)", " (3)", ...
// suffix. Already unique names are returned unchanged.
func UniqueColumnNames(headers []string) []string {
	names := make([]string, len(headers))
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Column %d", i+1)
		}
		candidate := name
		for n := 2; seen[candidate]; n++ {
			candidate = fmt.Sprintf("%s (%d)", name, n)
		}
		seen[candidate] = true
		names[i] = candidate
	}
	return names
}

// Width returns the number of fields in the row.
func (r SectorRow) Width() int { return len(r) }

// Get returns the value stored under the given column name.
func (r SectorRow) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Columns returns the column names in page order.
func (r SectorRow) Columns() []string {
	cols := make([]string, len(r))
	for i, f := range r {
		cols[i] = f.Name
	}
	return cols
}

// Values returns the cell values in page order.
func (r SectorRow) Values() []string {
	vals := make([]string, len(r))
	for i, f := range r {
		vals[i] = f.Value
	}
	return vals
}

// MarshalJSON encodes the row as a JSON object preserving column order.
func (r SectorRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SectorTable is the outcome of scraping one sector in a batch.
type SectorTable struct {
	Sector string      `json:"sector"`
	URL    string      `json:"url"`
	Rows   []SectorRow `json:"rows"`
	Err    error       `json:"-"`
}

// Sector describes a configured sector page and its index ticker.
type Sector struct {
	Name   string `mapstructure:"name"   yaml:"name"   json:"name"`
	URL    string `mapstructure:"url"    yaml:"url"    json:"url"`
	Ticker string `mapstructure:"ticker" yaml:"ticker" json:"ticker"`
}
