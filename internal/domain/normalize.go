package domain

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// renames maps source headers to canonical names. Order is fixed so header
// collisions resolve the same way on every run.
var renames = []struct{ from, to string }{
	{"Latitude", ColLatitude},
	{"Longitude", ColLongitude},
	{"#Máquinas", ColUnitCount},
	{"Elevation (m)", ColElevation},
	{"Fecha y hora", ColDate},
	{"Ver Mapa URL", ColURL},
}

// fechaLayouts are tried in order. Day-first layouts precede the two-digit
// month-first layout that excelize uses to display datetime cells.
var fechaLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"02/01/2006",
	"1/2/06 15:04",
}

// Excel serial day numbers accepted as dates: 1954-10-04 through 9999-12-31.
const (
	minExcelSerial = 20000
	maxExcelSerial = 2958465
)

// Normalized is the cleaned record set: surviving incidents plus the audit of
// rows that were dropped.
type Normalized struct {
	Headers   []string
	Incidents []Incident
	Dropped   []DroppedRow
}

// CanonicalName returns the canonical name for a source header, or the header
// itself when it is not in the rename table.
func CanonicalName(header string) string {
	for _, r := range renames {
		if r.from == header {
			return r.to
		}
	}
	return header
}

// RenameColumns returns a copy of t with known source headers replaced by
// their canonical names. Unmapped columns pass through. When a row holds both a
// source column and its canonical column, the source value wins. Applying it
// to an already-renamed table is a no-op.
func RenameColumns(t *Table) *Table {
	if t == nil {
		return &Table{}
	}

	out := &Table{
		Headers: make([]string, 0, len(t.Headers)),
		Rows:    make([]Row, len(t.Rows)),
	}
	seen := make(map[string]bool, len(t.Headers))
	for _, h := range t.Headers {
		name := CanonicalName(h)
		if seen[name] {
			continue
		}
		seen[name] = true
		out.Headers = append(out.Headers, name)
	}

	for i, row := range t.Rows {
		renamed := make(Row, len(row))
		for k, v := range row {
			if CanonicalName(k) == k {
				renamed[k] = v
			}
		}
		for _, r := range renames {
			if v, ok := row[r.from]; ok {
				renamed[r.to] = v
			}
		}
		out.Rows[i] = renamed
	}
	return out
}

// CoerceFloat parses s as a finite float64. Whitespace is ignored; empty,
// malformed, NaN and infinite values report false instead of failing.
func CoerceFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func coerceNullable(s string) *float64 {
	v, ok := CoerceFloat(s)
	if !ok {
		return nil
	}
	return &v
}

// ParseFecha parses an incident date. Wall-clock layouts are read in loc
// (UTC when nil). It reports false for empty or unrecognized values.
func ParseFecha(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range fechaLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}

	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial < minExcelSerial || serial > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	t = t.Round(time.Second)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), true
}

// Normalize renames columns, coerces coordinates and drops every row whose
// latitude or longitude is not numeric. Dropped rows are returned alongside the
// incidents. Fecha is parsed in loc.
func Normalize(t *Table, loc *time.Location) Normalized {
	renamed := RenameColumns(t)
	out := Normalized{
		Headers:   renamed.Headers,
		Incidents: make([]Incident, 0, len(renamed.Rows)),
	}

	for i, row := range renamed.Rows {
		lat, latOK := CoerceFloat(row[ColLatitude])
		lon, lonOK := CoerceFloat(row[ColLongitude])
		if !latOK || !lonOK {
			out.Dropped = append(out.Dropped, DroppedRow{
				Row:          i + 1,
				Reason:       dropReason(latOK, lonOK),
				RawLatitude:  row[ColLatitude],
				RawLongitude: row[ColLongitude],
			})
			continue
		}

		date, _ := ParseFecha(row[ColDate], loc)
		out.Incidents = append(out.Incidents, Incident{
			Row:       i + 1,
			Latitude:  lat,
			Longitude: lon,
			UnitCount: coerceNullable(row[ColUnitCount]),
			Elevation: coerceNullable(row[ColElevation]),
			Date:      date,
			Fields:    row,
		})
	}
	return out
}

func dropReason(latOK, lonOK bool) DropReason {
	switch {
	case !latOK && !lonOK:
		return DropCoordinates
	case !latOK:
		return DropLatitude
	default:
		return DropLongitude
	}
}
