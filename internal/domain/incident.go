package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-geom"
)

// Canonical column names, valid after RenameColumns.
const (
	ColLatitude  = "Latitud"
	ColLongitude = "Longitud"
	ColUnitCount = "Num_Maquinas"
	ColElevation = "Elevacion"
	ColDate      = "Fecha"
	ColURL       = "URL"

	// Pass-through display columns.
	ColReport  = "Nro Parte"
	ColAddress = "Dirección / Distrito"
	ColType    = "Tipo"
	ColStatus  = "Estado"
	ColUnits   = "Máquinas"
)

// DateLayout formats Fecha values recovered from workbook date cells.
const DateLayout = "2006-01-02 15:04:05"

// ErrSourceNotFound is returned when the configured input file does not exist.
var ErrSourceNotFound = errors.New("source file not found")

// Row is one source row keyed by column header. Cells are trimmed strings.
type Row map[string]string

// Table is the raw record set produced by the loader: ordered headers plus one
// Row per data row (the header row is not included).
type Table struct {
	Headers []string
	Rows    []Row
}

// Snapshot is one read of the input file, identified by path, modification
// time and size.
type Snapshot struct {
	ID      string
	Path    string
	ModTime time.Time
	Size    int64
	ReadAt  time.Time
	Table   *Table
}

// Incident is a normalized fire-incident record.
type Incident struct {
	// Row is the 1-based position of the record among the source data rows.
	Row int

	Latitude  float64
	Longitude float64
	UnitCount *float64
	Elevation *float64

	// Date is zero when Fecha is missing or unparseable.
	Date time.Time

	Fields Row

	// Geometry is nil until Project runs.
	Geometry *geom.Point
}

// Field returns the trimmed value of a column, or "" when the column is absent.
func (i Incident) Field(name string) string {
	if i.Fields == nil {
		return ""
	}
	return strings.TrimSpace(i.Fields[name])
}

// HasDate reports whether Fecha parsed to a timestamp.
func (i Incident) HasDate() bool {
	return !i.Date.IsZero()
}

// DateText is the Fecha value for display. Workbook date cells hold Excel
// serial numbers; those are shown as the parsed timestamp instead.
func (i Incident) DateText() string {
	raw := i.Field(ColDate)
	if !i.HasDate() {
		return raw
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return raw
	}
	return i.Date.Format(DateLayout)
}

// DropReason names the coordinate that failed coercion.
type DropReason string

const (
	DropLatitude    DropReason = "latitude"
	DropLongitude   DropReason = "longitude"
	DropCoordinates DropReason = "coordinates"
)

// DroppedRow is the audit record for a row excluded by the normalizer.
type DroppedRow struct {
	Row          int        `json:"row"`
	Reason       DropReason `json:"reason"`
	RawLatitude  string     `json:"raw_latitude"`
	RawLongitude string     `json:"raw_longitude"`
}

// Dataset is the output of one pipeline pass over a snapshot.
type Dataset struct {
	SnapshotID string
	Source     string
	ModTime    time.Time
	LoadedAt   time.Time
	Headers    []string
	Incidents  []Incident
	Dropped    []DroppedRow
	Summary    Summary
}
