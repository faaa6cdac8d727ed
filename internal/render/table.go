package render

import (
	"strconv"

	"github.com/couchcryptid/fire-incident-visor/internal/domain"
)

// TableView is the read-only tabular view of the cleaned records.
type TableView struct {
	Headers []string
	Rows    []TableRow
}

// TableRow holds one record's cells in header order.
type TableRow struct {
	Row   int
	Cells []string
}

// NewTableView sorts incidents by Fecha, newest first, and lays their cells
// out in header order. Undated rows follow the dated ones in load order.
func NewTableView(headers []string, incidents []domain.Incident) *TableView {
	sorted := domain.SortByDateDesc(incidents)
	view := &TableView{
		Headers: append([]string(nil), headers...),
		Rows:    make([]TableRow, 0, len(sorted)),
	}
	for _, inc := range sorted {
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = cellText(inc, h)
		}
		view.Rows = append(view.Rows, TableRow{Row: inc.Row, Cells: cells})
	}
	return view
}

// cellText prefers the coerced coordinate so the table shows the values that
// were plotted. Fecha shows the parsed date when the cell held a serial number.
func cellText(inc domain.Incident, header string) string {
	switch header {
	case domain.ColLatitude:
		return strconv.FormatFloat(inc.Latitude, 'f', -1, 64)
	case domain.ColLongitude:
		return strconv.FormatFloat(inc.Longitude, 'f', -1, 64)
	case domain.ColDate:
		return inc.DateText()
	default:
		return inc.Field(header)
	}
}
