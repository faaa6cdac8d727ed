package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/fire-incident-visor/internal/domain"
)

// Loose bounding box around Peru. Points outside it usually have latitude and
// longitude swapped or a missing sign.
const (
	minLat, maxLat = -18.5, 0.5
	minLon, maxLon = -81.5, -68.5
)

// phase tracks pass/fail for a check.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Run data checks and fail when any of them finds a problem",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, ds, err := build(cmd.Context(), inputPath(args), opts)
			if err != nil {
				return err
			}
			phases := []*phase{
				checkColumns(table),
				checkCoordinates(ds),
				checkBounds(ds),
				checkDates(ds),
			}
			if !report(cmd.OutOrStdout(), phases, len(table.Rows), len(ds.Incidents)) {
				return fmt.Errorf("%d check(s) failed", countFailed(phases))
			}
			return nil
		},
	}
}

func checkColumns(table *domain.Table) *phase {
	p := &phase{name: "Required columns present"}
	headers := domain.RenameColumns(table).Headers
	for _, col := range []string{
		domain.ColLatitude, domain.ColLongitude, domain.ColDate,
		domain.ColReport, domain.ColAddress, domain.ColType, domain.ColStatus,
	} {
		if !slices.Contains(headers, col) {
			p.errorf("missing column %q", col)
		}
	}
	return p
}

func checkCoordinates(ds *domain.Dataset) *phase {
	p := &phase{name: "Coordinates numeric"}
	for _, d := range ds.Dropped {
		p.errorf("row %d: %s invalid (lat=%q lon=%q)", d.Row, d.Reason, d.RawLatitude, d.RawLongitude)
	}
	return p
}

func checkBounds(ds *domain.Dataset) *phase {
	p := &phase{name: "Coordinates within Peru"}
	for _, inc := range ds.Incidents {
		if inc.Latitude < minLat || inc.Latitude > maxLat || inc.Longitude < minLon || inc.Longitude > maxLon {
			p.errorf("row %d: (%g, %g) outside bounds", inc.Row, inc.Latitude, inc.Longitude)
		}
	}
	return p
}

func checkDates(ds *domain.Dataset) *phase {
	p := &phase{name: "Fecha parseable"}
	for _, inc := range ds.Incidents {
		if !inc.HasDate() {
			p.errorf("row %d: Fecha %q not recognized", inc.Row, inc.Field(domain.ColDate))
		}
	}
	return p
}

// report prints one status line per phase followed by the details of the
// failed ones. It returns true when every phase passed.
func report(w io.Writer, phases []*phase, rows, incidents int) bool {
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-30s %s\n", p.name, status)
	}

	fmt.Fprintf(w, "\nRows: %d read, %d plotted\n", rows, incidents)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll checks passed.")
	}
	return allPassed
}

func countFailed(phases []*phase) int {
	n := 0
	for _, p := range phases {
		if !p.passed() {
			n++
		}
	}
	return n
}
