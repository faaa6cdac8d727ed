// Command inspect loads the incident spreadsheet offline and reports what the
// dashboard would show: a summary, the dropped-row audit, data checks, or the
// projected incidents as GeoJSON.
//
// Usage:
//
//	go run ./cmd/inspect summary df_hoy.xlsx
//	go run ./cmd/inspect dropped df_hoy.xlsx
//	go run ./cmd/inspect check df_hoy.xlsx
//	go run ./cmd/inspect geojson df_hoy.xlsx -o incidents.geojson
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/fire-incident-visor/internal/domain"
	"github.com/couchcryptid/fire-incident-visor/internal/loader"
	"github.com/couchcryptid/fire-incident-visor/internal/render"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	timezone string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "inspect",
		Short:         "Inspect the fire-incident spreadsheet without starting the dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.timezone, "tz", sharedcfg.EnvOrDefault("TIMEZONE", "America/Lima"), "Time zone for Fecha values")

	rootCmd.AddCommand(
		newSummaryCmd(opts),
		newDroppedCmd(opts),
		newCheckCmd(opts),
		newGeoJSONCmd(opts),
	)
	return rootCmd
}

// inputPath returns the path argument, falling back to INPUT_PATH.
func inputPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return sharedcfg.EnvOrDefault("INPUT_PATH", "df_hoy.xlsx")
}

// build reads and normalizes path the same way the dashboard does.
func build(ctx context.Context, path string, opts *rootOptions) (*domain.Table, *domain.Dataset, error) {
	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --tz %q: %w", opts.timezone, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	table, err := loader.NewReader(logger).Read(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrSourceNotFound) {
			return nil, nil, errors.New(render.MissingFileMessage(path))
		}
		return nil, nil, err
	}

	norm := domain.Normalize(table, loc)
	incidents := domain.Project(norm.Incidents)
	return table, &domain.Dataset{
		Source:    path,
		LoadedAt:  domain.Now(),
		Headers:   norm.Headers,
		Incidents: incidents,
		Dropped:   norm.Dropped,
		Summary:   domain.Summarize(incidents, len(norm.Dropped)),
	}, nil
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary [path]",
		Short: "Print incident counts and unit/elevation statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ds, err := build(cmd.Context(), inputPath(args), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ds.Summary)
			}
			return printSummary(out, ds)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func printSummary(w io.Writer, ds *domain.Dataset) error {
	s := ds.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Source:\t%s\n", ds.Source)
	fmt.Fprintf(tw, "Incidents:\t%d\n", s.Total)
	fmt.Fprintf(tw, "Dropped:\t%d\n", s.Dropped)
	if s.Units.N > 0 {
		fmt.Fprintf(tw, "Units:\tmean %.1f\tmedian %.1f\tmax %.0f\n", s.Units.Mean, s.Units.Median, s.Units.Max)
	}
	if s.Elevation.N > 0 {
		fmt.Fprintf(tw, "Elevation (m):\tmean %.1f\tmedian %.1f\tmax %.0f\n", s.Elevation.Mean, s.Elevation.Median, s.Elevation.Max)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Tipo\tCount")
	for _, c := range s.ByType {
		fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.Count)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Estado\tCount")
	for _, c := range s.ByStatus {
		fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.Count)
	}
	return tw.Flush()
}

func newDroppedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dropped [path]",
		Short: "List rows excluded for invalid coordinates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ds, err := build(cmd.Context(), inputPath(args), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ds.Dropped) == 0 {
				fmt.Fprintln(out, "No rows dropped.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "Row\tReason\tLatitude\tLongitude")
			for _, d := range ds.Dropped {
				fmt.Fprintf(tw, "%d\t%s\t%q\t%q\n", d.Row, d.Reason, d.RawLatitude, d.RawLongitude)
			}
			return tw.Flush()
		},
	}
}

func newGeoJSONCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "geojson [path]",
		Short: "Write the projected incidents as a GeoJSON FeatureCollection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ds, err := build(cmd.Context(), inputPath(args), opts)
			if err != nil {
				return err
			}
			payload, err := json.MarshalIndent(domain.FeatureCollection(ds.Incidents), "", "  ")
			if err != nil {
				return fmt.Errorf("encode geojson: %w", err)
			}
			payload = append(payload, '\n')

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(payload)
				return err
			}
			if err := os.WriteFile(output, payload, 0o644); err != nil { //nolint:gosec // output is meant to be shared
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d features to %s\n", len(ds.Incidents), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
