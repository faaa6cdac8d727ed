// Package loader reads the incident spreadsheet into a raw domain.Table and
// memoizes reads per file snapshot.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/fire-incident-visor/internal/domain"
)

// Reader loads .xlsx, .xlsm and .csv files. Workbooks are read from their
// first sheet using stored cell values, so number formats never round
// coordinates and date cells arrive as Excel serial numbers.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a file reader.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// Read parses the file at path. The first row is the header row. A path that
// does not exist yields an error matching domain.ErrSourceNotFound.
func (r *Reader) Read(ctx context.Context, path string) (*domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", domain.ErrSourceNotFound, err)
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}

	start := time.Now()
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(path)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported input extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	table := tableFromRows(rows)
	r.logger.Debug("source read",
		"path", path,
		"columns", len(table.Headers),
		"rows", len(table.Rows),
		"duration", time.Since(start),
	)
	return table, nil
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// tableFromRows turns raw rows into a Table. Blank header cells become
// "Unnamed: <index>" and repeated headers get a ".<n>" suffix. Fully blank
// data rows are skipped; cells past the last header are ignored.
func tableFromRows(rows [][]string) *domain.Table {
	if len(rows) == 0 {
		return &domain.Table{}
	}

	headers := make([]string, len(rows[0]))
	seen := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = h + "." + strconv.Itoa(n)
		} else {
			seen[h] = 1
		}
		headers[i] = h
	}

	table := &domain.Table{Headers: headers, Rows: make([]domain.Row, 0, len(rows)-1)}
	for _, raw := range rows[1:] {
		row := make(domain.Row, len(headers))
		blank := true
		for j, cell := range raw {
			if j >= len(headers) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell != "" {
				blank = false
			}
			row[headers[j]] = cell
		}
		if blank {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
