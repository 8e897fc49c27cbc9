package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ErrUnreadableFile is returned when a dataset file cannot be parsed with the
// given format and options.
var ErrUnreadableFile = errors.New("unable to read dataset file")

// timestampLayouts are tried in order when no explicit format is configured.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// LoadOptions controls how a dataset file is read.
type LoadOptions struct {
	// Format is one of csv, tsv, excel, json.
	Format string
	// TimestampColumn names the index column. Empty means the first column.
	TimestampColumn string
	// TimestampFormat is a Go time layout. Empty means auto-detect.
	TimestampFormat string
	// Sheet selects the worksheet for excel files. Empty means the first sheet.
	Sheet string
	// Delimiter overrides the field separator for csv files.
	Delimiter string
}

// Load reads a tabular time-series file into a Dataset. Columns that are not
// fully numeric are dropped, matching a dataframe's exclusion of object
// dtypes. Rows whose timestamp cannot be parsed fail the whole load.
func Load(path string, opts LoadOptions) (*Dataset, error) {
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "csv"
	}

	var (
		header [][]string
		err    error
	)
	switch format {
	case "csv":
		header, err = readDelimited(path, delimiterOf(opts.Delimiter, ','))
	case "tsv":
		header, err = readDelimited(path, delimiterOf(opts.Delimiter, '\t'))
	case "excel":
		header, err = readExcel(path, opts.Sheet)
	case "json":
		header, err = readJSONRows(path)
	default:
		return nil, fmt.Errorf("%w: format %q is not supported, supported formats are csv, tsv, excel, json", ErrUnreadableFile, opts.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, path, err)
	}

	ds, err := fromRows(header, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, path, err)
	}
	return ds, nil
}

func delimiterOf(configured string, fallback rune) rune {
	if configured == "" {
		return fallback
	}
	return []rune(configured)[0]
}

// readDelimited reads a CSV or TSV file into header+rows form.
func readDelimited(path string, delimiter rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delimiter
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// readExcel reads the configured (or first) worksheet into header+rows form.
func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// readJSONRows reads an array of flat row objects and converts it to
// header+rows form. The column order follows the first object's keys as they
// appear once decoded, so a stable sort is applied for determinism.
func readJSONRows(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var objects []map[string]any
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("no rows in JSON array")
	}

	keys := make([]string, 0, len(objects[0]))
	for k := range objects[0] {
		keys = append(keys, k)
	}
	// Keep the timestamp candidates first if present, then the rest sorted.
	sortJSONKeys(keys)

	rows := make([][]string, 0, len(objects)+1)
	rows = append(rows, keys)
	for _, obj := range objects {
		row := make([]string, len(keys))
		for i, k := range keys {
			switch v := obj[k].(type) {
			case nil:
				row[i] = ""
			case string:
				row[i] = v
			case float64:
				row[i] = strconv.FormatFloat(v, 'g', -1, 64)
			case bool:
				row[i] = strconv.FormatBool(v)
			default:
				row[i] = fmt.Sprint(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// sortJSONKeys orders keys deterministically with common index names first.
func sortJSONKeys(keys []string) {
	rank := func(k string) int {
		switch strings.ToLower(k) {
		case "timestamp", "date", "time", "datetime":
			return 0
		}
		return 1
	}
	// stable insertion sort; key sets are small
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0; j-- {
			a, b := keys[j-1], keys[j]
			if rank(a) < rank(b) || (rank(a) == rank(b) && a <= b) {
				break
			}
			keys[j-1], keys[j] = b, a
		}
	}
}

// fromRows converts header+rows form into a Dataset, dropping non-numeric
// columns and parsing the timestamp index.
func fromRows(rows [][]string, opts LoadOptions) (*Dataset, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("need a header row and at least one data row, got %d rows", len(rows))
	}

	header := rows[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("need a timestamp column and at least one value column")
	}

	tsIdx := 0
	if opts.TimestampColumn != "" {
		tsIdx = -1
		for i, name := range header {
			if name == opts.TimestampColumn {
				tsIdx = i
				break
			}
		}
		if tsIdx < 0 {
			return nil, fmt.Errorf("timestamp column %q not found", opts.TimestampColumn)
		}
	}

	data := rows[1:]
	timestamps := make([]time.Time, len(data))
	for i, row := range data {
		if tsIdx >= len(row) {
			return nil, fmt.Errorf("row %d has no timestamp cell", i+2)
		}
		ts, err := parseTimestamp(strings.TrimSpace(row[tsIdx]), opts.TimestampFormat)
		if err != nil {
			return nil, fmt.Errorf("row %d: %v", i+2, err)
		}
		timestamps[i] = ts
	}

	columns := make(map[string][]float64)
	for c, name := range header {
		if c == tsIdx || strings.TrimSpace(name) == "" {
			continue
		}

		col := make([]float64, len(data))
		numeric := true
		for i, row := range data {
			cell := ""
			if c < len(row) {
				cell = strings.TrimSpace(row[c])
			}
			if cell == "" {
				col[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
			if err != nil {
				numeric = false
				break
			}
			col[i] = v
		}
		if numeric {
			columns[name] = col
		}
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("no numeric columns found")
	}

	return New(timestamps, columns)
}

// parseTimestamp parses a cell with the configured layout, the known layouts,
// or as unix seconds.
func parseTimestamp(cell, layout string) (time.Time, error) {
	if cell == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if layout != "" {
		ts, err := time.Parse(layout, cell)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q does not match layout %q", cell, layout)
		}
		return ts, nil
	}

	for _, l := range timestampLayouts {
		if ts, err := time.Parse(l, cell); err == nil {
			return ts, nil
		}
	}
	if secs, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", cell)
}
