// Command pivotcsv reshapes a long-form price file (one row per ticker and
// date) into the wide form the dashboard serves (one timestamp column plus
// one column per ticker). When several rows share a (ticker, date) cell the
// minimum value wins.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"tagboard/internal/config"
	"tagboard/internal/infrastructure"
)

func main() {
	in := flag.String("in", "", "input file, long form (csv or xlsx)")
	out := flag.String("out", "", "output csv file, wide form")
	indexCol := flag.String("index", "date", "name of the date column")
	keyCol := flag.String("column", "ticker", "name of the column whose values become output columns")
	valueCol := flag.String("value", "close", "name of the value column")
	sheet := flag.String("sheet", "", "worksheet name for xlsx input (defaults to the first sheet)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		logger = slog.Default()
	}

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: pivotcsv -in prices.csv -out wide.csv [-index date -column ticker -value close]")
		os.Exit(2)
	}

	logger.Info("Starting pivot",
		slog.String("input", *in),
		slog.String("output", *out),
		slog.String("index", *indexCol),
		slog.String("column", *keyCol),
		slog.String("value", *valueCol))

	rows, err := readRows(*in, *sheet)
	if err != nil {
		logger.Error("Cannot read input", slog.String("error", err.Error()))
		os.Exit(1)
	}

	table, err := pivot(rows, *indexCol, *keyCol, *valueCol)
	if err != nil {
		logger.Error("Pivot failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		logger.Error("Cannot create output directory", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := writeCSV(*out, table); err != nil {
		logger.Error("Cannot write output", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Pivot complete",
		slog.Int("rows", len(table)-1),
		slog.Int("columns", len(table[0])-1))
}

func readRows(path, sheet string) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
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
		return f.GetRows(sheet)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// pivot turns [(date, ticker, value)] rows into a wide table sorted by date
// and ticker, with empty cells where a ticker has no value for a date.
func pivot(rows [][]string, indexCol, keyCol, valueCol string) ([][]string, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("input has no data rows")
	}

	header := rows[0]
	idxI, keyI, valI := -1, -1, -1
	for i, name := range header {
		n := strings.TrimSpace(name)
		if strings.EqualFold(n, indexCol) {
			idxI = i
		}
		if strings.EqualFold(n, keyCol) {
			keyI = i
		}
		if strings.EqualFold(n, valueCol) {
			valI = i
		}
	}
	if idxI < 0 || keyI < 0 || valI < 0 {
		return nil, fmt.Errorf("input is missing one of the columns %q, %q, %q", indexCol, keyCol, valueCol)
	}

	cells := make(map[string]map[string]float64)
	keySet := make(map[string]bool)

	for _, row := range rows[1:] {
		if len(row) <= idxI || len(row) <= keyI || len(row) <= valI {
			continue
		}
		date := strings.TrimSpace(row[idxI])
		key := strings.TrimSpace(row[keyI])
		if date == "" || key == "" {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(row[valI]), ",", ""), 64)
		if err != nil {
			continue
		}

		if cells[date] == nil {
			cells[date] = make(map[string]float64)
		}
		if prev, ok := cells[date][key]; !ok || value < prev {
			cells[date][key] = value
		}
		keySet[key] = true
	}

	if len(cells) == 0 {
		return nil, fmt.Errorf("no parsable data rows")
	}

	dates := make([]string, 0, len(cells))
	for d := range cells {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := make([][]string, 0, len(dates)+1)
	table = append(table, append([]string{indexCol}, keys...))
	for _, d := range dates {
		row := make([]string, 0, len(keys)+1)
		row = append(row, d)
		for _, k := range keys {
			if v, ok := cells[d][k]; ok {
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		table = append(table, row)
	}

	return table, nil
}

func writeCSV(path string, table [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(table); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
