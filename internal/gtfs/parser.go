package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
)

// ErrMissingColumn is returned when a file lacks a column marked required.
var ErrMissingColumn = errors.New("missing required column")

// ParseZip extracts routes, stops and directions from a GTFS zip archive.
// Other files are ignored. Rows with an empty required field are skipped.
func ParseZip(path string, logger *slog.Logger) (*Feed, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	feed := &Feed{}
	skipped := make(map[string]int)

	for _, f := range r.File {
		var n int
		switch f.Name {
		case "routes.txt":
			feed.Routes, n, err = readTable[Route](f)
		case "stops.txt":
			feed.Stops, n, err = readTable[Stop](f)
		case "directions.txt":
			feed.Directions, n, err = readTable[Direction](f)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f.Name, err)
		}
		if n > 0 {
			skipped[f.Name] = n
		}
	}

	if len(feed.Routes) == 0 || len(feed.Stops) == 0 {
		return nil, fmt.Errorf("zip has no routes.txt or stops.txt rows")
	}
	for name, n := range skipped {
		logger.Warn("skipped incomplete rows", "file", name, "count", n)
	}

	logger.Info("GTFS feed parsed",
		"routes", len(feed.Routes),
		"stops", len(feed.Stops),
		"directions", len(feed.Directions),
	)
	return feed, nil
}

// column binds a CSV column to a string field of T.
type column struct {
	index    int // position in the header
	field    int
	required bool
}

// readTable decodes one CSV file into []T using the csv struct tags of T. A
// tag of the form `csv:"name,required"` makes the column mandatory in the
// header and non-empty in every kept row. It returns the number of rows
// skipped for an empty required field.
func readTable[T any](f *zip.File) ([]T, int, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, 0, fmt.Errorf("open file: %w", err)
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	cols, err := bindColumns[T](header)
	if err != nil {
		return nil, 0, err
	}

	var (
		out     []T
		skipped int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read record: %w", err)
		}
		row, ok := decodeRow[T](record, cols)
		if !ok {
			skipped++
			continue
		}
		out = append(out, row)
	}
	return out, skipped, nil
}

func bindColumns[T any](header []string) ([]column, error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()

	positions := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\xef\xbb\xbf")
		}
		positions[strings.TrimSpace(name)] = i
	}

	var cols []column
	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("csv")
		if tag == "" {
			continue
		}
		name, opt, _ := strings.Cut(tag, ",")
		required := opt == "required"

		pos, ok := positions[name]
		if !ok {
			if required {
				return nil, fmt.Errorf("%w %s", ErrMissingColumn, name)
			}
			continue
		}
		cols = append(cols, column{index: pos, field: i, required: required})
	}
	return cols, nil
}

func decodeRow[T any](record []string, cols []column) (T, bool) {
	var t T
	v := reflect.ValueOf(&t).Elem()
	for _, c := range cols {
		var val string
		if c.index < len(record) {
			val = strings.TrimSpace(record[c.index])
		}
		if c.required && val == "" {
			return t, false
		}
		v.Field(c.field).SetString(val)
	}
	return t, true
}
