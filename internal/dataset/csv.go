package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jengzang/photomap-backend-go/internal/models"
)

var errNonFinite = errors.New("coordinate is not a finite number")

// LoadCSV reads a cleaned photo CSV. limit > 0 stops after that many rows.
// Missing required columns are reported before any row is parsed.
func LoadCSV(path string, limit int) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	return ReadCSV(file, limit)
}

// ReadCSV parses a photo table from r.
func ReadCSV(r io.Reader, limit int) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	// Case-insensitive column mapping
	columnMap := make(map[string]int, len(header))
	columns := make([]string, 0, len(header))
	for i, col := range header {
		name := normalizeColumn(col)
		columnMap[name] = i
		columns = append(columns, name)
	}

	ds := &Dataset{Columns: columns}
	if err := ds.RequireColumns(RequiredColumns...); err != nil {
		return nil, err
	}

	line := 1
	for limit <= 0 || len(ds.Records) < limit {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		photo, err := parseRow(record, columnMap)
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV line %d: %w", line, err)
		}
		ds.Records = append(ds.Records, photo)
	}

	return ds, nil
}

func parseRow(record []string, columnMap map[string]int) (models.PhotoRecord, error) {
	field := func(name string) string {
		idx, ok := columnMap[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	lat, err := parseCoordinate(field(ColLat))
	if err != nil {
		return models.PhotoRecord{}, fmt.Errorf("invalid lat %q: %w", field(ColLat), err)
	}
	lon, err := parseCoordinate(field(ColLong))
	if err != nil {
		return models.PhotoRecord{}, fmt.Errorf("invalid long %q: %w", field(ColLong), err)
	}

	return models.PhotoRecord{
		ID:        trimFloatSuffix(field(ColID)),
		User:      field(ColUser),
		Lat:       lat,
		Lon:       lon,
		Tags:      nullable(field(ColTags)),
		Title:     nullable(field(ColTitle)),
		DateTaken: nullable(field(ColDateTaken)),
	}, nil
}

// parseCoordinate rejects NaN and infinities, which ParseFloat accepts.
func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNonFinite
	}
	return v, nil
}

// nullable maps the textual null markers written by dataframe exports to "".
func nullable(s string) string {
	switch strings.ToLower(s) {
	case "nan", "null", "none":
		return ""
	}
	return s
}

// trimFloatSuffix turns ids exported as floats ("123.0") back into integers.
func trimFloatSuffix(id string) string {
	return strings.TrimSuffix(id, ".0")
}
