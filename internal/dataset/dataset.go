package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jengzang/photomap-backend-go/internal/models"
)

// Column names of the cleaned photo table.
const (
	ColLat       = "lat"
	ColLong      = "long"
	ColTags      = "tags"
	ColTitle     = "title"
	ColUser      = "user"
	ColID        = "id"
	ColDateTaken = "date_taken"
)

// RequiredColumns must be present before any clustering runs.
var RequiredColumns = []string{ColLat, ColLong, ColTags, ColUser, ColID}

// ErrMissingColumns is returned when the table lacks required columns.
var ErrMissingColumns = errors.New("missing required columns")

// Dataset is the table produced by the external cleaning step.
type Dataset struct {
	Columns []string
	Records []models.PhotoRecord
}

// New builds a dataset from already-parsed records.
func New(columns []string, records []models.PhotoRecord) *Dataset {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = normalizeColumn(c)
	}
	return &Dataset{Columns: cols, Records: records}
}

// HasColumn reports whether the column exists (case-insensitive).
func (d *Dataset) HasColumn(name string) bool {
	name = normalizeColumn(name)
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// RequireColumns fails with ErrMissingColumns naming every absent column.
func (d *Dataset) RequireColumns(names ...string) error {
	var missing []string
	for _, n := range names {
		if !d.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// Head returns a view over the first n records. n <= 0 means all records.
func (d *Dataset) Head(n int) *Dataset {
	if n <= 0 || n >= len(d.Records) {
		return d
	}
	return &Dataset{Columns: d.Columns, Records: d.Records[:n]}
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Records)
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
