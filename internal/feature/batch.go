package feature

import (
	"errors"
	"fmt"
)

// Batch is a table with the seven feature columns in Columns order and one
// row per Record.
type Batch struct {
	rows []Record
}

var (
	// ErrEmptyBatch is returned when a batch would have no rows.
	ErrEmptyBatch = errors.New("batch must have at least one row")
	// ErrUnvalidated is returned for a zero-value Record.
	ErrUnvalidated = errors.New("record was not produced by validation")
)

// NewBatch shapes records into a table. It performs no transformation.
func NewBatch(records ...Record) (Batch, error) {
	if len(records) == 0 {
		return Batch{}, ErrEmptyBatch
	}
	rows := make([]Record, len(records))
	for i, r := range records {
		if !r.valid {
			return Batch{}, fmt.Errorf("row %d: %w", i, ErrUnvalidated)
		}
		rows[i] = r
	}
	return Batch{rows: rows}, nil
}

// Len returns the number of rows.
func (b Batch) Len() int { return len(b.rows) }

// Columns returns the column names in order.
func (b Batch) Columns() []string {
	out := make([]string, len(Columns))
	copy(out, Columns)
	return out
}

// Row returns the i'th record.
func (b Batch) Row(i int) Record { return b.rows[i] }

// Strings returns a categorical column.
func (b Batch) Strings(column string) ([]string, error) {
	if IsNumeric(column) {
		return nil, fmt.Errorf("column %q is numeric", column)
	}
	out := make([]string, len(b.rows))
	for i, r := range b.rows {
		v, ok := r.categorical(column)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", column)
		}
		out[i] = v
	}
	return out, nil
}

// Floats returns a numeric column.
func (b Batch) Floats(column string) ([]float64, error) {
	if !IsNumeric(column) {
		return nil, fmt.Errorf("column %q is not numeric", column)
	}
	out := make([]float64, len(b.rows))
	for i, r := range b.rows {
		out[i], _ = r.numeric(column)
	}
	return out, nil
}
