package model

import "fmt"

// Frame is a dense numeric table with named columns.
type Frame struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

func (f Frame) Shape() (rows, cols int) {
	return len(f.Rows), len(f.Columns)
}

// Validate reports empty frames and rows whose width differs from the
// column count.
func (f Frame) Validate() error {
	if len(f.Columns) == 0 {
		return fmt.Errorf("frame has no columns")
	}
	if len(f.Rows) == 0 {
		return fmt.Errorf("frame has no rows")
	}
	for i, row := range f.Rows {
		if len(row) != len(f.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(f.Columns))
		}
	}
	return nil
}

func (f Frame) Column(j int) []float64 {
	out := make([]float64, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[j]
	}
	return out
}

func (f Frame) ColumnIndex(name string) int {
	for j, c := range f.Columns {
		if c == name {
			return j
		}
	}
	return -1
}

// Select returns a frame holding only the given columns, in the given order.
func (f Frame) Select(cols []int) Frame {
	out := Frame{Columns: make([]string, len(cols)), Rows: make([][]float64, len(f.Rows))}
	for k, j := range cols {
		out.Columns[k] = f.Columns[j]
	}
	for i, row := range f.Rows {
		r := make([]float64, len(cols))
		for k, j := range cols {
			r[k] = row[j]
		}
		out.Rows[i] = r
	}
	return out
}

// Labels are binary class labels, 1 being the positive class.
type Labels []int
