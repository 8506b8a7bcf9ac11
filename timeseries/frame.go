package timeseries

import (
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/demandcast/demandcast/pkg/errors"
)

// Row is one (entity, day) feature vector plus its target. Values are aligned
// with the owning frame's FeatureNames.
type Row struct {
	Entity EntityKey
	Date   time.Time
	Target float64
	Values []float64
}

// Frame is an ordered feature matrix: rows sorted by entity then date, one
// row per (entity, day). Feature order is part of the frame's schema and must
// match the schema a model was trained with before prediction or attribution.
type Frame struct {
	FeatureNames []string
	Rows         []Row
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// FeatureIndex returns the column index of a feature name, or -1.
func (f *Frame) FeatureIndex(name string) int {
	for i, n := range f.FeatureNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Matrix copies the frame into a dense design matrix.
func (f *Frame) Matrix() *mat.Dense {
	if len(f.Rows) == 0 {
		return &mat.Dense{}
	}
	x := mat.NewDense(len(f.Rows), len(f.FeatureNames), nil)
	for i, row := range f.Rows {
		x.SetRow(i, row.Values)
	}
	return x
}

// Targets copies the frame's targets into a column matrix.
func (f *Frame) Targets() *mat.Dense {
	y := mat.NewDense(len(f.Rows), 1, nil)
	for i, row := range f.Rows {
		y.Set(i, 0, row.Target)
	}
	return y
}

// Filter returns a new frame containing the rows keep reports true for.
// Row value slices are shared with the source frame; frames are read-only
// after construction so sharing is safe.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	out := &Frame{FeatureNames: f.FeatureNames}
	for _, row := range f.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Between returns the rows with from <= date <= to.
func (f *Frame) Between(from, to time.Time) *Frame {
	from, to = Day(from), Day(to)
	return f.Filter(func(r Row) bool {
		return !r.Date.Before(from) && !r.Date.After(to)
	})
}

// Clone deep-copies the frame, including row value slices.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		FeatureNames: append([]string(nil), f.FeatureNames...),
		Rows:         make([]Row, len(f.Rows)),
	}
	for i, row := range f.Rows {
		out.Rows[i] = Row{
			Entity: row.Entity,
			Date:   row.Date,
			Target: row.Target,
			Values: append([]float64(nil), row.Values...),
		}
	}
	return out
}

// ValidateSchema checks that the frame's feature names exactly match an
// expected schema, in order.
func (f *Frame) ValidateSchema(op string, expected []string) error {
	if len(f.FeatureNames) != len(expected) {
		return errors.NewSchemaError(op, expected, f.FeatureNames, "feature count differs")
	}
	for i, name := range expected {
		if f.FeatureNames[i] != name {
			return errors.NewSchemaError(op, expected, f.FeatureNames,
				"feature "+name+" expected at position "+strconv.Itoa(i)+", found "+f.FeatureNames[i])
		}
	}
	return nil
}
