// Package frame provides an immutable columnar view of tabular data.
//
// A Frame has a fixed row count and an ordered set of named columns. Columns
// hold raw text, one float64 per row, or a fixed-width float64 vector per row
// (stored as a gonum dense matrix). Frames never change after construction:
// With returns a new frame that shares the untouched columns.
package frame

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// Kind describes the storage of a column.
type Kind int

const (
	// Text columns hold one string per row.
	Text Kind = iota
	// Scalar columns hold one float64 per row.
	Scalar
	// Vector columns hold a fixed-width float64 vector per row.
	Vector
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Scalar:
		return "scalar"
	case Vector:
		return "vector"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is a named, typed column. Exactly one of the storage fields is set,
// matching Kind.
type Column struct {
	Name   string
	Kind   Kind
	text   []string
	scalar []float64
	vector *mat.Dense
}

// TextColumn creates a text column. The slice is not copied.
func TextColumn(name string, values []string) *Column {
	return &Column{Name: name, Kind: Text, text: values}
}

// ScalarColumn creates a scalar column. The slice is not copied.
func ScalarColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Scalar, scalar: values}
}

// VectorColumn creates a vector column from an n×d matrix.
func VectorColumn(name string, values *mat.Dense) *Column {
	return &Column{Name: name, Kind: Vector, vector: values}
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case Text:
		return len(c.text)
	case Scalar:
		return len(c.scalar)
	case Vector:
		if c.vector == nil {
			return 0
		}
		r, _ := c.vector.Dims()
		return r
	}
	return 0
}

// Width returns the number of float64 values each row contributes to a
// feature vector: 1 for scalars, d for vectors, 0 for text.
func (c *Column) Width() int {
	switch c.Kind {
	case Scalar:
		return 1
	case Vector:
		if c.vector == nil {
			return 0
		}
		_, d := c.vector.Dims()
		return d
	}
	return 0
}

// Texts returns the backing values of a text column. Callers must not modify them.
func (c *Column) Texts() []string { return c.text }

// Scalars returns the backing values of a scalar column. Callers must not modify them.
func (c *Column) Scalars() []float64 { return c.scalar }

// Vectors returns the backing matrix of a vector column. Callers must not modify it.
func (c *Column) Vectors() *mat.Dense { return c.vector }

// Frame is an immutable table of equally long columns.
type Frame struct {
	rows    int
	order   []string
	columns map[string]*Column
}

// New builds a frame from columns. All columns must have the same length and
// distinct names.
func New(columns ...*Column) (*Frame, error) {
	f := &Frame{columns: make(map[string]*Column, len(columns))}
	for i, c := range columns {
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, errors.NewDimensionError("frame.New("+c.Name+")", f.rows, c.Len(), 0)
		}
		if _, dup := f.columns[c.Name]; dup {
			return nil, errors.NewValueError("frame.New", fmt.Sprintf("duplicate column %q", c.Name))
		}
		f.order = append(f.order, c.Name)
		f.columns[c.Name] = c
	}
	return f, nil
}

// Rows returns the number of rows.
func (f *Frame) Rows() int { return f.rows }

// Names returns the column names in insertion order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether the frame contains a column named name.
func (f *Frame) Has(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, error) {
	c, ok := f.columns[name]
	if !ok {
		return nil, errors.NewValueError("frame.Column", fmt.Sprintf("no column named %q (have %v)", name, f.order))
	}
	return c, nil
}

// ColumnOf returns the named column and checks its kind.
func (f *Frame) ColumnOf(name string, kind Kind) (*Column, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != kind {
		return nil, errors.NewValueError("frame.ColumnOf", fmt.Sprintf("column %q is %s, want %s", name, c.Kind, kind))
	}
	return c, nil
}

// With returns a new frame with c added, or replacing an existing column of
// the same name in place.
func (f *Frame) With(c *Column) (*Frame, error) {
	if len(f.order) > 0 && c.Len() != f.rows {
		return nil, errors.NewDimensionError("frame.With("+c.Name+")", f.rows, c.Len(), 0)
	}
	next := &Frame{
		rows:    f.rows,
		order:   make([]string, len(f.order), len(f.order)+1),
		columns: make(map[string]*Column, len(f.columns)+1),
	}
	if len(f.order) == 0 {
		next.rows = c.Len()
	}
	copy(next.order, f.order)
	for k, v := range f.columns {
		next.columns[k] = v
	}
	if _, exists := next.columns[c.Name]; !exists {
		next.order = append(next.order, c.Name)
	}
	next.columns[c.Name] = c
	return next, nil
}
