// Package frame holds the columnar containers that cross the R boundary:
// named vectors, n-dimensional arrays, numeric matrices and data frames.
// Columns carry a validity mask so missing values survive the crossing.
package frame

import "fmt"

type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Series is a named vector: values aligned with an index, the R
// setNames(c(...), c(...)) shape.
type Series struct {
	Values []any
	Index  []any
}

func NewSeries(values, index []any) *Series {
	return &Series{Values: values, Index: index}
}

func (s *Series) Len() int {
	return len(s.Values)
}

// NDArray is an n-dimensional array with row-major flat data.
type NDArray struct {
	Shape []int
	Data  []any
}

func NewNDArray(shape []int, data []any) *NDArray {
	return &NDArray{Shape: shape, Data: data}
}

func (a *NDArray) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// SwapLastAxes returns a copy of a with its trailing two axes exchanged,
// flattened row-major. Arrays with fewer than two axes come back as-is.
// Exchanging a value with R applies this twice, once per direction, because
// R fills arrays column-major.
func (a *NDArray) SwapLastAxes() *NDArray {
	n := len(a.Shape)
	if n < 2 {
		return a
	}

	shape := make([]int, n)
	copy(shape, a.Shape)
	shape[n-2], shape[n-1] = shape[n-1], shape[n-2]

	// row-major strides of the original array
	strides := make([]int, n)
	s := 1
	for i := n - 1; i >= 0; i-- {
		strides[i] = s
		s *= a.Shape[i]
	}
	// view strides with the last two axes exchanged
	view := make([]int, n)
	copy(view, strides)
	view[n-2], view[n-1] = view[n-1], view[n-2]

	out := make([]any, len(a.Data))
	idx := make([]int, n)
	for i := range out {
		off := 0
		for d := 0; d < n; d++ {
			off += idx[d] * view[d]
		}
		out[i] = a.Data[off]
		for d := n - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return &NDArray{Shape: shape, Data: out}
}

// Matrix is a two-dimensional numeric array, row-major.
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

func NewMatrix(rows, cols int, data []float64) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: data}
}

func (m *Matrix) At(r, c int) float64 {
	return m.Data[r*m.Cols+c]
}

// Column is one typed column of a DataFrame. Valid marks present cells;
// a nil Valid slice means every cell is present.
type Column struct {
	Name    string
	Kind    Kind
	Bools   []bool
	Ints    []int64
	Floats  []float64
	Strings []string
	Valid   []bool
}

func (c *Column) Len() int {
	switch c.Kind {
	case KindBool:
		return len(c.Bools)
	case KindInt:
		return len(c.Ints)
	case KindFloat:
		return len(c.Floats)
	case KindString:
		return len(c.Strings)
	}
	return 0
}

func (c *Column) IsValid(i int) bool {
	return c.Valid == nil || c.Valid[i]
}

// Value returns the cell as a host scalar, nil for a missing cell.
func (c *Column) Value(i int) any {
	if !c.IsValid(i) {
		return nil
	}
	switch c.Kind {
	case KindBool:
		return c.Bools[i]
	case KindInt:
		return c.Ints[i]
	case KindFloat:
		return c.Floats[i]
	case KindString:
		return c.Strings[i]
	}
	return nil
}

func NewBoolColumn(name string, values []bool, valid []bool) *Column {
	return &Column{Name: name, Kind: KindBool, Bools: values, Valid: valid}
}

func NewIntColumn(name string, values []int64, valid []bool) *Column {
	return &Column{Name: name, Kind: KindInt, Ints: values, Valid: valid}
}

func NewFloatColumn(name string, values []float64, valid []bool) *Column {
	return &Column{Name: name, Kind: KindFloat, Floats: values, Valid: valid}
}

func NewStringColumn(name string, values []string, valid []bool) *Column {
	return &Column{Name: name, Kind: KindString, Strings: values, Valid: valid}
}

// DataFrame is an ordered set of equally sized columns plus an optional
// row index. A nil Index is the default positional index, which R renders
// as row numbers.
type DataFrame struct {
	Cols  []*Column
	Index []string
}

func NewDataFrame(cols ...*Column) *DataFrame {
	return &DataFrame{Cols: cols}
}

func (df *DataFrame) NumRows() int {
	if len(df.Cols) == 0 {
		return 0
	}
	return df.Cols[0].Len()
}

func (df *DataFrame) NumCols() int {
	return len(df.Cols)
}

func (df *DataFrame) Column(name string) *Column {
	for _, c := range df.Cols {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// HasUniqueIndex reports whether the row index can be used as R row
// names, which must be unique.
func (df *DataFrame) HasUniqueIndex() bool {
	if df.Index == nil {
		return false
	}
	seen := make(map[string]struct{}, len(df.Index))
	for _, v := range df.Index {
		if _, ok := seen[v]; ok {
			return false
		}
		seen[v] = struct{}{}
	}
	return true
}
