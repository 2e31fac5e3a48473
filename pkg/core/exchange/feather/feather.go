// Package feather moves data frames and matrices across the kernel
// boundary as Arrow IPC files, the format R's arrow::write_feather and
// read_feather speak.
package feather

import (
	"fmt"
	"os"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/polyglotlab/sosr/pkg/core/exchange/frame"
)

// Store writes and reads frame payloads under one temp directory.
type Store struct {
	dir  string
	pool memory.Allocator
}

func New(dir string) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Store{dir: dir, pool: memory.NewGoAllocator()}
}

// WriteFrame serializes df into a feather file and returns its path.
// The row index is not written, it travels inside the R expression.
func (s *Store) WriteFrame(df *frame.DataFrame) (string, error) {
	fields := make([]arrow.Field, len(df.Cols))
	for i, col := range df.Cols {
		fields[i] = arrow.Field{Name: col.Name, Type: arrowType(col.Kind), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(s.pool, schema)
	defer b.Release()

	for j, col := range df.Cols {
		for i := 0; i < col.Len(); i++ {
			if !col.IsValid(i) {
				b.Field(j).AppendNull()
				continue
			}
			switch col.Kind {
			case frame.KindBool:
				b.Field(j).(*array.BooleanBuilder).Append(col.Bools[i])
			case frame.KindInt:
				b.Field(j).(*array.Int64Builder).Append(col.Ints[i])
			case frame.KindFloat:
				b.Field(j).(*array.Float64Builder).Append(col.Floats[i])
			case frame.KindString:
				b.Field(j).(*array.StringBuilder).Append(col.Strings[i])
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	return s.writeRecord(schema, rec)
}

// WriteMatrix serializes m column by column, the way a matrix wrapped in
// a data frame crosses to R before data.matrix() restores it.
func (s *Store) WriteMatrix(m *frame.Matrix) (string, error) {
	fields := make([]arrow.Field, m.Cols)
	for j := range fields {
		fields[j] = arrow.Field{Name: "V" + strconv.Itoa(j+1), Type: arrow.PrimitiveTypes.Float64, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(s.pool, schema)
	defer b.Release()

	for j := 0; j < m.Cols; j++ {
		builder := b.Field(j).(*array.Float64Builder)
		for i := 0; i < m.Rows; i++ {
			builder.Append(m.At(i, j))
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	return s.writeRecord(schema, rec)
}

func (s *Store) writeRecord(schema *arrow.Schema, rec arrow.Record) (string, error) {
	f, err := os.CreateTemp(s.dir, "sosr-*.feather")
	if err != nil {
		return "", err
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(s.pool))
	if err != nil {
		return "", err
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// ReadFrame loads a feather file written by R into a DataFrame.
func (s *Store) ReadFrame(path string) (*frame.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(s.pool))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	schema := r.Schema()
	cols := make([]*frame.Column, len(schema.Fields()))

	for n := 0; n < r.NumRecords(); n++ {
		rec, err := r.Record(n)
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(rec.NumCols()); j++ {
			col, err := appendColumn(cols[j], schema.Field(j).Name, rec.Column(j))
			if err != nil {
				return nil, err
			}
			cols[j] = col
		}
	}

	// empty file still yields typed empty columns
	for j, col := range cols {
		if col == nil {
			empty, err := appendColumn(nil, schema.Field(j).Name, emptyArray(s.pool, schema.Field(j).Type))
			if err != nil {
				return nil, err
			}
			cols[j] = empty
		}
	}

	return &frame.DataFrame{Cols: cols}, nil
}

func arrowType(k frame.Kind) arrow.DataType {
	switch k {
	case frame.KindBool:
		return arrow.FixedWidthTypes.Boolean
	case frame.KindInt:
		return arrow.PrimitiveTypes.Int64
	case frame.KindFloat:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

func emptyArray(pool memory.Allocator, dt arrow.DataType) arrow.Array {
	b := array.NewBuilder(pool, dt)
	defer b.Release()
	return b.NewArray()
}

// appendColumn folds one record chunk into the accumulated column,
// normalizing the width and dictionary encodings R may have used.
func appendColumn(col *frame.Column, name string, arr arrow.Array) (*frame.Column, error) {
	n := arr.Len()

	switch a := arr.(type) {
	case *array.Boolean:
		if col == nil {
			col = frame.NewBoolColumn(name, make([]bool, 0, n), nil)
		}
		if col.Valid == nil {
			col.Valid = allValid(col.Len())
		}
		for i := 0; i < n; i++ {
			col.Bools = append(col.Bools, a.IsValid(i) && a.Value(i))
			col.Valid = append(col.Valid, a.IsValid(i))
		}
		return col, nil
	case *array.Int8:
		return appendInts(col, name, n, a, func(i int) int64 { return int64(a.Value(i)) })
	case *array.Int16:
		return appendInts(col, name, n, a, func(i int) int64 { return int64(a.Value(i)) })
	case *array.Int32:
		return appendInts(col, name, n, a, func(i int) int64 { return int64(a.Value(i)) })
	case *array.Int64:
		return appendInts(col, name, n, a, a.Value)
	case *array.Uint8:
		return appendInts(col, name, n, a, func(i int) int64 { return int64(a.Value(i)) })
	case *array.Uint16:
		return appendInts(col, name, n, a, func(i int) int64 { return int64(a.Value(i)) })
	case *array.Uint32:
		return appendInts(col, name, n, a, func(i int) int64 { return int64(a.Value(i)) })
	case *array.Float32:
		return appendFloats(col, name, n, a, func(i int) float64 { return float64(a.Value(i)) })
	case *array.Float64:
		return appendFloats(col, name, n, a, a.Value)
	case *array.String:
		return appendStrings(col, name, n, a, a.Value)
	case *array.LargeString:
		return appendStrings(col, name, n, a, a.Value)
	case *array.Dictionary:
		// R factors arrive dictionary-encoded
		dict, ok := a.Dictionary().(*array.String)
		if !ok {
			return nil, fmt.Errorf("unsupported dictionary value type %s", a.Dictionary().DataType())
		}
		return appendStrings(col, name, n, a, func(i int) string {
			return dict.Value(a.GetValueIndex(i))
		})
	}
	return nil, fmt.Errorf("unsupported feather column type %s", arr.DataType())
}

func appendInts(col *frame.Column, name string, n int, arr arrow.Array, value func(int) int64) (*frame.Column, error) {
	if col == nil {
		col = frame.NewIntColumn(name, make([]int64, 0, n), nil)
	}
	if col.Valid == nil {
		col.Valid = allValid(col.Len())
	}
	for i := 0; i < n; i++ {
		if arr.IsValid(i) {
			col.Ints = append(col.Ints, value(i))
		} else {
			col.Ints = append(col.Ints, 0)
		}
		col.Valid = append(col.Valid, arr.IsValid(i))
	}
	return col, nil
}

func appendFloats(col *frame.Column, name string, n int, arr arrow.Array, value func(int) float64) (*frame.Column, error) {
	if col == nil {
		col = frame.NewFloatColumn(name, make([]float64, 0, n), nil)
	}
	if col.Valid == nil {
		col.Valid = allValid(col.Len())
	}
	for i := 0; i < n; i++ {
		if arr.IsValid(i) {
			col.Floats = append(col.Floats, value(i))
		} else {
			col.Floats = append(col.Floats, 0)
		}
		col.Valid = append(col.Valid, arr.IsValid(i))
	}
	return col, nil
}

func appendStrings(col *frame.Column, name string, n int, arr arrow.Array, value func(int) string) (*frame.Column, error) {
	if col == nil {
		col = frame.NewStringColumn(name, make([]string, 0, n), nil)
	}
	if col.Valid == nil {
		col.Valid = allValid(col.Len())
	}
	for i := 0; i < n; i++ {
		if arr.IsValid(i) {
			col.Strings = append(col.Strings, value(i))
		} else {
			col.Strings = append(col.Strings, "")
		}
		col.Valid = append(col.Valid, arr.IsValid(i))
	}
	return col, nil
}

func allValid(n int) []bool {
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}
