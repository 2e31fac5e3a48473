// Package exchange carries typed host values over the bridge API. JSON
// alone erases the int/double/complex/frame distinctions both sides care
// about, so every value travels inside a kind-tagged envelope and frames
// ride along as feather attachments referenced by id.
package exchange

import (
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"

	"github.com/polyglotlab/sosr/pkg/common/code"
	"github.com/polyglotlab/sosr/pkg/common/uuid"
	"github.com/polyglotlab/sosr/pkg/core/exchange/feather"
	"github.com/polyglotlab/sosr/pkg/core/exchange/frame"
)

type Kind string

const (
	KindNull    Kind = "null"
	KindBool    Kind = "bool"
	KindInt     Kind = "int"
	KindFloat   Kind = "float"
	KindComplex Kind = "complex"
	KindString  Kind = "str"
	KindList    Kind = "list"
	KindMap     Kind = "map"
	KindSeries  Kind = "series"
	KindNDArray Kind = "ndarray"
	KindMatrix  Kind = "matrix"
	KindFrame   Kind = "frame"
)

// Value is one node of the envelope. Floats are carried as text so that
// NaN and the infinities survive JSON.
type Value struct {
	Kind    Kind             `json:"kind"`
	Bool    bool             `json:"bool,omitempty"`
	Int     int64            `json:"int,omitempty"`
	Num     string           `json:"num,omitempty"`
	Real    string           `json:"real,omitempty"`
	Imag    string           `json:"imag,omitempty"`
	Str     string           `json:"str,omitempty"`
	Items   []Value          `json:"items,omitempty"`
	Fields  map[string]Value `json:"fields,omitempty"`
	Index   []Value          `json:"index,omitempty"`
	Shape   []int            `json:"shape,omitempty"`
	Rows    int              `json:"rows,omitempty"`
	Cols    int              `json:"cols,omitempty"`
	FrameID string           `json:"frame_id,omitempty"`
	Names   []string         `json:"names,omitempty"`
}

// Vars is the request/response payload: named values plus the feather
// bytes their frame nodes reference.
type Vars struct {
	Values      map[string]Value  `json:"values"`
	Attachments map[string][]byte `json:"attachments,omitempty"`
}

// Codec encodes and decodes between the internal any representation and
// the envelope, spilling frames through a feather store.
type Codec struct {
	store *feather.Store
	atts  map[string][]byte
}

func NewCodec(store *feather.Store) *Codec {
	return &Codec{store: store, atts: map[string][]byte{}}
}

// Attachments returns the feather blobs produced by Encode calls so far.
func (c *Codec) Attachments() map[string][]byte {
	return c.atts
}

// SetAttachments seeds the blobs frame nodes will be resolved against
// during Decode.
func (c *Codec) SetAttachments(m map[string][]byte) {
	if m == nil {
		m = map[string][]byte{}
	}
	c.atts = m
}

func (c *Codec) Encode(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{Kind: KindNull}, nil
	case bool:
		return Value{Kind: KindBool, Bool: x}, nil
	case int:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int8:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int16:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int32:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int64:
		return Value{Kind: KindInt, Int: x}, nil
	case uint:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case uint8:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case uint16:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case uint32:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case uint64:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case float32:
		return Value{Kind: KindFloat, Num: formatFloat(float64(x))}, nil
	case float64:
		return Value{Kind: KindFloat, Num: formatFloat(x)}, nil
	case complex64:
		return Value{Kind: KindComplex, Real: formatFloat(float64(real(x))), Imag: formatFloat(float64(imag(x)))}, nil
	case complex128:
		return Value{Kind: KindComplex, Real: formatFloat(real(x)), Imag: formatFloat(imag(x))}, nil
	case string:
		return Value{Kind: KindString, Str: x}, nil
	case []any:
		items, err := c.encodeSlice(x)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindList, Items: items}, nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, elem := range x {
			ev, err := c.Encode(elem)
			if err != nil {
				return Value{}, err
			}
			fields[k] = ev
		}
		return Value{Kind: KindMap, Fields: fields}, nil
	case *frame.Series:
		items, err := c.encodeSlice(x.Values)
		if err != nil {
			return Value{}, err
		}
		index, err := c.encodeSlice(x.Index)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindSeries, Items: items, Index: index}, nil
	case *frame.NDArray:
		items, err := c.encodeSlice(x.Data)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindNDArray, Items: items, Shape: x.Shape}, nil
	case *frame.Matrix:
		id, err := c.attach(func() (string, error) { return c.store.WriteMatrix(x) })
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindMatrix, FrameID: id, Rows: x.Rows, Cols: x.Cols}, nil
	case *frame.DataFrame:
		id, err := c.attach(func() (string, error) { return c.store.WriteFrame(x) })
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindFrame, FrameID: id, Names: x.Index}, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return c.Encode(items)
	}
	return Value{}, code.UnsupportedTypeErr.WithMsgf("cannot envelope %T", v)
}

func (c *Codec) encodeSlice(in []any) ([]Value, error) {
	out := make([]Value, len(in))
	for i, elem := range in {
		ev, err := c.Encode(elem)
		if err != nil {
			return nil, err
		}
		out[i] = ev
	}
	return out, nil
}

func (c *Codec) attach(write func() (string, error)) (string, error) {
	path, err := write()
	if err != nil {
		return "", err
	}
	defer os.Remove(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id := uuid.NewV4().String()
	c.atts[id] = data
	return id, nil
}

func (c *Codec) Decode(v Value) (any, error) {
	switch v.Kind {
	case KindNull, "":
		return nil, nil
	case KindBool:
		return v.Bool, nil
	case KindInt:
		return v.Int, nil
	case KindFloat:
		return parseFloat(v.Num)
	case KindComplex:
		re, err := parseFloat(v.Real)
		if err != nil {
			return nil, err
		}
		im, err := parseFloat(v.Imag)
		if err != nil {
			return nil, err
		}
		return complex(re, im), nil
	case KindString:
		return v.Str, nil
	case KindList:
		return c.decodeSlice(v.Items)
	case KindMap:
		out := make(map[string]any, len(v.Fields))
		for k, ev := range v.Fields {
			dv, err := c.Decode(ev)
			if err != nil {
				return nil, err
			}
			out[k] = dv
		}
		return out, nil
	case KindSeries:
		values, err := c.decodeSlice(v.Items)
		if err != nil {
			return nil, err
		}
		index, err := c.decodeSlice(v.Index)
		if err != nil {
			return nil, err
		}
		return frame.NewSeries(values, index), nil
	case KindNDArray:
		data, err := c.decodeSlice(v.Items)
		if err != nil {
			return nil, err
		}
		return frame.NewNDArray(v.Shape, data), nil
	case KindMatrix:
		df, err := c.detach(v.FrameID)
		if err != nil {
			return nil, err
		}
		return matrixFromFrame(df, v.Rows, v.Cols)
	case KindFrame:
		df, err := c.detach(v.FrameID)
		if err != nil {
			return nil, err
		}
		df.Index = v.Names
		return df, nil
	}
	return nil, code.DecodeReprErr.WithMsgf("unknown envelope kind %q", v.Kind)
}

func (c *Codec) decodeSlice(in []Value) ([]any, error) {
	out := make([]any, len(in))
	for i, ev := range in {
		dv, err := c.Decode(ev)
		if err != nil {
			return nil, err
		}
		out[i] = dv
	}
	return out, nil
}

func (c *Codec) detach(id string) (*frame.DataFrame, error) {
	data, ok := c.atts[id]
	if !ok {
		return nil, code.DecodeReprErr.WithMsgf("missing frame attachment %s", id)
	}
	f, err := os.CreateTemp("", "sosr-att-*.feather")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return c.store.ReadFrame(path)
}

func matrixFromFrame(df *frame.DataFrame, rows, cols int) (*frame.Matrix, error) {
	if cols != df.NumCols() || rows != df.NumRows() {
		return nil, code.DecodeReprErr.WithMsgf("matrix shape %dx%d does not match attachment %dx%d",
			rows, cols, df.NumRows(), df.NumCols())
	}
	data := make([]float64, rows*cols)
	for j, col := range df.Cols {
		for i := 0; i < rows; i++ {
			if !col.IsValid(i) {
				data[i*cols+j] = math.NaN()
				continue
			}
			switch x := col.Value(i).(type) {
			case float64:
				data[i*cols+j] = x
			case int64:
				data[i*cols+j] = float64(x)
			case bool:
				if x {
					data[i*cols+j] = 1
				}
			default:
				return nil, code.DecodeReprErr.WithMsgf("matrix attachment has non-numeric column %s", col.Name)
			}
		}
	}
	return frame.NewMatrix(rows, cols, data), nil
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "Inf":
		return math.Inf(1), nil
	case "-Inf":
		return math.Inf(-1), nil
	case "":
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad float %q: %w", s, err)
	}
	return f, nil
}
