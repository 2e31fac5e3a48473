// Package rexpr converts host values into R expressions that the IRkernel
// evaluates to materialize a variable on the R side.
package rexpr

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/polyglotlab/sosr/pkg/common/code"
	"github.com/polyglotlab/sosr/pkg/core/exchange/frame"
)

// FrameWriter hands data frames and matrices to R through feather files
// and returns the path the R side should read.
type FrameWriter interface {
	WriteFrame(df *frame.DataFrame) (string, error)
	WriteMatrix(m *frame.Matrix) (string, error)
}

// Encoder builds R expressions. Warnings raised while encoding are
// deduplicated and kept until collected, the way repeated unsupported
// values should surface only once per transfer.
type Encoder struct {
	frames   FrameWriter
	warnSeen map[string]struct{}
	warnings []string
}

func New(frames FrameWriter) *Encoder {
	return &Encoder{
		frames:   frames,
		warnSeen: map[string]struct{}{},
	}
}

// Warnings drains the warnings accumulated so far.
func (e *Encoder) Warnings() []string {
	w := e.warnings
	e.warnings = nil
	e.warnSeen = map[string]struct{}{}
	return w
}

func (e *Encoder) warn(msg string) {
	if _, ok := e.warnSeen[msg]; ok {
		return
	}
	e.warnSeen[msg] = struct{}{}
	e.warnings = append(e.warnings, msg)
}

// Encode renders v as an R expression.
func (e *Encoder) Encode(v any) (string, error) {
	return e.encode(v, nil)
}

func (e *Encoder) encode(v any, processed map[uintptr]struct{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(val), nil
	case int8, int16, int32, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float32:
		return e.encodeFloat(float64(val)), nil
	case float64:
		return e.encodeFloat(val), nil
	case complex64:
		return encodeComplex(complex128(val)), nil
	case complex128:
		return encodeComplex(val), nil
	case string:
		return Quote(val), nil
	case *frame.Series:
		return e.encodeSeries(val, processed)
	case *frame.NDArray:
		return e.encodeArray(val, processed)
	case *frame.Matrix:
		return e.encodeMatrix(val)
	case *frame.DataFrame:
		return e.encodeFrame(val)
	case map[string]any:
		return e.encodeMap(val, processed)
	case []any:
		return e.encodeSlice(val, processed)
	}

	// typed slices arrive from callers that know their element type
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return e.encodeSlice(items, processed)
	}

	e.warn(fmt.Sprintf("Unsupported datatype %T. Variable is set to NULL", v))
	return "NULL", nil
}

func (e *Encoder) encodeFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

func encodeComplex(c complex128) string {
	return fmt.Sprintf("complex(real = %s, imaginary = %s)",
		strconv.FormatFloat(real(c), 'g', -1, 64),
		strconv.FormatFloat(imag(c), 'g', -1, 64))
}

func (e *Encoder) encodeSlice(items []any, processed map[uintptr]struct{}) (string, error) {
	if len(items) == 0 {
		return "c()", nil
	}

	parts := make([]string, len(items))
	for i, item := range items {
		p, err := e.encode(item, processed)
		if err != nil {
			return "", err
		}
		parts[i] = p
	}

	// homogeneous values become an R vector, mixed values an R list
	if homogeneous(items) {
		return "c(" + strings.Join(parts, ",") + ")", nil
	}
	return "list(" + strings.Join(parts, ",") + ")", nil
}

func (e *Encoder) encodeMap(m map[string]any, processed map[uintptr]struct{}) (string, error) {
	ptr := reflect.ValueOf(m).Pointer()
	if processed == nil {
		processed = map[uintptr]struct{}{}
	} else if _, ok := processed[ptr]; ok {
		return "NULL", nil
	}
	processed[ptr] = struct{}{}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		p, err := e.encode(m[k], processed)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%s=%s", RName(k), p))
	}
	return "list(" + strings.Join(parts, ",") + ")", nil
}

func (e *Encoder) encodeSeries(s *frame.Series, processed map[uintptr]struct{}) (string, error) {
	values, err := e.encodeSlice(s.Values, processed)
	if err != nil {
		return "", err
	}
	index, err := e.encodeSlice(s.Index, processed)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("setNames(%s,%s)", values, index), nil
}

func (e *Encoder) encodeArray(a *frame.NDArray, processed map[uintptr]struct{}) (string, error) {
	if len(a.Shape) <= 1 {
		inner, err := e.encodeSlice(a.Data, processed)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("array(%s)", inner), nil
	}

	// R fills arrays column-major, so the last two axes are swapped before
	// flattening and the dim vector is reversed to match.
	swapped := a.SwapLastAxes()
	parts := make([]string, len(swapped.Data))
	for i, item := range swapped.Data {
		p, err := e.encode(item, processed)
		if err != nil {
			return "", err
		}
		parts[i] = p
	}
	dims := make([]string, len(swapped.Shape))
	for i, d := range swapped.Shape {
		dims[i] = strconv.Itoa(d)
	}
	return fmt.Sprintf("array(c(%s), dim=rev(c(%s)))",
		strings.Join(parts, ","), strings.Join(dims, ",")), nil
}

func (e *Encoder) encodeMatrix(m *frame.Matrix) (string, error) {
	if e.frames == nil {
		return "", code.FeatherErr.WithMsg("no frame writer configured")
	}
	path, err := e.frames.WriteMatrix(m)
	if err != nil {
		return "", code.FeatherErr.WithMsgf("write matrix fail: %+v", err)
	}
	return fmt.Sprintf("data.matrix(..read.feather(%s))", Quote(path)), nil
}

func (e *Encoder) encodeFrame(df *frame.DataFrame) (string, error) {
	if e.frames == nil {
		return "", code.FeatherErr.WithMsg("no frame writer configured")
	}

	index := "NULL"
	if df.Index != nil {
		if df.HasUniqueIndex() {
			parts := make([]string, len(df.Index))
			for i, v := range df.Index {
				parts[i] = Quote(v)
			}
			index = "c(" + strings.Join(parts, ",") + ")"
		} else {
			e.warn("Index is ignored because R dataframe does not accept non-unique row names.")
		}
	}

	path, err := e.frames.WriteFrame(df)
	if err != nil {
		return "", code.FeatherErr.WithMsgf("write dataframe fail: %+v", err)
	}
	return fmt.Sprintf("..read.feather(%s, index=%s)", Quote(path), index), nil
}

// homogeneous reports whether all items share one type, with ints and
// floats counting as the same numeric type.
func homogeneous(items []any) bool {
	if len(items) == 0 {
		return true
	}
	if isNumeric(items[0]) {
		for _, v := range items[1:] {
			if !isNumeric(v) {
				return false
			}
		}
		return true
	}
	first := reflect.TypeOf(items[0])
	for _, v := range items[1:] {
		if reflect.TypeOf(v) != first {
			return false
		}
	}
	return true
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// RName makes a host dict key a valid R list name. Names are unicode,
// any letter may lead and digits may follow.
func RName(name string) string {
	rs := []rune(name)
	if len(rs) > 0 && allLetters(rs) {
		return name
	}
	if len(rs) == 0 || !unicode.IsLetter(rs[0]) {
		rs = append([]rune{'X'}, rs...)
	}
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			rs[i] = '_'
		}
	}
	return string(rs)
}

func allLetters(rs []rune) bool {
	for _, r := range rs {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Quote renders s as a single-quoted R string literal.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
