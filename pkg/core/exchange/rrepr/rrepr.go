// Package rrepr parses the literal representation the R prelude prints for
// a value into host values. The grammar is the one ..py.repr emits: scalars,
// bracketed lists, dict pairs, named series, reshaped arrays and feather
// file references for data frames and matrices.
package rrepr

import (
	"math"
	"strconv"
	"strings"

	"github.com/polyglotlab/sosr/pkg/common/code"
	"github.com/polyglotlab/sosr/pkg/core/exchange/frame"
)

// FrameReader loads the feather files the R side writes for data frames
// and matrices.
type FrameReader interface {
	ReadFrame(path string) (*frame.DataFrame, error)
}

type Decoder struct {
	frames FrameReader
}

func NewDecoder(frames FrameReader) *Decoder {
	return &Decoder{frames: frames}
}

// Decode parses one repr payload into a host value.
func (d *Decoder) Decode(text string) (any, error) {
	p := &parser{lex: newLexer(strings.TrimSpace(text)), frames: d.frames}
	if err := p.advance(); err != nil {
		return nil, err
	}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, code.DecodeReprErr.WithMsgf("trailing input %q", p.cur.text)
	}
	return v, nil
}

type parser struct {
	lex    *lexer
	cur    token
	frames FrameReader
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) expect(kind tokenKind) (token, error) {
	if p.cur.kind != kind {
		return token{}, code.DecodeReprErr.WithMsgf("unexpected token %q", p.cur.text)
	}
	tok := p.cur
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return tok, nil
}

func (p *parser) parseValue() (any, error) {
	switch p.cur.kind {
	case tokNumber:
		return p.parseNumber()
	case tokString:
		text := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return text, nil
	case tokLBracket:
		return p.parseList()
	case tokIdent:
		return p.parseIdent()
	}
	return nil, code.DecodeReprErr.WithMsgf("unexpected token %q", p.cur.text)
}

func (p *parser) parseNumber() (any, error) {
	text := p.cur.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if text == "-Inf" || text == "+Inf" {
		return math.Inf(sign(text)), nil
	}
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
		// out-of-range integers degrade to double, as R itself does
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, code.DecodeReprErr.WithMsgf("bad number %q", text)
	}
	return f, nil
}

func sign(text string) int {
	if strings.HasPrefix(text, "-") {
		return -1
	}
	return 1
}

func (p *parser) parseList() ([]any, error) {
	if _, err := p.expect(tokLBracket); err != nil {
		return nil, err
	}
	items := []any{}
	for p.cur.kind != tokRBracket {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(tokRBracket); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *parser) parseIdent() (any, error) {
	name := p.cur.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	switch name {
	case "None", "NULL":
		return nil, nil
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "numpy.nan", "NaN", "NA":
		return math.NaN(), nil
	case "Inf":
		return math.Inf(1), nil
	case "float":
		return p.parseFloatCall()
	case "complex":
		return p.parseComplexCall()
	case "dict":
		return p.parseDictCall()
	case "pandas.Series":
		return p.parseSeriesCall()
	case "numpy.array":
		return p.parseArrayCall()
	case "read_dataframe":
		return p.parseFrameCall()
	case "eval":
		return p.parseEvalCall()
	}
	return nil, code.DecodeReprErr.WithMsgf("unknown constructor %q", name)
}

// float("inf") / float("-inf")
func (p *parser) parseFloatCall() (any, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	arg, err := p.expect(tokString)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	switch arg.text {
	case "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	return nil, code.DecodeReprErr.WithMsgf("bad float literal %q", arg.text)
}

// complex(1,2.2)
func (p *parser) parseComplexCall() (any, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	re, err := p.parseScalarFloat()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokComma); err != nil {
		return nil, err
	}
	im, err := p.parseScalarFloat()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return complex(re, im), nil
}

func (p *parser) parseScalarFloat() (float64, error) {
	v, err := p.parseValue()
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, code.DecodeReprErr.WithMsg("expected numeric argument")
}

// dict([('a',1),('b',2)])
func (p *parser) parseDictCall() (any, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBracket); err != nil {
		return nil, err
	}

	out := map[string]any{}
	for p.cur.kind != tokRBracket {
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		key, err := p.expect(tokString)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		out[key.text] = v
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(tokRBracket); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return out, nil
}

// pandas.Series([11,22],['a','b'])
func (p *parser) parseSeriesCall() (any, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	values, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokComma); err != nil {
		return nil, err
	}
	index, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return frame.NewSeries(values, index), nil
}

// numpy.array([...]).reshape([d...]).swapaxes(i,j)
func (p *parser) parseArrayCall() (any, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	data, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}

	shape := []int{len(data)}
	swapped := false
	for p.cur.kind == tokDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		method, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		switch method.text {
		case "reshape":
			if shape, err = p.parseShapeArgs(); err != nil {
				return nil, err
			}
		case "swapaxes":
			if err := p.skipCallArgs(); err != nil {
				return nil, err
			}
			swapped = true
		default:
			return nil, code.DecodeReprErr.WithMsgf("unknown array method %q", method.text)
		}
	}

	arr := frame.NewNDArray(shape, data)
	if arr.Len() != len(data) {
		return nil, code.DecodeReprErr.WithMsgf("array shape %v does not fit %d items", shape, len(data))
	}
	if swapped {
		// undo the column-major shuffle applied on the R side
		arr = arr.SwapLastAxes()
	}
	return arr, nil
}

func (p *parser) parseShapeArgs() ([]int, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	dims, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	shape := make([]int, len(dims))
	for i, d := range dims {
		n, ok := d.(int64)
		if !ok {
			return nil, code.DecodeReprErr.WithMsg("non-integer dim")
		}
		shape[i] = int(n)
	}
	return shape, nil
}

func (p *parser) skipCallArgs() error {
	if _, err := p.expect(tokLParen); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		switch p.cur.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		case tokEOF:
			return code.DecodeReprErr.WithMsg("unterminated call")
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

// read_dataframe(r'path')[.set_index(pandas.Index([...]))][.values]
func (p *parser) parseFrameCall() (any, error) {
	if p.frames == nil {
		return nil, code.FeatherErr.WithMsg("no frame reader configured")
	}
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	path, err := p.expect(tokString)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}

	df, err := p.frames.ReadFrame(path.text)
	if err != nil {
		return nil, code.FeatherErr.WithMsgf("read dataframe fail: %+v", err)
	}

	asMatrix := false
	for p.cur.kind == tokDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		method, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		switch method.text {
		case "set_index":
			index, err := p.parseIndexArgs()
			if err != nil {
				return nil, err
			}
			df.Index = index
		case "values":
			asMatrix = true
		default:
			return nil, code.DecodeReprErr.WithMsgf("unknown frame method %q", method.text)
		}
	}

	if asMatrix {
		return frameToMatrix(df)
	}
	return df, nil
}

// set_index(pandas.Index([...]))
func (p *parser) parseIndexArgs() ([]string, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	ident, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if ident.text != "pandas.Index" {
		return nil, code.DecodeReprErr.WithMsgf("unknown index constructor %q", ident.text)
	}
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var names []any
	if p.cur.kind == tokLBracket {
		if names, err = p.parseList(); err != nil {
			return nil, err
		}
	} else {
		// a single row name arrives as a bare scalar
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		names = []any{v}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}

	index := make([]string, len(names))
	for i, n := range names {
		s, ok := n.(string)
		if !ok {
			return nil, code.DecodeReprErr.WithMsg("non-string row name")
		}
		index[i] = s
	}
	return index, nil
}

// eval('...') wraps character and logical array elements.
func (p *parser) parseEvalCall() (any, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	arg, err := p.expect(tokString)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}

	inner := &parser{lex: newLexer(arg.text), frames: p.frames}
	if err := inner.advance(); err != nil {
		return nil, err
	}
	return inner.parseValue()
}

func frameToMatrix(df *frame.DataFrame) (*frame.Matrix, error) {
	rows, cols := df.NumRows(), df.NumCols()
	data := make([]float64, rows*cols)
	for j, col := range df.Cols {
		for i := 0; i < rows; i++ {
			if !col.IsValid(i) {
				data[i*cols+j] = math.NaN()
				continue
			}
			switch col.Kind {
			case frame.KindInt:
				data[i*cols+j] = float64(col.Ints[i])
			case frame.KindFloat:
				data[i*cols+j] = col.Floats[i]
			case frame.KindBool:
				if col.Bools[i] {
					data[i*cols+j] = 1
				}
			default:
				return nil, code.DecodeReprErr.WithMsgf("matrix column %q is not numeric", col.Name)
			}
		}
	}
	return frame.NewMatrix(rows, cols, data), nil
}
