package rexpr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyglotlab/sosr/pkg/core/exchange/frame"
)

type stubWriter struct {
	framePath  string
	matrixPath string
	lastFrame  *frame.DataFrame
	lastMatrix *frame.Matrix
}

func (s *stubWriter) WriteFrame(df *frame.DataFrame) (string, error) {
	s.lastFrame = df
	return s.framePath, nil
}

func (s *stubWriter) WriteMatrix(m *frame.Matrix) (string, error) {
	s.lastMatrix = m
	return s.matrixPath, nil
}

func TestEncodeScalars(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "NULL"},
		{"true", true, "TRUE"},
		{"false", false, "FALSE"},
		{"int", 123, "123"},
		{"int64", int64(-7), "-7"},
		{"float", 1.4, "1.4"},
		{"float exp", 1e20, "1e+20"},
		{"nan", math.NaN(), "NaN"},
		{"inf", math.Inf(1), "Inf"},
		{"neg inf", math.Inf(-1), "-Inf"},
		{"complex", complex(1, 2.2), "complex(real = 1, imaginary = 2.2)"},
		{"string", "a1", "'a1'"},
		{"quoted string", `a'b`, `'a\'b'`},
		{"newline string", "a\nb", `'a\nb'`},
	}

	e := New(nil)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := e.Encode(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
	assert.Empty(t, e.Warnings())
}

func TestEncodeSlices(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"empty", []any{}, "c()"},
		{"ints", []any{1, 2}, "c(1,2)"},
		{"typed ints", []int{1, 2, 3}, "c(1,2,3)"},
		{"ints and floats", []any{1, 2.5}, "c(1,2.5)"},
		{"strings", []any{"a", "b"}, "c('a','b')"},
		{"mixed", []any{1, "a"}, "list(1,'a')"},
		{"nested", []any{[]any{1, 2}, []any{3}}, "c(c(1,2),c(3))"},
	}

	e := New(nil)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := e.Encode(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestEncodeMap(t *testing.T) {
	e := New(nil)

	got, err := e.Encode(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, "list(a=1,b=2)", got)

	// keys that are not valid R names get mangled the way R sees them
	got, err = e.Encode(map[string]any{"11111": "a"})
	require.NoError(t, err)
	assert.Equal(t, "list(X11111='a')", got)

	got, err = e.Encode(map[string]any{"_1111": "a"})
	require.NoError(t, err)
	assert.Equal(t, "list(X_1111='a')", got)

	got, err = e.Encode(map[string]any{" 1  2 ": "a"})
	require.NoError(t, err)
	assert.Equal(t, "list(X_1__2_='a')", got)

	nested := map[string]any{"a": map[string]any{"x": 1}}
	got, err = e.Encode(nested)
	require.NoError(t, err)
	assert.Equal(t, "list(a=list(x=1))", got)
}

func TestEncodeMapCycle(t *testing.T) {
	m := map[string]any{}
	m["self"] = m

	e := New(nil)
	got, err := e.Encode(m)
	require.NoError(t, err)
	assert.Equal(t, "list(self=NULL)", got)
}

func TestEncodeSeries(t *testing.T) {
	s := &frame.Series{
		Values: []any{11, 22},
		Index:  []any{"a", "b"},
	}

	e := New(nil)
	got, err := e.Encode(s)
	require.NoError(t, err)
	assert.Equal(t, "setNames(c(11,22),c('a','b'))", got)
}

func TestEncodeNDArray(t *testing.T) {
	e := New(nil)

	oneDim, err := e.Encode(&frame.NDArray{Shape: []int{2}, Data: []any{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "array(c(1,2))", oneDim)

	// a 2x3 row-major array flattens column-major for R, carrying the
	// swapped dim vector so R can reverse it back
	twoDim, err := e.Encode(&frame.NDArray{
		Shape: []int{2, 3},
		Data:  []any{1, 2, 3, 4, 5, 6},
	})
	require.NoError(t, err)
	assert.Equal(t, "array(c(1,4,2,5,3,6), dim=rev(c(3,2)))", twoDim)
}

func TestEncodeMatrix(t *testing.T) {
	w := &stubWriter{matrixPath: "/tmp/m.feather"}
	e := New(w)

	m := &frame.Matrix{Rows: 2, Cols: 2, Data: []float64{1, 2, 3, 4}}
	got, err := e.Encode(m)
	require.NoError(t, err)
	assert.Equal(t, "data.matrix(..read.feather('/tmp/m.feather'))", got)
	assert.Equal(t, m, w.lastMatrix)
}

func TestEncodeFrame(t *testing.T) {
	w := &stubWriter{framePath: "/tmp/f.feather"}
	e := New(w)

	df := &frame.DataFrame{
		Cols:  []*frame.Column{frame.NewIntColumn("n", []int64{1, 2}, nil)},
		Index: []string{"r1", "r2"},
	}
	got, err := e.Encode(df)
	require.NoError(t, err)
	assert.Equal(t, "..read.feather('/tmp/f.feather', index=c('r1','r2'))", got)
	assert.Empty(t, e.Warnings())

	df.Index = []string{"r1", "r1"}
	got, err = e.Encode(df)
	require.NoError(t, err)
	assert.Equal(t, "..read.feather('/tmp/f.feather', index=NULL)", got)
	assert.Equal(t, []string{
		"Index is ignored because R dataframe does not accept non-unique row names.",
	}, e.Warnings())

	df.Index = nil
	got, err = e.Encode(df)
	require.NoError(t, err)
	assert.Equal(t, "..read.feather('/tmp/f.feather', index=NULL)", got)
	assert.Empty(t, e.Warnings())
}

func TestEncodeUnsupported(t *testing.T) {
	e := New(nil)

	got, err := e.Encode(struct{ X int }{1})
	require.NoError(t, err)
	assert.Equal(t, "NULL", got)

	// the same unsupported type warns only once per transfer
	_, err = e.Encode(struct{ X int }{2})
	require.NoError(t, err)

	warnings := e.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Unsupported datatype")
	assert.Contains(t, warnings[0], "Variable is set to NULL")

	// Warnings drains, a second call starts clean
	assert.Empty(t, e.Warnings())
}

func TestRName(t *testing.T) {
	cases := map[string]string{
		"abc":     "abc",
		"abc1":    "abc1",
		"11111":   "X11111",
		"_1111":   "X_1111",
		" 1  2 ":  "X_1__2_",
		"":        "X",
		"my.name": "my_name",
		"变量":      "变量",
		"α1":      "α1",
		"α β":     "α_β",
		"1α":      "X1α",
	}
	for in, want := range cases {
		assert.Equal(t, want, RName(in), "RName(%q)", in)
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `'it\'s'`, Quote("it's"))
	assert.Equal(t, `'a\\b'`, Quote(`a\b`))
	assert.Equal(t, `'a\tb'`, Quote("a\tb"))
}
