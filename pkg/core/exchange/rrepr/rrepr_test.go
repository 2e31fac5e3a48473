package rrepr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyglotlab/sosr/pkg/core/exchange/frame"
)

type stubReader struct {
	frames map[string]*frame.DataFrame
}

func (s *stubReader) ReadFrame(path string) (*frame.DataFrame, error) {
	df := s.frames[path]
	// hand out a copy so set_index on one parse does not leak into the next
	out := &frame.DataFrame{Cols: df.Cols}
	if df.Index != nil {
		out.Index = append([]string{}, df.Index...)
	}
	return out, nil
}

func TestDecodeScalars(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"None", nil},
		{"NULL", nil},
		{"True", true},
		{"False", false},
		{"1", int64(1)},
		{"-7", int64(-7)},
		{"1.4", 1.4},
		{"1e+20", 1e20},
		{"Inf", math.Inf(1)},
		{"-Inf", math.Inf(-1)},
		{`float("inf")`, math.Inf(1)},
		{`float("-inf")`, math.Inf(-1)},
		{`complex(1,2.2)`, complex(1, 2.2)},
		{`r"""hello"""`, "hello"},
		{`r"""say "hi" now"""`, `say "hi" now`},
		{"'plain'", "plain"},
		{`'a\nb'`, "a\nb"},
	}

	d := NewDecoder(nil)
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := d.Decode(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestDecodeNaN(t *testing.T) {
	d := NewDecoder(nil)
	for _, in := range []string{"numpy.nan", "NaN", "NA", `float("nan")`} {
		got, err := d.Decode(in)
		require.NoError(t, err)
		f, ok := got.(float64)
		require.True(t, ok, "Decode(%q) = %T", in, got)
		assert.True(t, math.IsNaN(f))
	}
}

func TestDecodeHugeInteger(t *testing.T) {
	d := NewDecoder(nil)
	got, err := d.Decode("92233720368547758080")
	require.NoError(t, err)
	assert.Equal(t, 92233720368547758080.0, got)
}

func TestDecodeList(t *testing.T) {
	d := NewDecoder(nil)

	got, err := d.Decode("[ 1,2 ]")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, got)

	got, err = d.Decode(`[ r"""a""", True, 1.5, None ]`)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", true, 1.5, nil}, got)

	got, err = d.Decode("[ [ 1 ], [ 2,3 ] ]")
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{int64(1)}, []any{int64(2), int64(3)}}, got)

	got, err = d.Decode("[  ]")
	require.NoError(t, err)
	assert.Equal(t, []any{}, got)
}

func TestDecodeDict(t *testing.T) {
	d := NewDecoder(nil)

	got, err := d.Decode(`dict([ (r"""a""",1), (r"""b""",[ 1,2 ]) ])`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": int64(1),
		"b": []any{int64(1), int64(2)},
	}, got)

	got, err = d.Decode(`dict([ (r"""outer""",dict([ (r"""inner""",True) ])) ])`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"outer": map[string]any{"inner": true},
	}, got)
}

func TestDecodeSeries(t *testing.T) {
	d := NewDecoder(nil)

	got, err := d.Decode(`pandas.Series([ 11,22 ],[ r"""a""",r"""b""" ])`)
	require.NoError(t, err)
	assert.Equal(t, frame.NewSeries(
		[]any{int64(11), int64(22)},
		[]any{"a", "b"},
	), got)
}

func TestDecodeArray(t *testing.T) {
	d := NewDecoder(nil)

	got, err := d.Decode("numpy.array([ 1,2,3 ])")
	require.NoError(t, err)
	assert.Equal(t, frame.NewNDArray([]int{3}, []any{int64(1), int64(2), int64(3)}), got)

	// an R 2x3 matrix arrives column-major with swapped dims plus a
	// trailing swapaxes, which the decoder undoes
	got, err = d.Decode("numpy.array([ 1,2,3,4,5,6 ]).reshape([ 3,2 ]).swapaxes(-1,-2)")
	require.NoError(t, err)
	assert.Equal(t, frame.NewNDArray([]int{2, 3}, []any{
		int64(1), int64(3), int64(5),
		int64(2), int64(4), int64(6),
	}), got)

	got, err = d.Decode(`numpy.array([ eval('r"""x"""'), eval('r"""y"""') ])`)
	require.NoError(t, err)
	assert.Equal(t, frame.NewNDArray([]int{2}, []any{"x", "y"}), got)

	_, err = d.Decode("numpy.array([ 1,2,3 ]).reshape([ 2,2 ])")
	require.Error(t, err)
}

func TestDecodeFrame(t *testing.T) {
	base := frame.NewDataFrame(
		frame.NewIntColumn("n", []int64{1, 2}, nil),
		frame.NewFloatColumn("x", []float64{1.5, 2.5}, nil),
	)
	d := NewDecoder(&stubReader{frames: map[string]*frame.DataFrame{
		"/tmp/f.feather": base,
	}})

	got, err := d.Decode(`read_dataframe(r'/tmp/f.feather')`)
	require.NoError(t, err)
	df, ok := got.(*frame.DataFrame)
	require.True(t, ok)
	assert.Equal(t, 2, df.NumRows())
	assert.Nil(t, df.Index)

	got, err = d.Decode(`read_dataframe(r'/tmp/f.feather').set_index(pandas.Index([ r"""a""",r"""b""" ]))`)
	require.NoError(t, err)
	df = got.(*frame.DataFrame)
	assert.Equal(t, []string{"a", "b"}, df.Index)

	// a single row name arrives as a bare scalar, not a list
	got, err = d.Decode(`read_dataframe(r'/tmp/f.feather').set_index(pandas.Index(r"""only"""))`)
	require.NoError(t, err)
	df = got.(*frame.DataFrame)
	assert.Equal(t, []string{"only"}, df.Index)
}

func TestDecodeMatrix(t *testing.T) {
	base := frame.NewDataFrame(
		frame.NewFloatColumn("V1", []float64{1, 2}, nil),
		frame.NewFloatColumn("V2", []float64{3, 4}, []bool{true, false}),
	)
	d := NewDecoder(&stubReader{frames: map[string]*frame.DataFrame{
		"/tmp/m.feather": base,
	}})

	got, err := d.Decode(`read_dataframe(r'/tmp/m.feather').values`)
	require.NoError(t, err)
	m, ok := got.(*frame.Matrix)
	require.True(t, ok)
	assert.Equal(t, 2, m.Rows)
	assert.Equal(t, 2, m.Cols)
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 3.0, m.At(0, 1))
	assert.Equal(t, 2.0, m.At(1, 0))
	assert.True(t, math.IsNaN(m.At(1, 1)))
}

func TestDecodeErrors(t *testing.T) {
	d := NewDecoder(nil)

	_, err := d.Decode("1 2")
	assert.Error(t, err)

	_, err = d.Decode("frobnicate(1)")
	assert.Error(t, err)

	_, err = d.Decode(`r"""unterminated`)
	assert.Error(t, err)

	_, err = d.Decode("[ 1, 2")
	assert.Error(t, err)
}
