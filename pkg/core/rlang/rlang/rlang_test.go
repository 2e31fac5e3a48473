package rlang

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyglotlab/sosr/pkg/core/exchange/feather"
	"github.com/polyglotlab/sosr/pkg/core/kernel"
	core "github.com/polyglotlab/sosr/pkg/core/rlang"
)

type fakeKernel struct {
	executed []string
	execErr  error
	stdout   func(code string) (string, error)
}

func (f *fakeKernel) ID() string { return "kernel-1" }

func (f *fakeKernel) Execute(_ context.Context, code string) error {
	f.executed = append(f.executed, code)
	return f.execErr
}

func (f *fakeKernel) GetResponse(context.Context, string, ...string) ([]*kernel.Message, error) {
	return nil, nil
}

func (f *fakeKernel) Stdout(_ context.Context, code string) (string, error) {
	return f.stdout(code)
}

func (f *fakeKernel) Close(context.Context) error { return nil }

func newTestService(t *testing.T, k kernel.Kernel) core.Service {
	t.Helper()
	return New(k, feather.New(t.TempDir()), nil)
}

func TestInit(t *testing.T) {
	fake := &fakeKernel{}
	svc := newTestService(t, fake)

	require.NoError(t, svc.Init(context.Background()))
	require.Len(t, fake.executed, 1)
	assert.Contains(t, fake.executed[0], "..py.repr")
	assert.Contains(t, fake.executed[0], "..read.feather")
	assert.Contains(t, fake.executed[0], "..sos.expand")
}

func TestGetVars(t *testing.T) {
	fake := &fakeKernel{}
	svc := newTestService(t, fake)

	res, err := svc.GetVars(context.Background(), map[string]any{
		"_x": 1,
		"b":  true,
	})
	require.NoError(t, err)

	assert.Contains(t, fake.executed, ".x <- 1")
	assert.Contains(t, fake.executed, "b <- TRUE")

	require.Len(t, res.Transfers, 2)
	assert.Equal(t, "_x", res.Transfers[0].SourceName)
	assert.Equal(t, ".x", res.Transfers[0].TargetName)
	assert.Equal(t, int64(1), res.Transfers[0].ByteSize)
	assert.Equal(t, "Variable _x is passed from SoS to kernel R as .x", res.Transfers[0].Warning)
	assert.Equal(t, "b", res.Transfers[1].SourceName)
	assert.Equal(t, "b", res.Transfers[1].TargetName)
	assert.Empty(t, res.Transfers[1].Warning)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "Variable _x is passed from SoS to kernel R as .x", res.Warnings[0])
}

func TestGetVarsUnsupported(t *testing.T) {
	fake := &fakeKernel{}
	svc := newTestService(t, fake)

	res, err := svc.GetVars(context.Background(), map[string]any{
		"u": struct{ X int }{1},
	})
	require.NoError(t, err)

	// the variable still lands in R, as NULL
	assert.Contains(t, fake.executed, "u <- NULL")
	require.Len(t, res.Transfers, 1)
	assert.Contains(t, res.Transfers[0].Error, "Unsupported datatype")
	require.NotEmpty(t, res.Warnings)
}

func TestGetVarsKernelError(t *testing.T) {
	fake := &fakeKernel{execErr: errors.New("boom")}
	svc := newTestService(t, fake)

	res, err := svc.GetVars(context.Background(), map[string]any{"x": 1})
	require.NoError(t, err)
	require.Len(t, res.Transfers, 1)
	assert.Contains(t, res.Transfers[0].Error, "Failed to get variable x to R")
}

func TestPutVars(t *testing.T) {
	fake := &fakeKernel{}
	fake.stdout = func(code string) (string, error) {
		switch {
		case code == "cat(..py.repr(ls()))":
			return `[ r"""x""", r"""my.var""", r"""sosGlobal""", r"""hidden""" ]`, nil
		case strings.Contains(code, "lapply"):
			return `dict([ (r"""x""",r"""numeric"""), (r"""my.var""",r"""numeric"""), (r"""sosGlobal""",r"""logical""") ])`, nil
		case strings.HasPrefix(code, "cat(..py.repr(list("):
			assert.Equal(t, "cat(..py.repr(list(x=x,my.var=my.var,sosGlobal=sosGlobal)))", code)
			return `dict([ (r"""x""",1), (r"""my.var""",2.5), (r"""sosGlobal""",True) ])`, nil
		}
		t.Fatalf("unexpected kernel code %q", code)
		return "", nil
	}
	svc := newTestService(t, fake)

	res, err := svc.PutVars(context.Background(), []string{"x", "my.var"})
	require.NoError(t, err)

	// dotted names surface renamed, sos-prefixed variables ride along
	assert.Equal(t, map[string]any{
		"x":         int64(1),
		"my_var":    2.5,
		"sosGlobal": true,
	}, res.Vars)

	require.Len(t, res.Transfers, 3)
	assert.Equal(t, "x", res.Transfers[0].SourceName)
	assert.Equal(t, "numeric", res.Transfers[0].RClass)
	assert.Equal(t, "my.var", res.Transfers[1].SourceName)
	assert.Equal(t, "my_var", res.Transfers[1].TargetName)
	assert.Equal(t, "numeric", res.Transfers[1].RClass)
	assert.Equal(t, "Variable my.var is put to SoS as my_var", res.Transfers[1].Warning)
	assert.Equal(t, "sosGlobal", res.Transfers[2].SourceName)
	assert.Equal(t, "logical", res.Transfers[2].RClass)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "Variable my.var is put to SoS as my_var", res.Warnings[0])
}

func TestPutVarsEmpty(t *testing.T) {
	fake := &fakeKernel{}
	fake.stdout = func(code string) (string, error) {
		require.Equal(t, "cat(..py.repr(ls()))", code)
		return "[  ]", nil
	}
	svc := newTestService(t, fake)

	res, err := svc.PutVars(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Vars)
	assert.Empty(t, res.Transfers)
	assert.Empty(t, res.Warnings)
}

func TestPutVarsBadReply(t *testing.T) {
	fake := &fakeKernel{}
	fake.stdout = func(code string) (string, error) {
		if code == "cat(..py.repr(ls()))" {
			return `[ r"""x""" ]`, nil
		}
		return "not a literal at all (", nil
	}
	svc := newTestService(t, fake)

	_, err := svc.PutVars(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	fake := &fakeKernel{}
	fake.stdout = func(code string) (string, error) {
		assert.Equal(t, `..sos.expand("value is {x}", c("{", "}"))`, code)
		return "value is 1", nil
	}
	svc := newTestService(t, fake)

	res, err := svc.Expand(context.Background(), "value is {x}", "{ }")
	require.NoError(t, err)
	assert.Equal(t, "value is 1", res.Text)
	assert.Empty(t, res.Warnings)
}

func TestExpandEmptySigil(t *testing.T) {
	fake := &fakeKernel{}
	fake.stdout = func(code string) (string, error) {
		assert.Equal(t, `..sos.expand("value is {x}", c("{", "}"))`, code)
		return "value is 1", nil
	}
	svc := newTestService(t, fake)

	res, err := svc.Expand(context.Background(), "value is {x}", "")
	require.NoError(t, err)
	assert.Equal(t, "value is 1", res.Text)
}

func TestExpandAlphaSigil(t *testing.T) {
	fake := &fakeKernel{}
	fake.stdout = func(code string) (string, error) {
		// alpha-adjacent delimiters keep their separating space
		assert.Equal(t, "..sos.expand(\"`r x` end\", c(\"`r \", \"`\"))", code)
		return "1 end", nil
	}
	svc := newTestService(t, fake)

	res, err := svc.Expand(context.Background(), "`r x` end", "`r `")
	require.NoError(t, err)
	assert.Equal(t, "1 end", res.Text)
}

func TestExpandBadDelimiter(t *testing.T) {
	fake := &fakeKernel{}
	fake.stdout = func(code string) (string, error) {
		t.Fatal("kernel should not be called")
		return "", nil
	}
	svc := newTestService(t, fake)

	res, err := svc.Expand(context.Background(), "text", `" "`)
	require.NoError(t, err)
	assert.Equal(t, "text", res.Text)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Unacceptable delimiter")

	_, err = svc.Expand(context.Background(), "text", "single")
	assert.Error(t, err)
}

func TestExpandKernelError(t *testing.T) {
	fake := &fakeKernel{}
	fake.stdout = func(code string) (string, error) {
		return "", errors.New("boom")
	}
	svc := newTestService(t, fake)

	res, err := svc.Expand(context.Background(), "{x}", "{ }")
	require.NoError(t, err)
	assert.Equal(t, "{x}", res.Text)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Failed to expand")
}

func TestPreview(t *testing.T) {
	fake := &fakeKernel{}
	fake.stdout = func(code string) (string, error) {
		assert.Equal(t, `..sos.preview("mtcars")`, code)
		return "'data.frame': 32 obs. of 11 variables", nil
	}
	svc := newTestService(t, fake)

	out, err := svc.Preview(context.Background(), "mtcars")
	require.NoError(t, err)
	assert.Contains(t, out, "data.frame")
}

func TestSessionInfo(t *testing.T) {
	fake := &fakeKernel{}
	fake.stdout = func(code string) (string, error) {
		assert.Contains(t, code, "sessionInfo()")
		return "R version 4.4.0", nil
	}
	svc := newTestService(t, fake)

	out, err := svc.SessionInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "R version 4.4.0", out)
}

func TestChangeDir(t *testing.T) {
	fake := &fakeKernel{}
	svc := newTestService(t, fake)

	require.NoError(t, svc.ChangeDir(context.Background(), "/home/user"))
	assert.Equal(t, []string{"setwd('/home/user')"}, fake.executed)
}
