package code

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithMsg(t *testing.T) {
	err := KernelExecErr.WithMsg("while running prelude")
	assert.Equal(t, KernelExecErr.Code(), err.Code())
	assert.Equal(t, "while running prelude", err.Msg())

	// the shared error value stays untouched
	assert.Equal(t, "kernel execute fail", KernelExecErr.Msg())
}

func TestWithMsgf(t *testing.T) {
	err := SessionNotFoundErr.WithMsgf("session %s", "abc")
	assert.Equal(t, SessionNotFoundErr.Code(), err.Code())
	assert.Equal(t, "session abc", err.Msg())
}

func TestErrorString(t *testing.T) {
	err := New(42, "boom")
	assert.Equal(t, "code: 42, msg: boom", err.Error())
}

func TestErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ParamErr.WithMsg("bad uuid"))

	target := &Code{}
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, ParamErr.Code(), target.Code())
	assert.Equal(t, "bad uuid", target.Msg())
}
