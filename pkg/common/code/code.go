package code

import "fmt"

// Success is the code carried by every successful response body.
const Success = 0

type Code struct {
	code int
	msg  string
}

func New(code int, msg string) *Code {
	return &Code{code: code, msg: msg}
}

func (c *Code) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", c.code, c.msg)
}

func (c *Code) Code() int {
	return c.code
}

func (c *Code) Msg() string {
	return c.msg
}

// WithMsg returns a copy carrying the same code with a new message,
// the original error value stays untouched.
func (c *Code) WithMsg(msg string) *Code {
	return &Code{code: c.code, msg: msg}
}

func (c *Code) WithMsgf(format string, args ...any) *Code {
	return &Code{code: c.code, msg: fmt.Sprintf(format, args...)}
}

var (
	UnknownErr     = New(10000, "unknown error")
	ParamErr       = New(10001, "param error")
	RecordNotFound = New(10002, "record not found")
	AuthErr        = New(10003, "unauthorized")
	TokenExpired   = New(10004, "token expired")

	RPCHttpErr     = New(10100, "rpc http error")
	RPCHttpCodeErr = New(10101, "rpc http status error")

	GatewayKernelErr   = New(10200, "kernel gateway error")
	KernelStartErr     = New(10201, "start kernel fail")
	KernelExecErr      = New(10202, "kernel execute fail")
	KernelTimeoutErr   = New(10203, "kernel response timeout")
	KernelClosedErr    = New(10204, "kernel connection closed")
	SessionExistErr    = New(10205, "session already exist")
	SessionNotFoundErr = New(10206, "session not found")
	SetSessionHeartErr = New(10207, "set session heart fail")

	EncodeValueErr     = New(10300, "encode value to R expression fail")
	DecodeReprErr      = New(10301, "decode kernel repr fail")
	UnsupportedTypeErr = New(10302, "unsupported datatype")
	FeatherErr         = New(10303, "feather read/write fail")
	ExpandSigilErr     = New(10304, "unacceptable expand delimiter")
)
