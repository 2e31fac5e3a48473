package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyglotlab/sosr/pkg/common/constant"
	"github.com/polyglotlab/sosr/pkg/common/uuid"
	"github.com/polyglotlab/sosr/pkg/core/kernel"
	"github.com/polyglotlab/sosr/pkg/repo/model"
)

// wsGateway points the client at a scripted in-process channels endpoint.
type wsGateway struct {
	url string
}

func (g *wsGateway) StartKernel(context.Context, string) (*model.KernelInfo, error) {
	return nil, nil
}

func (g *wsGateway) GetKernel(context.Context, string) (*model.KernelInfo, error) {
	return nil, nil
}

func (g *wsGateway) ListKernels(context.Context) ([]*model.KernelInfo, error) {
	return nil, nil
}

func (g *wsGateway) DeleteKernel(context.Context, string) error { return nil }

func (g *wsGateway) InterruptKernel(context.Context, string) error { return nil }

func (g *wsGateway) RestartKernel(context.Context, string) (*model.KernelInfo, error) {
	return nil, nil
}

func (g *wsGateway) ListKernelSpecs(context.Context) (*model.KernelSpecs, error) {
	return nil, nil
}

func (g *wsGateway) ChannelsURL(string) string { return g.url }

func (g *wsGateway) AuthHeader() (string, string) { return "", "" }

type fakeKernelServer struct {
	srv *httptest.Server
}

func newFakeKernelServer(t *testing.T, handle func(conn *websocket.Conn, req *kernel.Message)) *fakeKernelServer {
	f := &fakeKernelServer{}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			req := &kernel.Message{}
			if err := conn.ReadJSON(req); err != nil {
				return
			}
			handle(conn, req)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeKernelServer) gateway() *wsGateway {
	return &wsGateway{url: strings.Replace(f.srv.URL, "http", "ws", 1)}
}

func reply(conn *websocket.Conn, parent *kernel.Message, msgType string, content map[string]any) error {
	return conn.WriteJSON(&kernel.Message{
		Header: kernel.Header{
			MsgID:   uuid.NewV4().String(),
			Session: parent.Header.Session,
			MsgType: msgType,
		},
		ParentHeader: parent.Header,
		Content:      content,
		Channel:      "iopub",
	})
}

func stream(conn *websocket.Conn, parent *kernel.Message, name, text string) error {
	return reply(conn, parent, "stream", map[string]any{"name": name, "text": text})
}

func status(conn *websocket.Conn, parent *kernel.Message, state string) error {
	return reply(conn, parent, "status", map[string]any{"execution_state": state})
}

func dialFake(t *testing.T, f *fakeKernelServer) kernel.Kernel {
	k, err := Dial(context.Background(), f.gateway(), &model.KernelInfo{ID: "k-1", Name: constant.DefaultKernelName}, uuid.NewV4())
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close(context.Background()) })
	return k
}

func TestStdoutCollectsUntilIdle(t *testing.T) {
	f := newFakeKernelServer(t, func(conn *websocket.Conn, req *kernel.Message) {
		_ = status(conn, req, "busy")
		_ = stream(conn, req, "stdout", "hello ")
		_ = stream(conn, req, "stderr", "noise")
		_ = stream(conn, req, "stdout", "world")
		_ = status(conn, req, "idle")
	})
	k := dialFake(t, f)

	out, err := k.Stdout(context.Background(), "cat('hello world')")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestFramesOfOtherRequestsIgnored(t *testing.T) {
	f := newFakeKernelServer(t, func(conn *websocket.Conn, req *kernel.Message) {
		stranger := &kernel.Message{Header: kernel.Header{MsgID: "someone-else", MsgType: "execute_request"}}
		_ = stream(conn, stranger, "stdout", "not yours")
		_ = status(conn, stranger, "idle")
		_ = stream(conn, req, "stdout", "mine")
		_ = status(conn, req, "idle")
	})
	k := dialFake(t, f)

	out, err := k.Stdout(context.Background(), "cat('mine')")
	require.NoError(t, err)
	assert.Equal(t, "mine", out)
}

func TestExecuteErrorFrame(t *testing.T) {
	f := newFakeKernelServer(t, func(conn *websocket.Conn, req *kernel.Message) {
		_ = reply(conn, req, "error", map[string]any{
			"ename":  "simpleError",
			"evalue": "object 'x' not found",
		})
		_ = status(conn, req, "idle")
	})
	k := dialFake(t, f)

	err := k.Execute(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simpleError")
	assert.Contains(t, err.Error(), "object 'x' not found")
}

func TestStreamBurstIsNotDropped(t *testing.T) {
	const frames = 3 * subBufferSize
	f := newFakeKernelServer(t, func(conn *websocket.Conn, req *kernel.Message) {
		for n := range frames {
			_ = stream(conn, req, "stdout", fmt.Sprintf("%d;", n))
		}
		_ = status(conn, req, "idle")
	})
	k := dialFake(t, f)

	out, err := k.Stdout(context.Background(), "seq_len(192)")
	require.NoError(t, err)
	assert.Equal(t, frames, strings.Count(out, ";"))
	assert.True(t, strings.HasPrefix(out, "0;1;"))
	assert.True(t, strings.HasSuffix(out, fmt.Sprintf("%d;", frames-1)))
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFakeKernelServer(t, func(conn *websocket.Conn, req *kernel.Message) {
		_ = status(conn, req, "idle")
	})
	k, err := Dial(context.Background(), f.gateway(), &model.KernelInfo{ID: "k-1", Name: constant.DefaultKernelName}, uuid.NewV4())
	require.NoError(t, err)

	require.NoError(t, k.Close(context.Background()))
	require.NoError(t, k.Close(context.Background()))

	err = k.Execute(context.Background(), "1")
	assert.Error(t, err)
}
