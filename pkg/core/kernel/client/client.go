package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/gorilla/websocket"
	r "github.com/redis/go-redis/v9"

	"github.com/polyglotlab/sosr/internal/config"
	"github.com/polyglotlab/sosr/pkg/common/code"
	"github.com/polyglotlab/sosr/pkg/common/constant"
	"github.com/polyglotlab/sosr/pkg/common/uuid"
	"github.com/polyglotlab/sosr/pkg/core/kernel"
	"github.com/polyglotlab/sosr/pkg/middleware/logger"
	"github.com/polyglotlab/sosr/pkg/middleware/redis"
	"github.com/polyglotlab/sosr/pkg/repo"
	"github.com/polyglotlab/sosr/pkg/repo/model"
	"github.com/polyglotlab/sosr/pkg/utils"
)

const subBufferSize = 64

// subscription receives the frames of one in-flight request. The reader
// blocks on a full buffer until the collector drains it or gives up, so
// no frame is lost.
type subscription struct {
	ch   chan *kernel.Message
	done <-chan struct{}
}

type kernelClient struct {
	kernelID    string
	wireSession string
	conn        *websocket.Conn
	writeMu     sync.Mutex
	subs        *haxmap.Map[string, *subscription]
	rClient     *r.Client
	sessionUUID uuid.UUID
	execTimeout time.Duration
	cancel      context.CancelFunc
	wait        sync.WaitGroup
	closed      atomic.Bool
}

// Dial connects to the channels endpoint of a started kernel and begins
// routing frames and refreshing the session liveness key.
func Dial(ctx context.Context, gw repo.Gateway, info *model.KernelInfo, sessionUUID uuid.UUID) (kernel.Kernel, error) {
	header := http.Header{}
	if k, v := gw.AuthHeader(); k != "" {
		header.Set(k, v)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, gw.ChannelsURL(info.ID), header)
	if err != nil {
		logger.Errorf(ctx, "kernel client dial kernel: %s err: %+v", info.ID, err)
		return nil, code.KernelStartErr.WithMsg(err.Error())
	}

	ctxCancel, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &kernelClient{
		kernelID:    info.ID,
		wireSession: uuid.NewV4().String(),
		conn:        conn,
		subs:        haxmap.New[string, *subscription](),
		rClient:     redis.GetClient(),
		sessionUUID: sessionUUID,
		execTimeout: time.Duration(config.Global().Gateway.ExecuteTimeout) * time.Second,
		cancel:      cancel,
	}

	if err := c.startHeart(ctxCancel); err != nil {
		cancel()
		conn.Close()
		return nil, err
	}

	c.wait.Add(1)
	c.startRead(ctxCancel)
	return c, nil
}

func (c *kernelClient) ID() string {
	return c.kernelID
}

func (c *kernelClient) startRead(ctx context.Context) {
	utils.SafelyGo(func() {
		defer c.wait.Done()
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !c.closed.Load() {
					logger.Errorf(ctx, "kernel client read kernel: %s err: %+v", c.kernelID, err)
				}
				return
			}

			msg := &kernel.Message{}
			if err := json.Unmarshal(data, msg); err != nil {
				logger.Warnf(ctx, "kernel client bad frame kernel: %s err: %+v", c.kernelID, err)
				continue
			}

			sub, ok := c.subs.Get(msg.ParentHeader.MsgID)
			if !ok {
				continue
			}
			select {
			case sub.ch <- msg:
			case <-sub.done:
			}
		}
	})
}

func (c *kernelClient) startHeart(ctx context.Context) error {
	if c.rClient == nil {
		logger.Warnf(ctx, "kernel client no redis, session liveness key disabled")
		return nil
	}
	heartName := utils.SessionHeartName(c.sessionUUID)
	heartTicker := time.NewTicker(constant.SessionHeartTime)
	_, err := c.rClient.SetEx(ctx, heartName, c.kernelID, constant.SessionHeartTime+time.Second).Result()
	if err != nil {
		heartTicker.Stop()
		logger.Errorf(ctx, "kernel client set heart err: %+v", err)
		return code.SetSessionHeartErr
	}
	c.wait.Add(1)
	utils.SafelyGo(func() {
		defer func() {
			heartTicker.Stop()
			c.rClient.Del(context.Background(), heartName)
			c.wait.Done()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartTicker.C:
				if _, err := c.rClient.SetEx(ctx, heartName, c.kernelID,
					constant.SessionHeartTime+time.Second).Result(); err != nil {
					logger.Warnf(ctx, "kernel client refresh heart err: %+v", err)
				}
			}
		}
	})
	return nil
}

func (c *kernelClient) request(ctx context.Context, codeText string, silent bool) (string, chan *kernel.Message, error) {
	if c.closed.Load() {
		return "", nil, code.KernelClosedErr
	}
	msg := kernel.NewExecuteRequest(c.wireSession, codeText, silent)
	ch := make(chan *kernel.Message, subBufferSize)
	c.subs.Set(msg.Header.MsgID, &subscription{ch: ch, done: ctx.Done()})

	data, err := json.Marshal(msg)
	if err != nil {
		c.subs.Del(msg.Header.MsgID)
		return "", nil, err
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.subs.Del(msg.Header.MsgID)
		logger.Errorf(ctx, "kernel client write kernel: %s err: %+v", c.kernelID, err)
		return "", nil, code.KernelClosedErr.WithMsg(err.Error())
	}
	return msg.Header.MsgID, ch, nil
}

func (c *kernelClient) Execute(ctx context.Context, codeText string) error {
	_, err := c.collect(ctx, codeText, true, nil)
	return err
}

func (c *kernelClient) GetResponse(ctx context.Context, codeText string, msgTypes ...string) ([]*kernel.Message, error) {
	want := make(map[string]bool, len(msgTypes))
	for _, t := range msgTypes {
		want[t] = true
	}
	return c.collect(ctx, codeText, true, want)
}

func (c *kernelClient) Stdout(ctx context.Context, codeText string) (string, error) {
	msgs, err := c.GetResponse(ctx, codeText, "stream")
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, m := range msgs {
		if name, text := m.StreamText(); name == "stdout" {
			sb.WriteString(text)
		}
	}
	return sb.String(), nil
}

// collect runs one execute round trip, gathering the wanted iopub frames
// until the kernel reports idle for this request.
func (c *kernelClient) collect(ctx context.Context, codeText string, silent bool, want map[string]bool) ([]*kernel.Message, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, c.execTimeout)
	defer cancel()

	msgID, ch, err := c.request(ctxTimeout, codeText, silent)
	if err != nil {
		return nil, err
	}
	defer c.subs.Del(msgID)

	var out []*kernel.Message
	var execErr error
	for {
		select {
		case <-ctxTimeout.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, code.KernelTimeoutErr.WithMsgf("kernel: %s no reply within %s", c.kernelID, c.execTimeout)
		case msg := <-ch:
			switch {
			case msg.Header.MsgType == "error" && !want["error"]:
				execErr = code.KernelExecErr.WithMsg(msg.ErrorText())
			case want[msg.Header.MsgType]:
				out = append(out, msg)
			}
			if msg.ExecutionState() == "idle" {
				return out, execErr
			}
		}
	}
}

func (c *kernelClient) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	if err := c.conn.Close(); err != nil {
		logger.Warnf(ctx, "kernel client close kernel: %s err: %+v", c.kernelID, err)
	}
	c.wait.Wait()
	return nil
}
