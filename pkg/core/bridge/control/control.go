package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/olahol/melody"
	"github.com/panjf2000/ants/v2"
	r "github.com/redis/go-redis/v9"
	"gorm.io/datatypes"

	"github.com/polyglotlab/sosr/internal/config"
	"github.com/polyglotlab/sosr/pkg/common"
	"github.com/polyglotlab/sosr/pkg/common/code"
	"github.com/polyglotlab/sosr/pkg/common/constant"
	"github.com/polyglotlab/sosr/pkg/common/uuid"
	"github.com/polyglotlab/sosr/pkg/core/bridge"
	"github.com/polyglotlab/sosr/pkg/core/exchange"
	"github.com/polyglotlab/sosr/pkg/core/exchange/feather"
	"github.com/polyglotlab/sosr/pkg/core/kernel"
	kclient "github.com/polyglotlab/sosr/pkg/core/kernel/client"
	"github.com/polyglotlab/sosr/pkg/core/rlang"
	rSvc "github.com/polyglotlab/sosr/pkg/core/rlang/rlang"
	"github.com/polyglotlab/sosr/pkg/middleware/auth"
	"github.com/polyglotlab/sosr/pkg/middleware/logger"
	"github.com/polyglotlab/sosr/pkg/middleware/redis"
	"github.com/polyglotlab/sosr/pkg/repo"
	gwStore "github.com/polyglotlab/sosr/pkg/repo/gateway"
	"github.com/polyglotlab/sosr/pkg/repo/model"
	sStore "github.com/polyglotlab/sosr/pkg/repo/session"
	tStore "github.com/polyglotlab/sosr/pkg/repo/transfer"
	"github.com/polyglotlab/sosr/pkg/utils"
)

var (
	ctl  *control
	once sync.Once
)

const reapPeriod = 3 * constant.SessionHeartTime

// liveSession binds one DB row to its kernel connection and language
// module.
type liveSession struct {
	data *model.Session
	kern kernel.Kernel
	lang rlang.Service
}

type control struct {
	wsClient      *melody.Melody
	bridgeName    string
	sessionMap    *haxmap.Map[string, *liveSession]
	rClient       *r.Client
	pools         *ants.Pool
	frames        *feather.Store
	gateway       repo.Gateway
	sessionStore  repo.SessionRepo
	transferStore repo.TransferRepo
	dial          dialFunc
	stopReap      chan struct{}
}

type dialFunc func(ctx context.Context, gw repo.Gateway, info *model.KernelInfo, sessionUUID uuid.UUID) (kernel.Kernel, error)

func NewControl(ctx context.Context) bridge.Control {
	once.Do(func() {
		wsClient := melody.New()
		wsClient.Config.MaxMessageSize = constant.MaxMessageSize
		wsClient.Config.PingPeriod = 10 * time.Second
		bridgeName := fmt.Sprintf("sosr-bridge-name-%s", uuid.NewV4().String())
		logger.Infof(ctx, "==================== bridge name: %s ====================", bridgeName)

		exConf := config.Exchange()
		ctl = &control{
			wsClient:      wsClient,
			bridgeName:    bridgeName,
			rClient:       redis.GetClient(),
			sessionMap:    haxmap.New[string, *liveSession](),
			frames:        feather.New(exConf.TempDir),
			gateway:       gwStore.New(),
			sessionStore:  sStore.New(),
			transferStore: tStore.New(),
			dial:          kclient.Dial,
			stopReap:      make(chan struct{}),
		}
		ctl.pools, _ = ants.NewPool(exConf.PoolSize)
		if ctl.pools == nil {
			logger.Errorf(ctx, "failed to create ants pool, using default")
			ctl.pools, _ = ants.NewPool(ants.DefaultAntsPoolSize)
		}
		ctl.initWebSocket(ctx)
		ctl.startReaper(ctx)
	})

	return ctl
}

func (i *control) CreateSession(ctx context.Context) (*model.Session, error) {
	user := auth.GetCurrentUser(ctx)
	if user == nil {
		return nil, code.AuthErr
	}
	conf := config.Global().Gateway

	startCtx, cancel := context.WithTimeout(ctx, time.Duration(conf.StartTimeout)*time.Second)
	defer cancel()

	info, err := i.gateway.StartKernel(startCtx, conf.KernelName)
	if err != nil {
		return nil, err
	}

	data := &model.Session{
		UserID:     user.UserID,
		Notebook:   user.Notebook,
		KernelID:   info.ID,
		KernelName: info.Name,
		GatewayURL: conf.Addr,
		Language:   constant.LanguageName,
		Status:     model.SessionStarting,
	}
	data.UUID = uuid.NewV4()

	kern, err := i.dial(startCtx, i.gateway, info, data.UUID)
	if err != nil {
		if delErr := i.gateway.DeleteKernel(ctx, info.ID); delErr != nil {
			logger.Warnf(ctx, "create session cleanup kernel: %s err: %+v", info.ID, delErr)
		}
		return nil, err
	}

	lang := rSvc.New(kern, i.frames, i.pools)
	if err := lang.Init(startCtx); err != nil {
		_ = kern.Close(ctx)
		_ = i.gateway.DeleteKernel(ctx, info.ID)
		return nil, code.KernelStartErr.WithMsgf("install init statements err: %v", err)
	}

	data.Status = model.SessionRunning
	if err := i.sessionStore.CreateSession(ctx, data); err != nil {
		_ = kern.Close(ctx)
		_ = i.gateway.DeleteKernel(ctx, info.ID)
		logger.Errorf(ctx, "create session store err: %+v", err)
		return nil, err
	}

	i.sessionMap.Set(data.UUID.String(), &liveSession{data: data, kern: kern, lang: lang})
	return data, nil
}

func (i *control) DeleteSession(ctx context.Context, UUID uuid.UUID) error {
	live, ok := i.sessionMap.GetAndDel(UUID.String())
	if !ok {
		data, err := i.sessionStore.GetSessionByUUID(ctx, UUID)
		if err != nil {
			return err
		}
		// a second delete purges the finished row
		if data.Status == model.SessionClosed || data.Status == model.SessionDead {
			return i.sessionStore.DeleteSession(ctx, data.ID)
		}
		live = &liveSession{data: data}
	}

	if live.kern != nil {
		if err := live.kern.Close(ctx); err != nil {
			logger.Warnf(ctx, "delete session close kernel err: %+v", err)
		}
	}
	if live.data.KernelID != "" {
		if err := i.gateway.DeleteKernel(ctx, live.data.KernelID); err != nil {
			logger.Warnf(ctx, "delete session kernel: %s err: %+v", live.data.KernelID, err)
		}
	}
	return i.sessionStore.UpdateSessionStatus(ctx, live.data.ID, model.SessionClosed)
}

func (i *control) ListSessions(ctx context.Context, req *common.PageReq) (*common.PageResp[[]*model.Session], error) {
	user := auth.GetCurrentUser(ctx)
	if user == nil {
		return nil, code.AuthErr
	}
	return i.sessionStore.GetSessionList(ctx, user.UserID, req)
}

// getLive resolves a session, redialing its kernel when the bridge has
// restarted since the session was created.
func (i *control) getLive(ctx context.Context, UUID uuid.UUID) (*liveSession, error) {
	if live, ok := i.sessionMap.Get(UUID.String()); ok {
		return live, nil
	}

	data, err := i.sessionStore.GetSessionByUUID(ctx, UUID)
	if err != nil {
		return nil, err
	}
	if data.Status != model.SessionRunning {
		return nil, code.SessionNotFoundErr.WithMsgf("session %s is %s", UUID, data.Status)
	}

	info, err := i.gateway.GetKernel(ctx, data.KernelID)
	if err != nil {
		_ = i.sessionStore.UpdateSessionStatus(ctx, data.ID, model.SessionDead)
		return nil, code.SessionNotFoundErr.WithMsgf("kernel of session %s is gone", UUID)
	}

	kern, err := i.dial(ctx, i.gateway, info, data.UUID)
	if err != nil {
		return nil, err
	}
	live := &liveSession{data: data, kern: kern, lang: rSvc.New(kern, i.frames, i.pools)}
	if actual, loaded := i.sessionMap.GetOrSet(UUID.String(), live); loaded {
		// a concurrent redial won, keep its connection
		_ = kern.Close(ctx)
		return actual, nil
	}
	return live, nil
}

func (i *control) InterruptSession(ctx context.Context, UUID uuid.UUID) error {
	live, err := i.getLive(ctx, UUID)
	if err != nil {
		return err
	}
	return i.gateway.InterruptKernel(ctx, live.data.KernelID)
}

func (i *control) RestartSession(ctx context.Context, UUID uuid.UUID) (*model.Session, error) {
	live, err := i.getLive(ctx, UUID)
	if err != nil {
		return nil, err
	}
	i.sessionMap.Del(UUID.String())
	if live.kern != nil {
		_ = live.kern.Close(ctx)
	}

	info, err := i.gateway.RestartKernel(ctx, live.data.KernelID)
	if err != nil {
		_ = i.sessionStore.UpdateSessionStatus(ctx, live.data.ID, model.SessionDead)
		return nil, err
	}

	kern, err := i.dial(ctx, i.gateway, info, live.data.UUID)
	if err != nil {
		_ = i.sessionStore.UpdateSessionStatus(ctx, live.data.ID, model.SessionDead)
		return nil, err
	}
	lang := rSvc.New(kern, i.frames, i.pools)
	if err := lang.Init(ctx); err != nil {
		_ = kern.Close(ctx)
		return nil, code.KernelStartErr.WithMsgf("install init statements err: %v", err)
	}

	i.sessionMap.Set(UUID.String(), &liveSession{data: live.data, kern: kern, lang: lang})
	i.broadcast(ctx, UUID.String(), &wsEvent{Op: "restart"})
	return live.data, nil
}

func (i *control) ListTransfers(ctx context.Context, UUID uuid.UUID, req *common.PageReq, order constant.SortOrder) (*common.PageResp[[]*model.Transfer], error) {
	user := auth.GetCurrentUser(ctx)
	if user == nil {
		return nil, code.AuthErr
	}
	data, err := i.sessionStore.GetSessionByUUID(ctx, UUID)
	if err != nil {
		return nil, err
	}
	if data.UserID != user.UserID {
		return nil, code.AuthErr
	}
	return i.transferStore.GetTransferList(ctx, data.ID, req, order)
}

func (i *control) GetVars(ctx context.Context, UUID uuid.UUID, vars *exchange.Vars) (*rlang.GetVarsResult, error) {
	live, err := i.getLive(ctx, UUID)
	if err != nil {
		return nil, err
	}

	if max := config.Exchange().MaxReprBytes; max > 0 {
		var total int
		for _, att := range vars.Attachments {
			total += len(att)
		}
		if total > max {
			return nil, code.ParamErr.WithMsgf("attachments exceed %d bytes", max)
		}
	}

	codec := exchange.NewCodec(i.frames)
	codec.SetAttachments(vars.Attachments)
	decoded := make(map[string]any, len(vars.Values))
	for name, ev := range vars.Values {
		v, err := codec.Decode(ev)
		if err != nil {
			return nil, code.DecodeReprErr.WithMsgf("variable %s: %v", name, err)
		}
		decoded[name] = v
	}

	res, err := live.lang.GetVars(ctx, decoded)
	if err != nil {
		return nil, err
	}
	i.recordTransfers(ctx, live.data.ID, model.TransferGet, res.Transfers)
	i.broadcast(ctx, UUID.String(), &wsEvent{Op: "get", Warnings: res.Warnings})
	return res, nil
}

func (i *control) PutVars(ctx context.Context, UUID uuid.UUID, names []string) (*bridge.PutVarsData, error) {
	live, err := i.getLive(ctx, UUID)
	if err != nil {
		return nil, err
	}

	res, err := live.lang.PutVars(ctx, names)
	if err != nil {
		return nil, err
	}

	codec := exchange.NewCodec(i.frames)
	values := make(map[string]exchange.Value, len(res.Vars))
	for name, v := range res.Vars {
		ev, err := codec.Encode(v)
		if err != nil {
			return nil, code.EncodeValueErr.WithMsgf("variable %s: %v", name, err)
		}
		values[name] = ev
	}

	i.recordTransfers(ctx, live.data.ID, model.TransferPut, res.Transfers)
	i.broadcast(ctx, UUID.String(), &wsEvent{Op: "put", Warnings: res.Warnings})
	return &bridge.PutVarsData{
		Vars:      &exchange.Vars{Values: values, Attachments: codec.Attachments()},
		Transfers: res.Transfers,
		Warnings:  res.Warnings,
	}, nil
}

func (i *control) Expand(ctx context.Context, UUID uuid.UUID, text string, sigil string) (*rlang.ExpandResult, error) {
	live, err := i.getLive(ctx, UUID)
	if err != nil {
		return nil, err
	}
	return live.lang.Expand(ctx, text, sigil)
}

func (i *control) Preview(ctx context.Context, UUID uuid.UUID, name string) (string, error) {
	live, err := i.getLive(ctx, UUID)
	if err != nil {
		return "", err
	}
	return live.lang.Preview(ctx, name)
}

func (i *control) SessionInfo(ctx context.Context, UUID uuid.UUID) (*bridge.SessionInfoData, error) {
	live, err := i.getLive(ctx, UUID)
	if err != nil {
		return nil, err
	}
	out, err := live.lang.SessionInfo(ctx)
	if err != nil {
		return nil, err
	}
	return &bridge.SessionInfoData{
		Output: out,
		Language: &bridge.LanguageInfo{
			Name:              constant.LanguageName,
			KernelName:        live.data.KernelName,
			BackgroundColor:   constant.BackgroundColor,
			AssignmentPattern: rlang.AssignmentPattern,
			DefaultSigil:      rlang.DefaultSigil,
		},
	}, nil
}

func (i *control) ChangeDir(ctx context.Context, UUID uuid.UUID, dir string) error {
	live, err := i.getLive(ctx, UUID)
	if err != nil {
		return err
	}
	return live.lang.ChangeDir(ctx, dir)
}

func (i *control) recordTransfers(ctx context.Context, sessionID int64, dir model.TransferDirection, infos []*rlang.TransferInfo) {
	if len(infos) == 0 {
		return
	}
	datas := make([]*model.Transfer, len(infos))
	for idx, info := range infos {
		status := model.TransferOk
		if info.Error != "" {
			status = model.TransferFailed
		}
		datas[idx] = &model.Transfer{
			SessionID:  sessionID,
			Direction:  dir,
			SourceName: info.SourceName,
			TargetName: info.TargetName,
			RClass:     info.RClass,
			ByteSize:   info.ByteSize,
			Status:     status,
			Error:      info.Error,
			Meta:       transferMeta(info),
		}
		datas[idx].UUID = uuid.NewV4()
	}
	if err := i.transferStore.CreateTransfers(ctx, datas...); err != nil {
		logger.Warnf(ctx, "record transfers session: %d err: %+v", sessionID, err)
	}
}

// transferMeta keeps the per-variable context that has no column of its
// own.
func transferMeta(info *rlang.TransferInfo) datatypes.JSON {
	meta, err := json.Marshal(struct {
		Warning  string `json:"warning,omitempty"`
		ByteSize int64  `json:"byte_size"`
	}{Warning: info.Warning, ByteSize: info.ByteSize})
	if err != nil {
		return nil
	}
	return meta
}

// Attach is the websocket entry for a notebook frontend watching one
// session.
func (i *control) Attach(ctx context.Context) {
	ginCtx := ctx.(*gin.Context)

	UUID, err := uuid.FromString(ginCtx.Param("uuid"))
	if err != nil {
		common.ReplyErr(ginCtx, code.ParamErr.WithMsg("bad session uuid"))
		return
	}
	if _, err := i.getLive(ctx, UUID); err != nil {
		common.ReplyErr(ginCtx, err)
		return
	}

	setSuccess, err := i.rClient.SetNX(ctx,
		utils.SessionLockName(UUID),
		i.bridgeName,
		100*constant.SessionHeartTime-time.Second).Result()
	if err != nil {
		logger.Errorf(ctx, "bridge control set session lock fail uuid: %s, err: %+v", UUID, err)
		common.ReplyErr(ginCtx, code.ParamErr.WithMsgf("set session lock err: %+v", err))
		return
	}
	if !setSuccess {
		logger.Warnf(ctx, "bridge control session already attached uuid: %s", UUID)
		common.ReplyErr(ginCtx, code.SessionExistErr)
		return
	}

	defer func() {
		if _, err := i.rClient.Del(context.Background(), utils.SessionLockName(UUID)).Result(); err != nil {
			logger.Errorf(ctx, "bridge control release session lock uuid: %s err: %+v", UUID, err)
		}
	}()

	if err := i.wsClient.HandleRequestWithKeys(ginCtx.Writer, ginCtx.Request, map[string]any{
		"ctx":          ctx,
		"session_uuid": UUID.String(),
	}); err != nil {
		logger.Errorf(ctx, "bridge control HandleRequestWithKeys fail err: %+v", err)
	}
}

type wsRequest struct {
	Op   string `json:"op"`
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

type wsEvent struct {
	Op       string   `json:"op"`
	Output   string   `json:"output,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func (i *control) initWebSocket(_ context.Context) {
	i.wsClient.HandleConnect(func(s *melody.Session) {
		sessionCtx := s.MustGet("ctx").(*gin.Context)
		logger.Infof(sessionCtx, "bridge control watcher attach session: %s", s.MustGet("session_uuid"))
	})

	i.wsClient.HandleError(func(s *melody.Session, err error) {
		if errors.Is(err, melody.ErrMessageBufferFull) {
			return
		}
		if closeErr, ok := err.(*websocket.CloseError); ok {
			if closeErr.Code == websocket.CloseGoingAway {
				return
			}
		}
		if ctx, ok := s.Get("ctx"); ok {
			logger.Infof(ctx.(context.Context), "bridge control websocket HandleError keys: %+v, err: %+v", s.Keys, err)
		}
	})

	i.wsClient.HandleMessage(func(s *melody.Session, b []byte) {
		sessionCtx := s.MustGet("ctx").(*gin.Context)
		sessionUUID := s.MustGet("session_uuid").(string)

		req := &wsRequest{}
		if err := json.Unmarshal(b, req); err != nil {
			i.replyWS(sessionCtx, s, &wsEvent{Op: "error", Error: "bad request"})
			return
		}

		job := func() { i.handleWS(sessionCtx, s, sessionUUID, req) }
		if err := i.pools.Submit(job); err != nil {
			utils.SafelyRun(job)
		}
	})
}

func (i *control) handleWS(ctx *gin.Context, s *melody.Session, sessionUUID string, req *wsRequest) {
	UUID, err := uuid.FromString(sessionUUID)
	if err != nil {
		i.replyWS(ctx, s, &wsEvent{Op: req.Op, Error: "bad session uuid"})
		return
	}

	switch req.Op {
	case "ping":
		i.replyWS(ctx, s, &wsEvent{Op: "pong"})
	case "preview":
		out, err := i.Preview(ctx, UUID, req.Name)
		if err != nil {
			i.replyWS(ctx, s, &wsEvent{Op: req.Op, Error: err.Error()})
			return
		}
		i.replyWS(ctx, s, &wsEvent{Op: req.Op, Output: out})
	case "execute":
		live, err := i.getLive(ctx, UUID)
		if err != nil {
			i.replyWS(ctx, s, &wsEvent{Op: req.Op, Error: err.Error()})
			return
		}
		out, err := live.kern.Stdout(ctx, req.Code)
		if err != nil {
			i.replyWS(ctx, s, &wsEvent{Op: req.Op, Error: err.Error()})
			return
		}
		i.broadcast(ctx, sessionUUID, &wsEvent{Op: req.Op, Output: out})
	default:
		i.replyWS(ctx, s, &wsEvent{Op: req.Op, Error: "unknown op"})
	}
}

func (i *control) replyWS(ctx context.Context, s *melody.Session, event *wsEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Errorf(ctx, "bridge control marshal ws event err: %+v", err)
		return
	}
	if err := s.Write(data); err != nil {
		logger.Warnf(ctx, "bridge control write ws event err: %+v", err)
	}
}

func (i *control) broadcast(ctx context.Context, sessionUUID string, event *wsEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Errorf(ctx, "bridge control marshal ws event err: %+v", err)
		return
	}
	if err := i.wsClient.BroadcastFilter(data, func(s *melody.Session) bool {
		v, ok := s.Get("session_uuid")
		return ok && v == sessionUUID
	}); err != nil {
		logger.Warnf(ctx, "bridge control broadcast session: %s err: %+v", sessionUUID, err)
	}
}

// startReaper closes sessions whose liveness key expired and marks DB
// rows whose kernel is gone from the gateway, so a bridge crash never
// leaves rows running forever.
func (i *control) startReaper(ctx context.Context) {
	reapTicker := time.NewTicker(reapPeriod)
	utils.SafelyGo(func() {
		defer reapTicker.Stop()
		for {
			select {
			case <-i.stopReap:
				return
			case <-reapTicker.C:
			}
			i.sessionMap.ForEach(func(key string, live *liveSession) bool {
				n, err := i.rClient.Exists(ctx, utils.SessionHeartName(live.data.UUID)).Result()
				if err != nil || n > 0 {
					return true
				}
				logger.Warnf(ctx, "bridge control reap stale session: %s", key)
				i.sessionMap.Del(key)
				if live.kern != nil {
					_ = live.kern.Close(ctx)
				}
				_ = i.sessionStore.UpdateSessionStatus(ctx, live.data.ID, model.SessionDead)
				return true
			})
			i.reapOrphans(ctx)
		}
	})
}

// reapOrphans sweeps running DB rows that no bridge holds. A row whose
// kernel still exists can be redialed later and is left alone.
func (i *control) reapOrphans(ctx context.Context) {
	stales, err := i.sessionStore.GetStaleSessions(ctx, model.SessionRunning)
	if err != nil {
		logger.Warnf(ctx, "bridge control list running sessions err: %+v", err)
		return
	}
	if len(stales) == 0 {
		return
	}

	kernels, err := i.gateway.ListKernels(ctx)
	if err != nil {
		logger.Warnf(ctx, "bridge control list kernels err: %+v", err)
		return
	}
	alive := make(map[string]bool, len(kernels))
	for _, k := range kernels {
		alive[k.ID] = true
	}

	for _, data := range stales {
		if _, ok := i.sessionMap.Get(data.UUID.String()); ok {
			continue
		}
		if i.rClient != nil {
			n, err := i.rClient.Exists(ctx, utils.SessionHeartName(data.UUID)).Result()
			if err != nil || n > 0 {
				continue
			}
		}
		if alive[data.KernelID] {
			continue
		}
		logger.Warnf(ctx, "bridge control reap orphan session: %s", data.UUID)
		_ = i.sessionStore.UpdateSessionStatus(ctx, data.ID, model.SessionDead)
	}
}

func (i *control) Close(ctx context.Context) {
	if i.stopReap != nil {
		close(i.stopReap)
	}
	if i.wsClient != nil {
		if err := i.wsClient.CloseWithMsg([]byte("reboot")); err != nil {
			logger.Errorf(ctx, "Close fail CloseWithMsg err: %+v", err)
		}
	}

	i.sessionMap.ForEach(func(_ string, live *liveSession) bool {
		if live.kern != nil {
			_ = live.kern.Close(ctx)
		}
		return true
	})

	if i.pools != nil {
		i.pools.Release()
	}
}
