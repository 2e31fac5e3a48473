package session

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/polyglotlab/sosr/pkg/common"
	"github.com/polyglotlab/sosr/pkg/common/code"
	"github.com/polyglotlab/sosr/pkg/common/constant"
	"github.com/polyglotlab/sosr/pkg/common/uuid"
	"github.com/polyglotlab/sosr/pkg/core/bridge"
	"github.com/polyglotlab/sosr/pkg/core/bridge/control"
	"github.com/polyglotlab/sosr/pkg/middleware/logger"
)

type Handle struct {
	ctl bridge.Control
}

func NewSessionHandle(ctx context.Context) *Handle {
	return &Handle{ctl: control.NewControl(ctx)}
}

// Create starts a new R kernel session for the current user.
func (h *Handle) Create(ctx *gin.Context) {
	data, err := h.ctl.CreateSession(ctx)
	if err != nil {
		logger.Errorf(ctx, "CreateSession err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	common.Reply(ctx, data)
}

// List pages through the current user's sessions.
func (h *Handle) List(ctx *gin.Context) {
	req := &common.PageReq{}
	if err := ctx.ShouldBindQuery(req); err != nil {
		logger.Errorf(ctx, "parse List param err: %+v", err)
		common.ReplyErr(ctx, code.ParamErr.WithMsg(err.Error()))
		return
	}
	data, err := h.ctl.ListSessions(ctx, req)
	if err != nil {
		logger.Errorf(ctx, "ListSessions err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	common.Reply(ctx, data)
}

// Delete shuts the session's kernel down.
func (h *Handle) Delete(ctx *gin.Context) {
	UUID, err := uuid.FromString(ctx.Param("uuid"))
	if err != nil {
		common.ReplyErr(ctx, code.ParamErr.WithMsg("bad session uuid"))
		return
	}
	if err := h.ctl.DeleteSession(ctx, UUID); err != nil {
		logger.Errorf(ctx, "DeleteSession err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	common.ReplyOk(ctx)
}

// Interrupt signals the session's kernel to abort the running code.
func (h *Handle) Interrupt(ctx *gin.Context) {
	UUID, err := uuid.FromString(ctx.Param("uuid"))
	if err != nil {
		common.ReplyErr(ctx, code.ParamErr.WithMsg("bad session uuid"))
		return
	}
	if err := h.ctl.InterruptSession(ctx, UUID); err != nil {
		logger.Errorf(ctx, "InterruptSession err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	common.ReplyOk(ctx)
}

// Restart restarts the session's kernel, workspace state is lost.
func (h *Handle) Restart(ctx *gin.Context) {
	UUID, err := uuid.FromString(ctx.Param("uuid"))
	if err != nil {
		common.ReplyErr(ctx, code.ParamErr.WithMsg("bad session uuid"))
		return
	}
	data, err := h.ctl.RestartSession(ctx, UUID)
	if err != nil {
		logger.Errorf(ctx, "RestartSession err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	common.Reply(ctx, data)
}

// Transfers pages through the variable transfer log of one session.
func (h *Handle) Transfers(ctx *gin.Context) {
	UUID, err := uuid.FromString(ctx.Param("uuid"))
	if err != nil {
		common.ReplyErr(ctx, code.ParamErr.WithMsg("bad session uuid"))
		return
	}
	req := &common.PageReq{}
	if err := ctx.ShouldBindQuery(req); err != nil {
		logger.Errorf(ctx, "parse Transfers param err: %+v", err)
		common.ReplyErr(ctx, code.ParamErr.WithMsg(err.Error()))
		return
	}
	order := constant.SortOrder(ctx.DefaultQuery("order", string(constant.SortDesc)))
	data, err := h.ctl.ListTransfers(ctx, UUID, req, order)
	if err != nil {
		logger.Errorf(ctx, "ListTransfers err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	common.Reply(ctx, data)
}

// Attach upgrades to a websocket watching this session.
func (h *Handle) Attach(ctx *gin.Context) {
	h.ctl.Attach(ctx)
}

// Close releases the control plane, used on shutdown.
func (h *Handle) Close(ctx context.Context) {
	h.ctl.Close(ctx)
}
