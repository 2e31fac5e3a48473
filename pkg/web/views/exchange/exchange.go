package exchange

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/polyglotlab/sosr/pkg/common"
	"github.com/polyglotlab/sosr/pkg/common/code"
	"github.com/polyglotlab/sosr/pkg/common/uuid"
	"github.com/polyglotlab/sosr/pkg/core/bridge"
	"github.com/polyglotlab/sosr/pkg/core/bridge/control"
	"github.com/polyglotlab/sosr/pkg/middleware/logger"
)

type Handle struct {
	ctl bridge.Control
}

func NewExchangeHandle(ctx context.Context) *Handle {
	return &Handle{ctl: control.NewControl(ctx)}
}

// GetVars assigns host variables into the session's R workspace.
func (h *Handle) GetVars(ctx *gin.Context) {
	req := &bridge.GetVarsReq{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse GetVars param err: %+v", err)
		common.ReplyErr(ctx, code.ParamErr.WithMsg(err.Error()))
		return
	}
	data, err := h.ctl.GetVars(ctx, req.SessionUUID, req.Vars)
	if err != nil {
		logger.Errorf(ctx, "GetVars err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	common.Reply(ctx, data)
}

// PutVars reads R variables back to the host.
func (h *Handle) PutVars(ctx *gin.Context) {
	req := &bridge.PutVarsReq{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse PutVars param err: %+v", err)
		common.ReplyErr(ctx, code.ParamErr.WithMsg(err.Error()))
		return
	}
	data, err := h.ctl.PutVars(ctx, req.SessionUUID, req.Names)
	if err != nil {
		logger.Errorf(ctx, "PutVars err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	common.Reply(ctx, data)
}

// Expand interpolates R expressions inside text.
func (h *Handle) Expand(ctx *gin.Context) {
	req := &bridge.ExpandReq{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse Expand param err: %+v", err)
		common.ReplyErr(ctx, code.ParamErr.WithMsg(err.Error()))
		return
	}
	data, err := h.ctl.Expand(ctx, req.SessionUUID, req.Text, req.Sigil)
	if err != nil {
		logger.Errorf(ctx, "Expand err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	common.Reply(ctx, data)
}

// Preview renders the str() view of one R variable.
func (h *Handle) Preview(ctx *gin.Context) {
	req := &bridge.PreviewReq{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse Preview param err: %+v", err)
		common.ReplyErr(ctx, code.ParamErr.WithMsg(err.Error()))
		return
	}
	data, err := h.ctl.Preview(ctx, req.SessionUUID, req.Name)
	if err != nil {
		logger.Errorf(ctx, "Preview err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	common.Reply(ctx, data)
}

// SessionInfo returns the kernel's sessionInfo() output and the language
// metadata frontends render R cells with.
func (h *Handle) SessionInfo(ctx *gin.Context) {
	UUID, err := uuid.FromString(ctx.Query("session_uuid"))
	if err != nil {
		common.ReplyErr(ctx, code.ParamErr.WithMsg("bad session uuid"))
		return
	}
	data, err := h.ctl.SessionInfo(ctx, UUID)
	if err != nil {
		logger.Errorf(ctx, "SessionInfo err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	common.Reply(ctx, data)
}

// ChangeDir switches the kernel working directory.
func (h *Handle) ChangeDir(ctx *gin.Context) {
	req := &bridge.ChangeDirReq{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse ChangeDir param err: %+v", err)
		common.ReplyErr(ctx, code.ParamErr.WithMsg(err.Error()))
		return
	}
	if err := h.ctl.ChangeDir(ctx, req.SessionUUID, req.Dir); err != nil {
		logger.Errorf(ctx, "ChangeDir err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	common.ReplyOk(ctx)
}
