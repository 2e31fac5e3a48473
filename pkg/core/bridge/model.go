package bridge

import (
	"github.com/polyglotlab/sosr/pkg/common/uuid"
	"github.com/polyglotlab/sosr/pkg/core/exchange"
)

type GetVarsReq struct {
	SessionUUID uuid.UUID      `json:"session_uuid" binding:"required"`
	Vars        *exchange.Vars `json:"vars" binding:"required"`
}

type PutVarsReq struct {
	SessionUUID uuid.UUID `json:"session_uuid" binding:"required"`
	Names       []string  `json:"names"`
}

type ExpandReq struct {
	SessionUUID uuid.UUID `json:"session_uuid" binding:"required"`
	Text        string    `json:"text"`
	Sigil       string    `json:"sigil"`
}

type PreviewReq struct {
	SessionUUID uuid.UUID `json:"session_uuid" binding:"required"`
	Name        string    `json:"name" binding:"required"`
}

type ChangeDirReq struct {
	SessionUUID uuid.UUID `json:"session_uuid" binding:"required"`
	Dir         string    `json:"dir" binding:"required"`
}
