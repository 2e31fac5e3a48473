package repo

import (
	"context"

	"github.com/polyglotlab/sosr/pkg/common"
	"github.com/polyglotlab/sosr/pkg/common/uuid"
	"github.com/polyglotlab/sosr/pkg/repo/model"
)

type SessionRepo interface {
	CreateSession(ctx context.Context, data *model.Session) error
	UpdateSessionStatus(ctx context.Context, id int64, status model.SessionStatus) error
	GetSessionByUUID(ctx context.Context, UUID uuid.UUID, selectKeys ...string) (*model.Session, error)
	GetSessionList(ctx context.Context, userID string, req *common.PageReq) (*common.PageResp[[]*model.Session], error)
	GetStaleSessions(ctx context.Context, statuses ...model.SessionStatus) ([]*model.Session, error)
	DeleteSession(ctx context.Context, id int64) error
}
