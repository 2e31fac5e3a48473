package session

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/polyglotlab/sosr/pkg/common"
	"github.com/polyglotlab/sosr/pkg/common/code"
	"github.com/polyglotlab/sosr/pkg/common/uuid"
	"github.com/polyglotlab/sosr/pkg/middleware/db"
	"github.com/polyglotlab/sosr/pkg/repo"
	"github.com/polyglotlab/sosr/pkg/repo/model"
)

type sessionImpl struct {
	*db.Datastore
}

func New() repo.SessionRepo {
	return &sessionImpl{Datastore: db.DB()}
}

func (s *sessionImpl) CreateSession(ctx context.Context, data *model.Session) error {
	return s.DBWithContext(ctx).Create(data).Error
}

func (s *sessionImpl) UpdateSessionStatus(ctx context.Context, id int64, status model.SessionStatus) error {
	return s.DBWithContext(ctx).
		Model(&model.Session{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (s *sessionImpl) GetSessionByUUID(ctx context.Context, UUID uuid.UUID, selectKeys ...string) (*model.Session, error) {
	data := &model.Session{}
	query := s.DBWithContext(ctx).Where("uuid = ?", UUID)
	if len(selectKeys) != 0 {
		query = query.Select(selectKeys)
	}
	if err := query.First(data).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, code.SessionNotFoundErr
		}
		return nil, err
	}
	return data, nil
}

func (s *sessionImpl) GetSessionList(ctx context.Context, userID string, req *common.PageReq) (*common.PageResp[[]*model.Session], error) {
	var datas []*model.Session
	var total int64
	req.Normalize()
	d := s.DBWithContext(ctx).Model(&model.Session{}).Where("user_id = ?", userID)
	d.Count(&total)
	err := d.Order("id DESC").Limit(req.PageSize).Offset(req.Offest()).Find(&datas).Error
	return &common.PageResp[[]*model.Session]{
		List:     datas,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, err
}

func (s *sessionImpl) GetStaleSessions(ctx context.Context, statuses ...model.SessionStatus) ([]*model.Session, error) {
	var datas []*model.Session
	err := s.DBWithContext(ctx).
		Where("status IN ?", statuses).
		Find(&datas).Error
	return datas, err
}

func (s *sessionImpl) DeleteSession(ctx context.Context, id int64) error {
	return s.DBWithContext(ctx).Delete(&model.Session{}, id).Error
}
