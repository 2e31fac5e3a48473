package transfer

import (
	"context"

	"github.com/polyglotlab/sosr/pkg/common"
	"github.com/polyglotlab/sosr/pkg/common/constant"
	"github.com/polyglotlab/sosr/pkg/middleware/db"
	"github.com/polyglotlab/sosr/pkg/repo"
	"github.com/polyglotlab/sosr/pkg/repo/model"
)

type transferImpl struct {
	*db.Datastore
}

func New() repo.TransferRepo {
	return &transferImpl{Datastore: db.DB()}
}

func (t *transferImpl) CreateTransfers(ctx context.Context, datas ...*model.Transfer) error {
	if len(datas) == 0 {
		return nil
	}
	return t.DBWithContext(ctx).Create(&datas).Error
}

func (t *transferImpl) GetTransferList(ctx context.Context, sessionID int64, req *common.PageReq, order constant.SortOrder) (*common.PageResp[[]*model.Transfer], error) {
	var datas []*model.Transfer
	var total int64
	req.Normalize()
	sort := "id DESC"
	if order == constant.SortAsc {
		sort = "id ASC"
	}
	d := t.DBWithContext(ctx).Model(&model.Transfer{}).Where("session_id = ?", sessionID)
	d.Count(&total)
	err := d.Order(sort).Limit(req.PageSize).Offset(req.Offest()).Find(&datas).Error
	return &common.PageResp[[]*model.Transfer]{
		List:     datas,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, err
}
