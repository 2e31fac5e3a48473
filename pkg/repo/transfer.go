package repo

import (
	"context"

	"github.com/polyglotlab/sosr/pkg/common"
	"github.com/polyglotlab/sosr/pkg/common/constant"
	"github.com/polyglotlab/sosr/pkg/repo/model"
)

type TransferRepo interface {
	CreateTransfers(ctx context.Context, datas ...*model.Transfer) error
	GetTransferList(ctx context.Context, sessionID int64, req *common.PageReq, order constant.SortOrder) (*common.PageResp[[]*model.Transfer], error)
}
