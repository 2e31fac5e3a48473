package migrate

import (
	"context"

	"github.com/polyglotlab/sosr/pkg/middleware/db"
	"github.com/polyglotlab/sosr/pkg/middleware/logger"
	"github.com/polyglotlab/sosr/pkg/repo/model"
)

func Table(ctx context.Context) error {
	d := db.DB().DBWithContext(ctx)
	models := []any{
		&model.Session{},
		&model.Transfer{},
	}
	for _, m := range models {
		if err := d.AutoMigrate(m); err != nil {
			logger.Errorf(ctx, "migrate table err: %+v", err)
			return err
		}
	}
	return nil
}
