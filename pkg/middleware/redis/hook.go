package redis

import (
	"context"
	"net"
	"time"

	"github.com/redis/go-redis/extra/rediscmd/v9"
	r "github.com/redis/go-redis/v9"

	"github.com/polyglotlab/sosr/pkg/middleware/logger"
)

// logHook logs slow or failing redis commands.
type logHook struct{}

const slowThreshold = 100 * time.Millisecond

func (h *logHook) DialHook(next r.DialHook) r.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *logHook) ProcessHook(next r.ProcessHook) r.ProcessHook {
	return func(ctx context.Context, cmd r.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		cost := time.Since(start)
		if err != nil && err != r.Nil {
			logger.Warnf(ctx, "redis cmd %s err: %+v", rediscmd.CmdString(cmd), err)
		} else if cost > slowThreshold {
			logger.Warnf(ctx, "redis slow cmd %s cost: %s", rediscmd.CmdString(cmd), cost)
		}
		return err
	}
}

func (h *logHook) ProcessPipelineHook(next r.ProcessPipelineHook) r.ProcessPipelineHook {
	return func(ctx context.Context, cmds []r.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		cost := time.Since(start)
		if cost > slowThreshold {
			_, cmdsStr := rediscmd.CmdsString(cmds)
			logger.Warnf(ctx, "redis slow pipeline %s cost: %s", cmdsStr, cost)
		}
		return err
	}
}
