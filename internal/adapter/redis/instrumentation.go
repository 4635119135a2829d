package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/0x-mperego/unimec-display/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// instrumentation is a goredis.Hook feeding RedisMetrics. Pipelines count
// as one "pipeline" operation.
type instrumentation struct {
	metrics *metrics.RedisMetrics
}

var _ goredis.Hook = instrumentation{}

func (h instrumentation) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.metrics.IncConnectionError()
		}
		return conn, err
	}
}

func (h instrumentation) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		began := time.Now()
		err := next(ctx, cmd)
		h.metrics.ObserveOp(cmd.Name(), outcome(err), time.Since(began).Seconds())
		return err
	}
}

func (h instrumentation) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		began := time.Now()
		err := next(ctx, cmds)
		h.metrics.ObserveOp("pipeline", outcome(err), time.Since(began).Seconds())
		return err
	}
}

// outcome separates a missing key from a real failure.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, goredis.Nil):
		return "miss"
	default:
		return "error"
	}
}
