package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/codewright-io/codewright/pkg/api"
)

// Logging returns middleware that emits structured log entries for each
// run request. The log entry includes the request ID (from context), the
// task length, iteration budget, duration, and whether the run handler
// returned an error.
//
// Note: the HTTP method and path are not available at the RunStarter
// level. For full HTTP-level logging (including status codes), use
// HTTP-level middleware in the adapter.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next RunStarter) RunStarter {
		return RunStarterFunc(func(ctx context.Context, req *api.CreateRunRequest, w EventWriter) error {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			err := next.StartRun(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.Int("task_len", len(req.Task)),
				slog.Int("max_iterations", req.EffectiveMaxIterations()),
				slog.Int("supplied_tests", len(req.Tests)),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "run failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "run completed", attrs...)
			}

			return err
		})
	}
}
