package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/ledgersync/internal/metrics"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// and counts it on m by procedure and code. m may be nil.
func LoggingInterceptor(m *metrics.Metrics) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			procedure := req.Spec().Procedure
			attrs := []any{
				"procedure", procedure,
				"owner_id", GetOwnerID(ctx), // empty on AuthService
				"duration_ms", time.Since(start).Milliseconds(),
			}

			code := "ok"
			level := slog.LevelInfo
			if err != nil {
				level = slog.LevelWarn
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					code = connectErr.Code().String()
					attrs = append(attrs, "code", code, "error", connectErr.Message())
				} else {
					code = connect.CodeUnknown.String()
					level = slog.LevelError
					attrs = append(attrs, "error", err)
				}
			}
			// Internal is logged as an error, caller mistakes as warnings
			if code == connect.CodeInternal.String() {
				level = slog.LevelError
			}

			m.RPC(procedure, code)
			slog.Log(ctx, level, "RPC "+code, attrs...)
			return resp, err
		}
	}
}
