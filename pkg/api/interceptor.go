package api

import (
	"context"
	"strings"
	"time"

	"github.com/cuemby/transctrl/pkg/log"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// ErrorTranslationInterceptor logs every unary RPC with its outcome and
// duration. Sentinel-to-status-code translation happens at the call sites
// in server.go, since only they know which domain errors are expected for
// their own method; this interceptor only observes the result.
func ErrorTranslationInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		method := methodName(info.FullMethod)
		requestID := uuid.NewString()

		resp, err := handler(ctx, req)

		logger := log.WithComponent("api")
		evt := logger.Info()
		if err != nil {
			evt = logger.Warn().Str("code", status.Code(err).String()).Err(err)
		}
		evt.Str("method", method).Str("request_id", requestID).Dur("duration", time.Since(start)).Msg("rpc handled")

		return resp, err
	}
}

func methodName(fullMethod string) string {
	parts := strings.Split(fullMethod, "/")
	return parts[len(parts)-1]
}
