package middleware

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/fieldops/internal/logger"
)

// RequestIDHeader is the response header carrying the id of a call.
const RequestIDHeader = "x-request-id"

// Logging logs gRPC calls with a per-call request id.
type Logging struct {
	logger *logger.Logger
}

func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// HandleGRPC logs method name, duration and status for each unary request.
func (l *Logging) HandleGRPC(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	requestID := ulid.Make().String()
	_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID))

	start := time.Now()
	l.logger.Info("gRPC request started",
		"method", info.FullMethod,
		"request_id", requestID)

	resp, err := handler(ctx, req)
	l.finish(info.FullMethod, requestID, start, err)

	return resp, err
}

// HandleStream logs stream lifetime the same way HandleGRPC logs unary calls.
func (l *Logging) HandleStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	requestID := ulid.Make().String()
	_ = ss.SetHeader(metadata.Pairs(RequestIDHeader, requestID))

	start := time.Now()
	l.logger.Info("gRPC stream started",
		"method", info.FullMethod,
		"request_id", requestID)

	err := handler(srv, ss)
	l.finish(info.FullMethod, requestID, start, err)

	return err
}

func (l *Logging) finish(method, requestID string, start time.Time, err error) {
	statusCode := codes.OK
	if err != nil {
		if st, ok := status.FromError(err); ok {
			statusCode = st.Code()
		} else {
			statusCode = codes.Internal
		}
	}

	l.logger.Info("gRPC request completed",
		"method", method,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
		"status", statusCode.String())

	if err != nil {
		l.logger.Error("gRPC request failed",
			"method", method,
			"request_id", requestID,
			"error", err.Error(),
			"status", statusCode.String())
	}
}
