package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		zap.L().Warn("gRPC request failed", append(fields, zap.Error(err))...)
	} else {
		zap.L().Debug("gRPC request", fields...)
	}
	return resp, err
}

func recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("Recovered from panic",
				zap.String("method", info.FullMethod),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
