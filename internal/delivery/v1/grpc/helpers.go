package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// recoveryInterceptor превращает панику обработчика в codes.Internal.
func recoveryInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf(fmt.Errorf("panic: %v", r), "gRPC handler %s panicked", info.FullMethod)
				err = status.Error(codes.Internal, e.ErrInternalServerError.Error())
			}
		}()

		return handler(ctx, req)
	}
}

func loggingInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warnf("gRPC %s failed in %v: %v", info.FullMethod, time.Since(start), err)
			return resp, err
		}

		log.Debugf("gRPC %s served in %v", info.FullMethod, time.Since(start))
		return resp, nil
	}
}
