package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/config"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/evaluator"
)

// Serves the surrogate building model over the evaluator RPC so the
// controller can be run against a separate process.
func main() {
	addr := envOr("EVALUATOR_LISTEN", ":50051")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("listen failed", zap.String("addr", addr), zap.Error(err))
	}

	srv := grpc.NewServer(grpc.UnaryInterceptor(logRequests(logger)))
	evaluator.RegisterServer(srv, evaluator.NewSurrogate(evaluator.DefaultSurrogateConfig()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		srv.GracefulStop()
	}()

	logger.Info("evaluator listening", zap.String("addr", addr), zap.String("service", evaluator.ServiceName))
	if err := srv.Serve(lis); err != nil {
		logger.Fatal("serve failed", zap.Error(err))
	}
}

func logRequests(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("rpc failed", zap.String("method", info.FullMethod), zap.Error(err))
		} else {
			logger.Debug("rpc", zap.String("method", info.FullMethod))
		}
		return resp, err
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
