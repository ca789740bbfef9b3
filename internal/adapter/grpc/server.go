package grpc

import (
	"context"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Server is the service's gRPC endpoint. It only carries the standard health
// protocol and reflection; the domain API is served over HTTP.
type Server struct {
	*grpc.Server
	health      *health.Server
	serviceName string
}

// NewGRPCServer creates a gRPC server with tracing and logging and registers
// the health service as NOT_SERVING until SetServing is called.
func NewGRPCServer(serviceName string, appLogger *logger.Logger) *Server {
	log := appLogger.Named("GRPCServer")
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(LoggingInterceptor(log)),
	)
	reflection.Register(srv)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	log.Info("gRPC server configured", zap.String("service", serviceName))
	return &Server{Server: srv, health: hs, serviceName: serviceName}
}

// SetServing flips the reported health of both the named service and the server as a whole.
func (s *Server) SetServing(serving bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(s.serviceName, st)
	s.health.SetServingStatus("", st)
}

// Shutdown reports NOT_SERVING and drains in-flight RPCs.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.GracefulStop()
}

// LoggingInterceptor logs each unary call with its duration and status code.
func LoggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.String("status_code", status.Code(err).String()),
			zap.String("trace_id", trace.SpanFromContext(ctx).SpanContext().TraceID().String()),
		}
		if err != nil {
			log.Error("gRPC request failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("gRPC request completed", fields...)
		}
		return resp, err
	}
}
