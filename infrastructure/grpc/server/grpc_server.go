package server

import (
	"chat-fanout/auth"
	pb "chat-fanout/infrastructure/grpc/chatv1"
	"log/slog"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// NewGrpcServer builds the server exposing the chat service and the standard
// health service. Unary calls are logged then authenticated.
func NewGrpcServer(log *slog.Logger, chatServer *ChatServer, tokens *auth.TokenManager) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc3.UnaryLoggingInterceptor(log),
			auth.UnaryInterceptor(tokens),
		))
	pb.RegisterChatServiceServer(s, chatServer)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus(pb.ChatService_ServiceDesc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return s, healthServer
}
