package server

import (
	"chat-fanout/auth"
	"chat-fanout/domain"
	"chat-fanout/errors"
	pb "chat-fanout/infrastructure/grpc/chatv1"
	"chat-fanout/runtime"
	"chat-fanout/services"
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ChatServer struct {
	log          *slog.Logger
	chatService  services.IChatService
	orchestrator *runtime.Orchestrator
	historyLimit int
}

func NewChatServer(log *slog.Logger, chatService services.IChatService,
	orchestrator *runtime.Orchestrator, historyLimit int) *ChatServer {
	return &ChatServer{
		log:          log,
		chatService:  chatService,
		orchestrator: orchestrator,
		historyLimit: historyLimit,
	}
}

// Session carries the frame protocol over a bidirectional stream.
// It blocks until the client closes its side, the session is superseded or
// the server stops.
func (s *ChatServer) Session(stream grpc.ServerStream) error {
	s.log.Debug("gRPC session opened")
	if err := s.chatService.Serve(stream.Context(), &frameStream{stream: stream}); err != nil {
		s.log.Warn("gRPC session ended with error", "error", err)
		return errors.MapToGRPCError(err)
	}
	return nil
}

func (s *ChatServer) History(ctx context.Context, req *pb.HistoryRequest) (*pb.MessagesResponse, error) {
	userID, ok := auth.UserFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "identity is missing")
	}
	limit := s.limit(req.Limit)
	query := domain.HistoryQuery{
		Room:     req.Room,
		Peer:     req.Peer,
		BeforeID: req.BeforeID,
		Limit:    limit,
	}
	if req.Before != nil {
		if err := req.Before.CheckValid(); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		query.Before = req.Before.AsTime()
	}
	messages, err := s.orchestrator.History(ctx, userID, query)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toMessagesResponse(messages, limit), nil
}

func (s *ChatServer) Search(ctx context.Context, req *pb.SearchRequest) (*pb.MessagesResponse, error) {
	if _, ok := auth.UserFrom(ctx); !ok {
		return nil, status.Error(codes.Unauthenticated, "identity is missing")
	}
	messages, err := s.orchestrator.Search(ctx, req.Room, req.Query, s.limit(req.Limit))
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &pb.MessagesResponse{Messages: messages}, nil
}

func (s *ChatServer) limit(requested int) int {
	if requested <= 0 {
		requested = s.historyLimit
	}
	return domain.NormalizeLimit(requested)
}

// toMessagesResponse sets the cursor when the page is full, more messages may follow.
func toMessagesResponse(messages []domain.Message, limit int) *pb.MessagesResponse {
	res := &pb.MessagesResponse{Messages: messages}
	if res.Messages == nil {
		res.Messages = []domain.Message{}
	}
	if len(messages) == limit && limit > 0 {
		res.NextBefore = messages[len(messages)-1].ID
	}
	return res
}

// frameStream adapts a gRPC stream to the chat service. gRPC streams are
// bound to their own context, the one passed to Send and Recv is ignored.
type frameStream struct {
	stream grpc.ServerStream
}

func (f *frameStream) Send(_ context.Context, frame services.Frame) error {
	return f.stream.SendMsg(&frame)
}

func (f *frameStream) Recv(_ context.Context) (services.Frame, error) {
	var frame services.Frame
	err := f.stream.RecvMsg(&frame)
	return frame, err
}
