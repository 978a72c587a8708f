// Package chatv1 describes the chat.v1.ChatService gRPC contract: a
// bidirectional Session stream of frames and unary history and search calls.
package chatv1

import (
	"chat-fanout/domain"
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	ChatService_Session_FullMethodName = "/chat.v1.ChatService/Session"
	ChatService_History_FullMethodName = "/chat.v1.ChatService/History"
	ChatService_Search_FullMethodName  = "/chat.v1.ChatService/Search"
)

// HistoryRequest pages backwards from BeforeID, or else from Before.
type HistoryRequest struct {
	Room     domain.RoomName        `json:"room,omitempty"`
	Peer     domain.UserID          `json:"peer,omitempty"`
	Before   *timestamppb.Timestamp `json:"before,omitempty"`
	BeforeID domain.MessageID       `json:"beforeId,omitempty"`
	Limit    int                    `json:"limit,omitempty"`
}

type SearchRequest struct {
	Room  domain.RoomName `json:"room"`
	Query string          `json:"q"`
	Limit int             `json:"limit,omitempty"`
}

// MessagesResponse is a page of messages, newest first. NextBefore is the
// cursor of the following page, empty on the last one.
type MessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	NextBefore domain.MessageID `json:"nextBefore,omitempty"`
}

type ChatServiceServer interface {
	Session(stream grpc.ServerStream) error
	History(ctx context.Context, req *HistoryRequest) (*MessagesResponse, error)
	Search(ctx context.Context, req *SearchRequest) (*MessagesResponse, error)
}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "chat.v1.ChatService",
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "History", Handler: historyHandler},
		{MethodName: "Search", Handler: searchHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Session",
			Handler:       sessionHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "chat/v1/chat.proto",
}

func sessionHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ChatServiceServer).Session(stream)
}

func historyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HistoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).History(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ChatService_History_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).History(ctx, req.(*HistoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func searchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SearchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).Search(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ChatService_Search_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).Search(ctx, req.(*SearchRequest))
	}
	return interceptor(ctx, in, info, handler)
}
