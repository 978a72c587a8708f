package client

import (
	pb "chat-fanout/infrastructure/grpc/chatv1"
	"chat-fanout/services"
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

// ChatClient talks to chat.v1.ChatService with the JSON codec.
type ChatClient struct {
	conn *grpc.ClientConn
}

// NewChatClient creates a client for target. Extra options are appended to the
// defaults (insecure transport, JSON content subtype).
func NewChatClient(target string, opts ...grpc.DialOption) (*ChatClient, error) {
	options := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(pb.CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, options...)
	if err != nil {
		return nil, fmt.Errorf("chat client for %s: %w", target, err)
	}
	return &ChatClient{conn: conn}, nil
}

func (c *ChatClient) Close() error {
	return c.conn.Close()
}

// Session opens the bidirectional frame stream. It lives until ctx is done or
// CloseSend is called and the server ends the stream.
func (c *ChatClient) Session(ctx context.Context) (*SessionStream, error) {
	stream, err := c.conn.NewStream(ctx, &pb.ChatService_ServiceDesc.Streams[0], pb.ChatService_Session_FullMethodName)
	if err != nil {
		return nil, err
	}
	return &SessionStream{stream: stream}, nil
}

func (c *ChatClient) History(ctx context.Context, token string, req *pb.HistoryRequest) (*pb.MessagesResponse, error) {
	res := new(pb.MessagesResponse)
	if err := c.conn.Invoke(withToken(ctx, token), pb.ChatService_History_FullMethodName, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *ChatClient) Search(ctx context.Context, token string, req *pb.SearchRequest) (*pb.MessagesResponse, error) {
	res := new(pb.MessagesResponse)
	if err := c.conn.Invoke(withToken(ctx, token), pb.ChatService_Search_FullMethodName, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// SessionStream is the client side of a session, it speaks frames.
type SessionStream struct {
	stream grpc.ClientStream
}

func (s *SessionStream) Send(_ context.Context, f services.Frame) error {
	return s.stream.SendMsg(&f)
}

func (s *SessionStream) Recv(_ context.Context) (services.Frame, error) {
	var f services.Frame
	err := s.stream.RecvMsg(&f)
	return f, err
}

func (s *SessionStream) CloseSend() error {
	return s.stream.CloseSend()
}

// Health checks the serving status of the chat service. Health messages are
// protobuf, the JSON subtype is overridden for this call.
func (c *ChatClient) Health(ctx context.Context) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	res, err := grpc_health_v1.NewHealthClient(c.conn).Check(ctx,
		&grpc_health_v1.HealthCheckRequest{Service: pb.ChatService_ServiceDesc.ServiceName},
		grpc.CallContentSubtype("proto"))
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}
	return res.GetStatus(), nil
}
