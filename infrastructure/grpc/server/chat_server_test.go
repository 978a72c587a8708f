package server_test

import (
	"chat-fanout/auth"
	"chat-fanout/domain/event"
	pb "chat-fanout/infrastructure/grpc/chatv1"
	"chat-fanout/infrastructure/grpc/client"
	"chat-fanout/infrastructure/grpc/server"
	"chat-fanout/infrastructure/storage"
	"chat-fanout/runtime"
	"chat-fanout/runtime/workers"
	"chat-fanout/services"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func newBufconnClient(t *testing.T) *client.ChatClient {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	o := runtime.NewOrchestrator(log, workers.NewSupervisor(log, nil, 0), nil,
		storage.NewUserRepository(db, log), storage.NewMessageStore(db, log), nil, nil,
		runtime.Config{TypingDebounce: time.Hour})
	tokens := auth.NewTokenManager("grpc-secret", time.Hour)
	chatServer := server.NewChatServer(log, services.NewChatService(log, o, tokens, 64), o, 20)
	s, _ := server.NewGrpcServer(log, chatServer, tokens)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := client.NewChatClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// frames reads the stream in the background.
func frames(stream *client.SessionStream) <-chan services.Frame {
	out := make(chan services.Frame, 64)
	go func() {
		defer close(out)
		for {
			f, err := stream.Recv(context.Background())
			if err != nil {
				return
			}
			out <- f
		}
	}()
	return out
}

func expect(t *testing.T, in <-chan services.Frame, name string) services.Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-in:
			require.True(t, ok, "stream closed before %s", name)
			if f.Event == name {
				return f
			}
		case <-deadline:
			require.FailNow(t, "frame not received", name)
		}
	}
}

func TestChatServer_SessionAndHistory(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := newBufconnClient(t)

	// Given an authenticated session
	stream, err := c.Session(ctx)
	req.NoError(err)
	in := frames(stream)
	authenticate, err := services.NewFrame(services.AuthenticateEvent, "1", services.AuthenticatePayload{Username: "alice"})
	req.NoError(err)
	req.NoError(stream.Send(ctx, authenticate))
	var ack services.AuthenticateAck
	req.NoError(json.Unmarshal(expect(t, in, event.AckName).Payload, &ack))
	req.True(ack.OK)
	req.NotEmpty(ack.Token)

	// When a message is sent to the default room
	send, err := services.NewFrame(services.SendMessageEvent, "2", services.SendMessagePayload{Body: "over grpc", Room: "global"})
	req.NoError(err)
	req.NoError(stream.Send(ctx, send))
	var delivered event.MessageDelivered
	req.NoError(json.Unmarshal(expect(t, in, event.MessageDeliveredName).Payload, &delivered))
	req.Equal("over grpc", delivered.Message.Body)

	// Then the history returns it to the token holder only
	page, err := c.History(ctx, ack.Token, &pb.HistoryRequest{Room: "global"})
	req.NoError(err)
	req.Len(page.Messages, 1)
	req.Equal(delivered.Message.ID, page.Messages[0].ID)
	req.Empty(page.NextBefore)

	// And a timestamp boundary is exclusive
	page, err = c.History(ctx, ack.Token, &pb.HistoryRequest{Room: "global", Before: timestamppb.New(delivered.Message.CreatedAt)})
	req.NoError(err)
	req.Empty(page.Messages)
	page, err = c.History(ctx, ack.Token, &pb.HistoryRequest{Room: "global", Before: timestamppb.New(delivered.Message.CreatedAt.Add(time.Microsecond))})
	req.NoError(err)
	req.Len(page.Messages, 1)

	_, err = c.History(ctx, ack.Token, &pb.HistoryRequest{Room: "global", Before: &timestamppb.Timestamp{Nanos: -1}})
	req.Equal(codes.InvalidArgument, status.Code(err))

	_, err = c.History(ctx, "forged", &pb.HistoryRequest{Room: "global"})
	req.Equal(codes.Unauthenticated, status.Code(err))

	_, err = c.History(ctx, ack.Token, &pb.HistoryRequest{})
	req.Equal(codes.InvalidArgument, status.Code(err))

	// Closing our side ends the session
	req.NoError(stream.CloseSend())
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-in:
			if !ok {
				return
			}
		case <-deadline:
			req.FailNow("stream not closed by the server")
		}
	}
}

func TestChatServer_Health(t *testing.T) {
	req := require.New(t)
	c := newBufconnClient(t)

	serving, err := c.Health(context.Background())

	req.NoError(err)
	req.Equal(grpc_health_v1.HealthCheckResponse_SERVING, serving)
}
