package e2e

import (
	"chat-fanout/domain/event"
	"chat-fanout/infrastructure/grpc/client"
	"chat-fanout/services"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

type BaseGrpcSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseGrpcSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("CHAT_SERVER_ADDR is not set")
	}
}

// ChatClient connects to the server with a colorized header and unary call logging
func (s *BaseGrpcSuite) ChatClient(t *testing.T, name string) *client.ChatClient {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	c, err := client.NewChatClient(s.Config.ServerAddr,
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))

			// Log full JSON request/response bodies if E2E_DEBUG_JSON is enabled
			if s.Config.DebugJSON {
				fmt.Fprintln(&logBuilder, "\nREQUEST:")
				fmt.Fprintln(&logBuilder, indent(req))
				if err != nil {
					fmt.Fprintln(&logBuilder, "ERROR:", err)
				} else {
					fmt.Fprintln(&logBuilder, "RESPONSE:")
					fmt.Fprintln(&logBuilder, indent(reply))
				}
			}
			t.Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.ServerAddr)
	return c
}

// Participant is an authenticated session used by a scenario.
type Participant struct {
	Client  *client.ChatClient
	Session *client.SessionStream
	Ack     services.AuthenticateAck
	refs    int
}

// Connect opens a session and authenticates it as username.
func (s *BaseGrpcSuite) Connect(ctx context.Context, username string) *Participant {
	c := s.ChatClient(s.T(), "Connect "+username)
	s.T().Cleanup(func() { _ = c.Close() })

	session, err := c.Session(ctx)
	s.Require().NoError(err)
	p := &Participant{Client: c, Session: session}

	f := s.Request(ctx, p, services.AuthenticateEvent, services.AuthenticatePayload{Username: username})
	s.Require().NoError(json.Unmarshal(f.Payload, &p.Ack))
	s.Require().True(p.Ack.OK, string(f.Payload))
	return p
}

// Request sends a frame with a fresh ref and waits for its ack.
func (s *BaseGrpcSuite) Request(ctx context.Context, p *Participant, name string, payload any) services.Frame {
	p.refs++
	ref := fmt.Sprintf("e2e-%d", p.refs)
	f, err := services.NewFrame(name, ref, payload)
	s.Require().NoError(err)
	s.Require().NoError(p.Session.Send(ctx, f))
	return s.Await(ctx, p, func(f services.Frame) bool { return f.Event == event.AckName && f.Ref == ref })
}

// Await reads frames until match accepts one.
func (s *BaseGrpcSuite) Await(ctx context.Context, p *Participant, match func(services.Frame) bool) services.Frame {
	for {
		s.Require().NoError(ctx.Err())
		f, err := p.Session.Recv(ctx)
		s.Require().NoError(err)
		if match(f) {
			return f
		}
	}
}

func indent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(b)
}
