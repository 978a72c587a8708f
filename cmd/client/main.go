package main

import (
	"bufio"
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/infrastructure/grpc/chatv1"
	"chat-fanout/infrastructure/grpc/client"
	"chat-fanout/services"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const requestTimeout = 5 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// state is what the client remembers about its session.
type state struct {
	mu       sync.Mutex
	userID   domain.UserID
	username string
	token    string
	target   domain.Destination
	online   []domain.User
	seq      int
}

func (s *state) nextRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return strconv.Itoa(s.seq)
}

func run() (int, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	username := cfg.Username
	if len(os.Args) > 1 {
		username = os.Args[1]
	}
	if username == "" {
		return exitConfig, fmt.Errorf("a username is required (CHAT_USERNAME or first argument)")
	}

	log := logs.GetLoggerFromString(cfg.LogLevel)
	out := printer{out: os.Stdout, colours: cfg.Colours}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chatClient, err := client.NewChatClient(cfg.ServerAddr)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", cfg.ServerAddr, err)
	}
	defer func() {
		log.Debug("Closing connection")
		_ = chatClient.Close()
	}()

	stream, err := chatClient.Session(ctx)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open session: %w", err)
	}

	st := &state{target: domain.ToRoom(domain.DefaultRoom)}
	if err := authenticate(ctx, stream, st, username); err != nil {
		return exitRuntime, err
	}
	out.info("connected to %s as %s (%s), %d online, talking in #%s",
		cfg.ServerAddr, st.username, st.userID, len(st.online), domain.DefaultRoom)

	recvErr := make(chan error, 1)
	go func() {
		recvErr <- receive(ctx, stream, st, out)
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			_ = stream.CloseSend()
			return exitOK, nil
		case err := <-recvErr:
			if err == nil || err == io.EOF {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("session ended: %w", err)
		case line, ok := <-lines:
			if !ok {
				_ = stream.CloseSend()
				return exitOK, nil
			}
			if line == "" {
				continue
			}
			st.mu.Lock()
			target := st.target
			st.mu.Unlock()
			cmd, err := parse(line, target, st.nextRef())
			if err != nil {
				out.fail("%v", err)
				continue
			}
			if cmd.local == localQuit {
				_ = stream.CloseSend()
				return exitOK, nil
			}
			if err := execute(ctx, cmd, stream, chatClient, st, out); err != nil {
				return exitRuntime, err
			}
		}
	}
}

func authenticate(ctx context.Context, stream *client.SessionStream, st *state, username string) error {
	ref := st.nextRef()
	f, err := services.NewFrame(services.AuthenticateEvent, ref, services.AuthenticatePayload{Username: username})
	if err != nil {
		return err
	}
	if err := stream.Send(ctx, f); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	for {
		f, err := stream.Recv(ctx)
		if err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
		if f.Event != event.AckName || f.Ref != ref {
			continue
		}
		var ack services.AuthenticateAck
		if err := json.Unmarshal(f.Payload, &ack); err != nil {
			return err
		}
		if !ack.OK {
			var failure services.ErrorAck
			_ = json.Unmarshal(f.Payload, &failure)
			return fmt.Errorf("authentication refused: %s (%s)", failure.Error, failure.Code)
		}
		st.userID, st.username, st.token, st.online = ack.UserID, ack.Username, ack.Token, ack.OnlineUsers
		return nil
	}
}

// receive prints every frame pushed by the server until the stream ends.
func receive(ctx context.Context, stream *client.SessionStream, st *state, out printer) error {
	for {
		f, err := stream.Recv(ctx)
		if err != nil {
			return err
		}
		if f.Event == event.AckName {
			var failure services.ErrorAck
			if err := json.Unmarshal(f.Payload, &failure); err == nil && !failure.OK {
				out.fail("request %s failed: %s (%s)", f.Ref, failure.Error, failure.Code)
			}
			continue
		}
		st.mu.Lock()
		out.notification(f, st)
		st.mu.Unlock()
		if f.Event == event.SessionSupersededName {
			return nil
		}
	}
}

func execute(ctx context.Context, cmd command, stream *client.SessionStream, chatClient *client.ChatClient, st *state, out printer) error {
	if cmd.frame != nil {
		if err := stream.Send(ctx, *cmd.frame); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		if cmd.target != (domain.Destination{}) {
			st.mu.Lock()
			st.target = cmd.target
			st.mu.Unlock()
		}
		return nil
	}

	st.mu.Lock()
	target, token := st.target, st.token
	online := append([]domain.User(nil), st.online...)
	st.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch cmd.local {
	case localHelp:
		out.info(help)
	case localTarget:
		st.mu.Lock()
		st.target = cmd.target
		st.mu.Unlock()
		out.info("now talking to %s", cmd.target.String())
	case localWho:
		out.users(online)
	case localHistory:
		limit, _ := strconv.Atoi(cmd.arg)
		resp, err := chatClient.History(reqCtx, token, &chatv1.HistoryRequest{
			Room:  target.Room,
			Peer:  target.Recipient,
			Limit: limit,
		})
		if err != nil {
			out.fail("history failed: %v", err)
			return nil
		}
		out.messages(resp.Messages)
	case localSearch:
		if target.IsPrivate() {
			out.fail("search works on rooms only")
			return nil
		}
		resp, err := chatClient.Search(reqCtx, token, &chatv1.SearchRequest{Room: target.Room, Query: cmd.arg})
		if err != nil {
			out.fail("search failed: %v", err)
			return nil
		}
		out.messages(resp.Messages)
	}
	return nil
}
