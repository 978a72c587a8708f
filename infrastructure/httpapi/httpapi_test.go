package httpapi_test

import (
	"chat-fanout/auth"
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/infrastructure/httpapi"
	"chat-fanout/infrastructure/storage"
	"chat-fanout/runtime"
	"chat-fanout/runtime/workers"
	"chat-fanout/services"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	o := runtime.NewOrchestrator(log, workers.NewSupervisor(log, nil, 0), nil,
		storage.NewUserRepository(db, log), storage.NewMessageStore(db, log), nil, nil,
		runtime.Config{TypingDebounce: time.Hour})
	tokens := auth.NewTokenManager("http-secret", time.Hour)
	chatService := services.NewChatService(log, o, tokens, 64)
	router := httpapi.NewRouter(log,
		httpapi.NewWebSocketHandler(log, chatService, nil),
		httpapi.NewAPIHandler(log, o, tokens, 20),
		httpapi.RouterConfig{})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func request(t *testing.T, ctx context.Context, conn *websocket.Conn, name, ref string, payload any) {
	t.Helper()
	f, err := services.NewFrame(name, ref, payload)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, f))
}

func expect(t *testing.T, ctx context.Context, conn *websocket.Conn, name string) services.Frame {
	t.Helper()
	for {
		var f services.Frame
		require.NoError(t, wsjson.Read(ctx, conn, &f))
		if f.Event == name {
			return f
		}
	}
}

func get(t *testing.T, url, token string) (*http.Response, []byte) {
	t.Helper()
	r, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, body
}

func TestWebSocket_SendThenReadHistory(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := newServer(t)

	// Given two browsers
	alice := dial(t, ctx, srv)
	request(t, ctx, alice, services.AuthenticateEvent, "a1", services.AuthenticatePayload{Username: "alice"})
	var aliceAck services.AuthenticateAck
	req.NoError(json.Unmarshal(expect(t, ctx, alice, event.AckName).Payload, &aliceAck))
	req.True(aliceAck.OK)

	bob := dial(t, ctx, srv)
	request(t, ctx, bob, services.AuthenticateEvent, "b1", services.AuthenticatePayload{Username: "bob"})
	expect(t, ctx, bob, event.AckName)

	// An unknown recipient is rejected to the sender only
	request(t, ctx, alice, services.SendMessageEvent, "a2", services.SendMessagePayload{Body: "psst", RecipientID: "ignored"})
	var rejected services.ErrorAck
	req.NoError(json.Unmarshal(expect(t, ctx, alice, event.AckName).Payload, &rejected))
	req.False(rejected.OK)

	res, body := get(t, srv.URL+"/api/online", aliceAck.Token)
	req.Equal(http.StatusOK, res.StatusCode)
	req.Contains(string(body), `"bob"`)

	// When alice writes to the default room
	request(t, ctx, alice, services.SendMessageEvent, "a3", services.SendMessagePayload{Body: "hello all", Room: "global"})

	// Then bob receives it and the history endpoint returns it
	var delivered event.MessageDelivered
	req.NoError(json.Unmarshal(expect(t, ctx, bob, event.MessageDeliveredName).Payload, &delivered))
	req.Equal("hello all", delivered.Message.Body)

	res, body = get(t, srv.URL+"/api/messages?room=global", aliceAck.Token)
	req.Equal(http.StatusOK, res.StatusCode)
	var page struct {
		Messages []struct {
			ID   string `json:"id"`
			Body string `json:"body"`
		} `json:"messages"`
	}
	req.NoError(json.Unmarshal(body, &page))
	req.Len(page.Messages, 1)
	req.Equal(string(delivered.Message.ID), page.Messages[0].ID)
}

func TestAPI_RequiresToken(t *testing.T) {
	req := require.New(t)
	srv := newServer(t)

	res, body := get(t, srv.URL+"/api/messages?room=global", "")
	req.Equal(http.StatusUnauthorized, res.StatusCode)
	req.Contains(string(body), "NotAuthenticated")

	res, _ = get(t, srv.URL+"/api/messages?room=global", "forged")
	req.Equal(http.StatusUnauthorized, res.StatusCode)

	res, _ = get(t, srv.URL+"/health", "")
	req.Equal(http.StatusOK, res.StatusCode)
}

func TestAPI_InvalidQueries(t *testing.T) {
	req := require.New(t)
	srv := newServer(t)
	token, err := auth.NewTokenManager("http-secret", time.Hour).Generate(domainUser())
	req.NoError(err)

	res, _ := get(t, srv.URL+"/api/messages", token)
	req.Equal(http.StatusBadRequest, res.StatusCode)

	res, _ = get(t, srv.URL+"/api/messages?room=global&limit=ten", token)
	req.Equal(http.StatusBadRequest, res.StatusCode)

	res, body := get(t, srv.URL+"/api/messages/search?room=global&q=hello", token)
	req.Equal(http.StatusOK, res.StatusCode)
	req.JSONEq(`{"messages":[]}`, string(body))
}

func domainUser() domain.User {
	return domain.User{ID: "u-1", Username: "carol"}
}
