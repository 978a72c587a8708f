package httpapi

import (
	"chat-fanout/services"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// WebSocketHandler upgrades browser connections and hands them to the chat
// service. Each text message is one frame.
type WebSocketHandler struct {
	log            *slog.Logger
	chatService    services.IChatService
	originPatterns []string
}

func NewWebSocketHandler(log *slog.Logger, chatService services.IChatService, originPatterns []string) *WebSocketHandler {
	return &WebSocketHandler{log: log, chatService: chatService, originPatterns: originPatterns}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn("Failed to accept WebSocket", "remote", r.RemoteAddr, "error", err)
		return
	}
	h.log.Debug("WebSocket connection opened", "remote", r.RemoteAddr)

	if err := h.chatService.Serve(r.Context(), &wsStream{conn: ws}); err != nil {
		h.log.Debug("WebSocket session ended", "remote", r.RemoteAddr, "error", err)
		_ = ws.Close(websocket.StatusInternalError, "session failed")
		return
	}
	_ = ws.Close(websocket.StatusNormalClosure, "session ended")
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Send(ctx context.Context, f services.Frame) error {
	return wsjson.Write(ctx, s.conn, f)
}

// Recv returns io.EOF once the client closed the connection normally. A message
// that is not a frame becomes an unnamed frame, rejected by the service.
func (s *wsStream) Recv(ctx context.Context) (services.Frame, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure || websocket.CloseStatus(err) == websocket.StatusGoingAway {
			return services.Frame{}, io.EOF
		}
		return services.Frame{}, err
	}
	var f services.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return services.Frame{}, nil
	}
	return f, nil
}
