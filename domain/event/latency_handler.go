package event

import (
	"log/slog"
	"time"
)

// LatencyHandler measures the time between persistence and the end of delivery.
type LatencyHandler struct {
	log              *slog.Logger
	latencyThreshold time.Duration
}

func NewLatencyHandler(log *slog.Logger, latencyThreshold time.Duration) *LatencyHandler {
	return &LatencyHandler{log: log, latencyThreshold: latencyThreshold}
}

func (h *LatencyHandler) Handle(e Event) {
	payload, ok := e.Payload.(MessagePersisted)
	if !ok {
		return
	}
	leadTime := e.CreatedAt.Sub(payload.CreatedAt)

	h.log.Debug("telemetry: delivery latency",
		"message_id", payload.MessageID,
		"destination", payload.Destination.String(),
		"recipients", payload.Recipients,
		"lead_time_ms", leadTime.Milliseconds(),
	)

	if leadTime > h.latencyThreshold {
		h.log.Warn("high latency detected", "message_id", payload.MessageID, "lead_time", leadTime)
	}
}
