package event

import (
	"chat-fanout/errors"
	"log/slog"
)

// DeliveryDroppedHandler counts notifications abandoned because a session was
// too slow or already gone.
type DeliveryDroppedHandler struct {
	log     *slog.Logger
	counter *Counter
}

func NewDeliveryDroppedHandler(log *slog.Logger, counter *Counter) *DeliveryDroppedHandler {
	return &DeliveryDroppedHandler{log: log, counter: counter}
}

func (h *DeliveryDroppedHandler) Handle(event Event) {
	switch event.Type {
	case DeliveryDroppedType:
		payload, ok := event.Payload.(DeliveryDropped)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		total := h.counter.Increment(DeliveryDroppedType)
		h.log.Debug("delivery dropped",
			"session_id", payload.SessionID,
			"event", payload.Event,
			"reason", payload.Reason,
			"total", total)
	}
}
