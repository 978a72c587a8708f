package event

import (
	"chat-fanout/errors"
	"log/slog"
	"sync"
)

// ChannelCapacityHandler watches the fill level of the sampled channels
// (telemetry queue and per-session buffers) and warns when one is close to full.
// A session buffer reaching its capacity means its notifications start being dropped.
type ChannelCapacityHandler struct {
	log                  *slog.Logger
	lowCapacityThreshold int
	mu                   sync.Mutex
	peaks                map[string]int
}

func NewChannelCapacityHandler(log *slog.Logger, lowCapacityThreshold int) *ChannelCapacityHandler {
	return &ChannelCapacityHandler{
		log:                  log,
		lowCapacityThreshold: lowCapacityThreshold,
		peaks:                make(map[string]int),
	}
}

func (h *ChannelCapacityHandler) Handle(event Event) {
	switch event.Type {
	case ChannelCapacityType:
		payload, ok := event.Payload.(ChannelCapacity)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.recordPeak(payload.ChannelName, payload.Length)
		if payload.Capacity <= 0 {
			// unbuffered
			return
		}
		capacityLeft := payload.Capacity - payload.Length
		if capacityLeft <= h.lowCapacityThreshold {
			h.log.Warn("channel almost full",
				"channel", payload.ChannelName,
				"length", payload.Length,
				"capacity", payload.Capacity)
		}
	}
}

// Peak returns the highest length observed for the channel.
func (h *ChannelCapacityHandler) Peak(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peaks[name]
}

func (h *ChannelCapacityHandler) recordPeak(name string, length int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if length > h.peaks[name] {
		h.peaks[name] = length
	}
}
