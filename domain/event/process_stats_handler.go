package event

import (
	"chat-fanout/errors"
	"fmt"
	"log/slog"
)

type ProcessStatsHandler struct {
	log *slog.Logger
}

func NewProcessStatsHandler(log *slog.Logger) *ProcessStatsHandler {
	return &ProcessStatsHandler{log: log}
}

func (h ProcessStatsHandler) Handle(event Event) {
	switch event.Type {
	case ProcessStatsType:
		payload, ok := event.Payload.(ProcessStats)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.log.Debug(fmt.Sprintf("[PROCESS] PID %d | CPU %.2f%% | RSS %d KB | THREADS %d | GOROUTINES %d",
			payload.PID, payload.Cpu, payload.Rss/1024, payload.Threads, payload.Goroutines))
	}
}
