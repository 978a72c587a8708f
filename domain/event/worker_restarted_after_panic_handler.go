package event

import (
	"chat-fanout/errors"
	"log/slog"
)

// WorkerRestartedAfterPanicHandler counts the restarts performed by the supervisor.
type WorkerRestartedAfterPanicHandler struct {
	log     *slog.Logger
	counter *Counter
}

func NewWorkerRestartedAfterPanicHandler(log *slog.Logger, counter *Counter) *WorkerRestartedAfterPanicHandler {
	return &WorkerRestartedAfterPanicHandler{
		log:     log,
		counter: counter,
	}
}

func (h *WorkerRestartedAfterPanicHandler) Handle(event Event) {
	switch event.Type {
	case RestartedAfterPanicType:
		payload, ok := event.Payload.(WorkerRestartedAfterPanic)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		total := h.counter.Increment(RestartedAfterPanicType)
		h.log.Warn("worker restarted after panic", "worker", payload.WorkerName, "total", total)
	}
}
