package runtime

import (
	"chat-fanout/domain/event"
	"context"
	"log/slog"
	"time"
)

// Delivery hands notifications to session sinks.
//
// It is fire-and-forget: a sink that is full, closed or slower than sinkTimeout
// loses the notification, nothing is retried and the other sinks are not
// affected. Sinks are served in the given order so that a caller holding a
// per-room lock keeps the room order on every sink.
type Delivery struct {
	log           *slog.Logger
	sinkTimeout   time.Duration
	telemetryChan chan event.Event
}

func NewDelivery(log *slog.Logger, sinkTimeout time.Duration, telemetryChan chan event.Event) *Delivery {
	return &Delivery{log: log, sinkTimeout: sinkTimeout, telemetryChan: telemetryChan}
}

// Deliver sends evt to every session and returns how many accepted it.
func (d *Delivery) Deliver(ctx context.Context, evt event.DomainEvent, sessions ...*Session) int {
	// A request cancelled by its originator must not cut delivery to others.
	base := context.WithoutCancel(ctx)
	delivered := 0
	for _, s := range sessions {
		if s == nil {
			continue
		}
		sinkCtx, cancel := context.WithTimeout(base, d.sinkTimeout)
		err := s.Sink.Consume(sinkCtx, evt)
		cancel()
		if err != nil {
			d.log.Debug("notification dropped",
				"session_id", s.ID,
				"user_id", s.User.ID,
				"event", evt.Name(),
				"error", err)
			emit(d.telemetryChan, event.New(event.DeliveryDroppedType, event.DeliveryDropped{
				SessionID: s.ID,
				Event:     evt.Name(),
				Reason:    err.Error(),
			}))
			continue
		}
		delivered++
	}
	return delivered
}

// emit never blocks, telemetry is sampled on a best effort basis.
func emit(telemetryChan chan event.Event, e event.Event) {
	if telemetryChan == nil {
		return
	}
	select {
	case telemetryChan <- e:
	default:
	}
}
