package runtime

import (
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/mocks"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDelivery_FailingSinkDoesNotStopOthers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromString("DEBUG")
	telemetryChan := make(chan event.Event, 4)
	d := NewDelivery(log, 50*time.Millisecond, telemetryChan)

	evt := event.RoomLeft{Room: "general", User: domain.User{ID: "u-carol", Username: "carol"}}
	full := mocks.NewMockSessionSink(ctrl)
	healthy := mocks.NewMockSessionSink(ctrl)

	// Given a sink refusing the notification and a healthy one after it
	gomock.InOrder(
		full.EXPECT().Consume(gomock.Any(), evt).Return(errors.New("buffer full")),
		healthy.EXPECT().Consume(gomock.Any(), evt).Return(nil),
	)
	sessions := []*Session{
		{ID: "s-1", User: domain.User{ID: "u-alice"}, Sink: full},
		nil,
		{ID: "s-2", User: domain.User{ID: "u-bob"}, Sink: healthy},
	}

	// When the event is delivered
	delivered := d.Deliver(context.Background(), evt, sessions...)

	// Then only the healthy sink counts and the drop is reported
	req.Equal(1, delivered)
	req.Len(telemetryChan, 1)
	dropped := <-telemetryChan
	req.Equal(event.DeliveryDroppedType, dropped.Type)
	payload, ok := dropped.Payload.(event.DeliveryDropped)
	req.True(ok)
	req.Equal(domain.SessionID("s-1"), payload.SessionID)
	req.Equal(event.RoomLeftName, payload.Event)
}

func TestDelivery_CancelledCallerStillDelivers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	d := NewDelivery(logs.GetLoggerFromString("DEBUG"), time.Second, nil)

	evt := event.MessageRead{MessageID: "m1", By: "u-bob", At: time.Now()}
	s := mocks.NewMockSessionSink(ctrl)
	s.EXPECT().Consume(gomock.Any(), evt).DoAndReturn(func(ctx context.Context, _ event.DomainEvent) error {
		return ctx.Err()
	})

	// Given the originating request is already cancelled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When delivering
	delivered := d.Deliver(ctx, evt, &Session{ID: "s-1", Sink: s})

	// Then the sink still receives a live context
	req.Equal(1, delivered)
}
