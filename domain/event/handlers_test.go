package event

import (
	"chat-fanout/domain"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func TestWorkerRestartedAfterPanicHandler_CountsRestarts(t *testing.T) {
	req := require.New(t)
	counter := NewCounter()
	h := NewWorkerRestartedAfterPanicHandler(testLogger(), counter)

	h.Handle(New(RestartedAfterPanicType, WorkerRestartedAfterPanic{WorkerName: "TelemetryWorker"}))
	h.Handle(New(RestartedAfterPanicType, WorkerRestartedAfterPanic{WorkerName: "TelemetryWorker"}))
	// Given an event of another type, it is ignored
	h.Handle(New(ChannelCapacityType, ChannelCapacity{}))
	// Given a malformed payload, it is not counted
	h.Handle(New(RestartedAfterPanicType, "oops"))

	req.Equal(uint64(2), counter.Get(RestartedAfterPanicType))
}

func TestDeliveryDroppedHandler_CountsDrops(t *testing.T) {
	req := require.New(t)
	counter := NewCounter()
	h := NewDeliveryDroppedHandler(testLogger(), counter)

	h.Handle(New(DeliveryDroppedType, DeliveryDropped{SessionID: "s1", Event: MessageDeliveredName, Reason: "sink buffer full"}))

	req.Equal(uint64(1), counter.Get(DeliveryDroppedType))
}

func TestChannelCapacityHandler_RecordsPeak(t *testing.T) {
	req := require.New(t)
	h := NewChannelCapacityHandler(testLogger(), 2)

	h.Handle(New(ChannelCapacityType, ChannelCapacity{ChannelName: "session:s1", Capacity: 10, Length: 9}))
	h.Handle(New(ChannelCapacityType, ChannelCapacity{ChannelName: "session:s1", Capacity: 10, Length: 3}))

	req.Equal(9, h.Peak("session:s1"))
	req.Equal(0, h.Peak("unknown"))
}

func TestCensoredHandler_CountsWords(t *testing.T) {
	req := require.New(t)
	h := NewCensoredHandler(testLogger())

	h.Handle(New(CensorshipHitType, Censored{MessageID: "m1", Words: []string{"badword", "badword"}}))

	req.Equal(uint64(2), h.Hits("badword"))
}

func TestLatencyHandler_IgnoresOtherPayloads(t *testing.T) {
	h := NewLatencyHandler(testLogger(), time.Millisecond)

	h.Handle(New(ProcessStatsType, ProcessStats{PID: 1}))
	h.Handle(Event{
		Type:      MessagePersistedType,
		CreatedAt: time.Now(),
		Payload:   MessagePersisted{MessageID: "m1", Destination: domain.ToRoom("global"), CreatedAt: time.Now().Add(-time.Second)},
	})
}
