package event

import (
	"chat-fanout/domain"
	"time"
)

type Type string

const (
	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
	ChannelCapacityType     Type = "CHANNEL_CAPACITY"
	MessagePersistedType    Type = "MESSAGE_PERSISTED"
	DeliveryDroppedType     Type = "DELIVERY_DROPPED"
	ProcessStatsType        Type = "PROCESS_STATS"
	CensorshipHitType       Type = "CENSORSHIP_HIT"
)

// Event is a telemetry event. It never reaches clients.
type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

func New(t Type, payload any) Event {
	return Event{Type: t, CreatedAt: time.Now().UTC(), Payload: payload}
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}

type MessagePersisted struct {
	MessageID   domain.MessageID
	Destination domain.Destination
	CreatedAt   time.Time
	Recipients  int
}

type DeliveryDropped struct {
	SessionID domain.SessionID
	Event     string
	Reason    string
}

type ProcessStats struct {
	PID        int32
	Cpu        float64
	Rss        uint64
	Threads    int32
	Goroutines int
}

type Censored struct {
	MessageID domain.MessageID
	Words     []string
}
