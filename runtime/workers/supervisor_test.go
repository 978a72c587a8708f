package workers

import (
	"chat-fanout/domain/event"
	"chat-fanout/mocks"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSupervisor_RestartOnPanic(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	workerMock := mocks.NewMockWorker(ctrl)
	telemetryChan := make(chan event.Event, 10)

	var calls atomic.Int32
	workerMock.EXPECT().
		Run(gomock.Any()).
		DoAndReturn(func(ctx context.Context) error {
			calls.Add(1)
			panic("boom")
		}).
		AnyTimes()

	sup := NewSupervisor(log, telemetryChan, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sup.Add(workerMock).Run(ctx)
		close(done)
	}()

	// Then the worker is restarted after each panic
	req.Eventually(func() bool { return calls.Load() >= 2 }, time.Second, 10*time.Millisecond)

	// Then each restart is reported
	evt := <-telemetryChan
	req.Equal(event.RestartedAfterPanicType, evt.Type)
	req.Equal(event.WorkerRestartedAfterPanic{WorkerName: "MockWorker"}, evt.Payload)

	sup.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Supervisor should stop once cancelled")
	}
}

func TestSupervisor_StopOnSuccess(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	workerMock := mocks.NewMockWorker(ctrl)

	// Given a worker running only once
	workerMock.EXPECT().
		Run(gomock.Any()).
		Return(nil).
		Times(1)

	sup := NewSupervisor(log, nil, 0)
	done := make(chan struct{})

	go func() {
		sup.Add(workerMock).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
		// Then supervisor detected a success and stopped
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after worker success")
	}
}

func TestTelemetryWorker_DispatchesToHandlers(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	telemetryChan := make(chan event.Event, 1)
	received := make(chan event.Event, 1)

	w := NewTelemetryWorker(log, telemetryChan, []event.Handler{
		event.HandlerFunc(func(e event.Event) { received <- e }),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	telemetryChan <- event.New(event.ProcessStatsType, event.ProcessStats{PID: 42})

	select {
	case e := <-received:
		req.Equal(event.ProcessStatsType, e.Type)
	case <-time.After(time.Second):
		req.Fail("handler not called")
	}
}

func TestChannelCapacityWorker_SamplesProvidedChannels(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	telemetryChan := make(chan event.Event, 10)

	// Given a half full buffered channel and something that is not a channel
	buffered := make(chan int, 4)
	buffered <- 1
	buffered <- 2
	provider := func() []NamedChannel {
		return []NamedChannel{{Name: "buffered", Channel: buffered}, {Name: "oops", Channel: 3}}
	}

	w := NewChannelCapacityWorker(log, provider, telemetryChan, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	select {
	case e := <-telemetryChan:
		req.Equal(event.ChannelCapacity{ChannelName: "buffered", Capacity: 4, Length: 2}, e.Payload)
	case <-time.After(time.Second):
		req.Fail("no capacity sampled")
	}
}

func TestProcessStatsWorker_ReportsCurrentProcess(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	telemetryChan := make(chan event.Event, 10)

	w := NewProcessStatsWorker(log, telemetryChan, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	select {
	case e := <-telemetryChan:
		stats, ok := e.Payload.(event.ProcessStats)
		req.True(ok)
		req.Positive(stats.PID)
		req.Positive(stats.Goroutines)
	case <-time.After(2 * time.Second):
		req.Fail("no process stats sampled")
	}
}
