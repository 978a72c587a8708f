package workers

import (
	"chat-fanout/domain/event"
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessStatsWorker samples CPU, memory and thread usage of the server process.
type ProcessStatsWorker struct {
	log            *slog.Logger
	telemetryChan  chan event.Event
	metricInterval time.Duration
}

func NewProcessStatsWorker(log *slog.Logger, telemetryChan chan event.Event, metricInterval time.Duration) *ProcessStatsWorker {
	return &ProcessStatsWorker{log: log, telemetryChan: telemetryChan, metricInterval: metricInterval}
}

func (w ProcessStatsWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := sample(proc)
			if err != nil {
				w.log.Debug("process stats unavailable", "error", err)
				continue
			}
			select {
			case w.telemetryChan <- event.New(event.ProcessStatsType, stats):
			default:
				w.log.Debug("Observability telemetry event lost")
			}
		}
	}
}

func sample(proc *process.Process) (event.ProcessStats, error) {
	cpu, err := proc.CPUPercent()
	if err != nil {
		return event.ProcessStats{}, err
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return event.ProcessStats{}, err
	}
	threads, err := proc.NumThreads()
	if err != nil {
		return event.ProcessStats{}, err
	}
	return event.ProcessStats{
		PID:        proc.Pid,
		Cpu:        cpu,
		Rss:        mem.RSS,
		Threads:    threads,
		Goroutines: goruntime.NumGoroutine(),
	}, nil
}
