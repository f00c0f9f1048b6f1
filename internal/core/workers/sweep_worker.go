package workers

import (
	"context"
	"log"
	"time"
)

// StreakEngine is the slice of the streak service the worker drives.
type StreakEngine interface {
	RecalculateStreak(ctx context.Context, taskID string, currentDate time.Time) error
	CheckDailyStreaks(ctx context.Context, currentDate time.Time) error
}

type RecalcJob struct {
	TaskID string
}

// SweepWorker runs the maintenance side of the streak engine in the
// background: queued per-task recalculations (policy edits, restores)
// and the periodic sweep that persists lapsed streaks. The wall clock
// enters the system only here, at the scheduling edge.
type SweepWorker struct {
	engine        StreakEngine
	jobs          chan RecalcJob
	sweepInterval time.Duration
}

func NewSweepWorker(engine StreakEngine, sweepInterval time.Duration) *SweepWorker {
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	return &SweepWorker{
		engine:        engine,
		jobs:          make(chan RecalcJob, 100),
		sweepInterval: sweepInterval,
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
	go func() {
		log.Println("Sweep Worker started in background...")

		ticker := time.NewTicker(w.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case job := <-w.jobs:
				w.processJob(ctx, job)
			case <-ticker.C:
				w.runSweep(ctx)
			case <-ctx.Done():
				log.Println("Sweep Worker shutting down...")
				return
			}
		}
	}()
}

// Enqueue schedules a full recalculation of one task's streak record.
func (w *SweepWorker) Enqueue(taskID string) {
	select {
	case w.jobs <- RecalcJob{TaskID: taskID}:
	default:
		log.Printf("Sweep Worker queue full! Dropping job for task %s", taskID)
	}
}

func (w *SweepWorker) processJob(ctx context.Context, job RecalcJob) {
	today := time.Now().UTC()
	if err := w.engine.RecalculateStreak(ctx, job.TaskID, today); err != nil {
		log.Printf("Worker failed to recalculate streak for %s: %v", job.TaskID, err)
	}
}

func (w *SweepWorker) runSweep(ctx context.Context) {
	today := time.Now().UTC()
	if err := w.engine.CheckDailyStreaks(ctx, today); err != nil {
		log.Printf("Worker daily sweep failed: %v", err)
	}
}
