package scan

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kmayer/taskflow/internal/mailbox"
	"github.com/kmayer/taskflow/internal/notify"
)

// runTimeout bounds one scan run so a stuck mailbox connection cannot
// wedge the timer permanently.
const runTimeout = 5 * time.Minute

// Scheduler triggers periodic scans and fans out notifications for the
// tasks each run creates. One scan runs at a time: timer ticks and
// manual triggers serialize on the same lock.
type Scheduler struct {
	scanner  *Scanner
	notifier notify.Notifier
	logger   *zap.Logger

	// runMu serializes scan runs; the dedup ledger's read-then-write
	// per message is not safe for concurrent scans.
	runMu sync.Mutex

	mu         sync.Mutex
	running    bool
	intervalCh chan time.Duration
	stopCh     chan struct{}
}

// NewScheduler creates a scheduler around the given scanner and
// notifier.
func NewScheduler(scanner *Scanner, notifier notify.Notifier, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scanner:    scanner,
		notifier:   notifier,
		logger:     logger,
		intervalCh: make(chan time.Duration, 1),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the periodic scan loop with the given interval in
// minutes (minimum 1). Calling Start on a running scheduler is a no-op.
func (sch *Scheduler) Start(intervalMinutes int) {
	sch.mu.Lock()
	if sch.running {
		sch.mu.Unlock()
		return
	}
	sch.running = true
	sch.mu.Unlock()

	if intervalMinutes < 1 {
		intervalMinutes = 1
	}

	interval := time.Duration(intervalMinutes) * time.Minute
	sch.logger.Info("scheduler started",
		zap.Int("interval_minutes", intervalMinutes))

	go sch.loop(interval)
}

// Stop halts the periodic loop. A scan already in flight finishes.
func (sch *Scheduler) Stop() {
	sch.mu.Lock()
	defer sch.mu.Unlock()

	if !sch.running {
		return
	}
	close(sch.stopCh)
	sch.running = false
}

// Reschedule replaces the timer interval without interrupting a run
// already in flight.
func (sch *Scheduler) Reschedule(intervalMinutes int) {
	if intervalMinutes < 1 {
		intervalMinutes = 1
	}

	select {
	case sch.intervalCh <- time.Duration(intervalMinutes) * time.Minute:
	default:
		// An unapplied reschedule is already queued; drop the older one.
		select {
		case <-sch.intervalCh:
		default:
		}
		sch.intervalCh <- time.Duration(intervalMinutes) * time.Minute
	}

	sch.logger.Info("scan interval updated",
		zap.Int("interval_minutes", intervalMinutes))
}

// TriggerNow runs one scan immediately in the given mode. It blocks
// until any in-flight scan completes, then runs; it never executes
// concurrently with a timer-driven scan.
func (sch *Scheduler) TriggerNow(ctx context.Context, mode mailbox.Mode) Result {
	return sch.runScan(ctx, mode)
}

func (sch *Scheduler) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sch.stopCh:
			return
		case d := <-sch.intervalCh:
			ticker.Reset(d)
		case <-ticker.C:
			sch.runScan(context.Background(), mailbox.Unseen())
		}
	}
}

// runScan executes one mutually excluded, timeout-bounded scan and
// fans out new-task notifications from the run's own created list.
func (sch *Scheduler) runScan(ctx context.Context, mode mailbox.Mode) Result {
	sch.runMu.Lock()
	defer sch.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	result := sch.scanner.Run(ctx, mode)

	sch.logger.Info("scan finished",
		zap.Bool("success", result.Success),
		zap.Int("emails_scanned", result.EmailsScanned),
		zap.Int("tasks_created", result.TasksCreated),
		zap.Int("skipped_marketing", result.SkippedMarketing),
		zap.Int("skipped_no_trigger", result.SkippedNoTrigger),
		zap.Int("skipped_duplicate", result.SkippedDuplicate),
		zap.Int("errors", len(result.Errors)),
	)

	if result.TasksCreated > 0 && sch.notifier.Configured(ctx) {
		for _, task := range result.Created {
			if err := sch.notifier.NotifyNewTask(ctx, task); err != nil {
				// Best effort: log and move on, never fail the scan.
				sch.logger.Warn("new-task notification failed",
					zap.String("task_id", task.ID), zap.Error(err))
			}
		}
	}

	return result
}
