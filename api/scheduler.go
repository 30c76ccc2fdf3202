/*
scheduler.go - Background sweep scheduler

PURPOSE:
  Periodically runs the engine's lazy sweeps: expiring uncollected
  reservation holds (releasing their copies and promoting the next
  position) and emitting due-soon notifications for borrows approaching
  their due date.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Grace-window expiry is evaluated lazily here, not with per-hold
    timers; a hold a few minutes past its deadline is acceptable
  - Sweeps are idempotent: an already-expired hold or already-emitted
    notification is skipped or deduped downstream

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSweepScheduler(svc)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - lending/queue.go: ExpireHolds
  - lending/sweep.go: DueSoonScan
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shelfline/lending-engine/lending"
)

// SweepScheduler runs the engine's periodic sweeps.
type SweepScheduler struct {
	Service       *lending.Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweepScheduler creates a new scheduler.
func NewSweepScheduler(svc *lending.Service) *SweepScheduler {
	return &SweepScheduler{
		Service:       svc,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with check interval: %v", ss.CheckInterval)
}

// Stop stops the scheduler.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SweepScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.sweep()

	for {
		select {
		case <-ss.ticker.C:
			ss.sweep()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SweepScheduler) sweep() {
	ctx := context.Background()

	expired, err := ss.Service.ExpireHolds(ctx)
	if err != nil {
		log.Printf("[Scheduler] Hold expiry sweep failed: %v", err)
	}

	emitted, err := ss.Service.DueSoonScan(ctx)
	if err != nil {
		log.Printf("[Scheduler] Due-soon scan failed: %v", err)
	}

	if expired > 0 || emitted > 0 {
		log.Printf("[Scheduler] Sweep completed: %d holds expired, %d due-soon notices", expired, emitted)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ss *SweepScheduler) RunNow() {
	ss.sweep()
}

// GetNextRunTime returns when the next scheduled sweep will occur.
func (ss *SweepScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ss.CheckInterval)
}
