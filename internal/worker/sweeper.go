// Package worker contains the background expiry sweeper that reclaims
// purchase reservations abandoned mid-checkout.
package worker

import (
    "context"
    "log"
    "sync"
    "sync/atomic"
    "time"

    "github.com/iliyamo/idea-marketplace/internal/metrics"
)

// Reclaimer is the sweep body: it cancels and removes reservations older
// than the grace window and reports how many it reclaimed. Implemented
// by the reservation manager.
type Reclaimer interface {
    ReclaimStale(ctx context.Context, grace time.Duration) (int, error)
}

// Sweeper runs the reclaim pass on a fixed interval under a single
// supervising loop. Each pass runs in its own goroutine so a slow pass
// (slow database, slow gateway) never stalls the loop, and a
// single-flight latch makes a tick that fires while the previous pass
// is still executing skip rather than queue, so a backlog can not
// multiply cancel calls against the gateway.
type Sweeper struct {
    reclaimer Reclaimer
    interval  time.Duration
    grace     time.Duration
    running   atomic.Bool
    wg        sync.WaitGroup
    stopCh    chan struct{}
    doneCh    chan struct{}
}

// NewSweeper creates a sweeper that fires every interval and reclaims
// reservations older than grace.
func NewSweeper(r Reclaimer, interval, grace time.Duration) *Sweeper {
    return &Sweeper{
        reclaimer: r,
        interval:  interval,
        grace:     grace,
        stopCh:    make(chan struct{}),
        doneCh:    make(chan struct{}),
    }
}

// Start blocks running the sweep loop until the context is cancelled or
// Stop is called, then waits for any in-flight pass to finish. Callers
// run it in its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
    log.Printf("sweeper: started (interval=%s grace=%s)", s.interval, s.grace)

    ticker := time.NewTicker(s.interval)
    defer ticker.Stop()
    defer close(s.doneCh)
    defer s.wg.Wait()

    for {
        select {
        case <-ctx.Done():
            log.Printf("sweeper: stopped (context cancelled)")
            return
        case <-s.stopCh:
            log.Printf("sweeper: stopped")
            return
        case <-ticker.C:
            s.wg.Add(1)
            go func() {
                defer s.wg.Done()
                s.sweep(ctx)
            }()
        }
    }
}

// Stop signals the loop to exit and waits until it has.
func (s *Sweeper) Stop() {
    close(s.stopCh)
    <-s.doneCh
}

// sweep runs one pass under the single-flight latch.
func (s *Sweeper) sweep(ctx context.Context) {
    if !s.running.CompareAndSwap(false, true) {
        log.Printf("sweeper: previous run still in progress, skipping tick")
        metrics.SweepRunsTotal.WithLabelValues("skipped").Inc()
        return
    }
    defer s.running.Store(false)

    n, err := s.reclaimer.ReclaimStale(ctx, s.grace)
    if err != nil {
        log.Printf("sweeper: run failed: %v", err)
        metrics.SweepRunsTotal.WithLabelValues("error").Inc()
        return
    }
    if n > 0 {
        log.Printf("sweeper: reclaimed %d stale reservation(s)", n)
    }
    metrics.SweepRunsTotal.WithLabelValues("completed").Inc()
}
