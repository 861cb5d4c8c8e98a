package worker

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

// blockingReclaimer lets a test hold a sweep open while further ticks fire.
type blockingReclaimer struct {
    mu      sync.Mutex
    calls   int
    release chan struct{}
}

func (b *blockingReclaimer) ReclaimStale(ctx context.Context, grace time.Duration) (int, error) {
    b.mu.Lock()
    b.calls++
    b.mu.Unlock()
    if b.release != nil {
        <-b.release
    }
    return 1, nil
}

func (b *blockingReclaimer) callCount() int {
    b.mu.Lock()
    defer b.mu.Unlock()
    return b.calls
}

func TestSweeper_RunsOnTicks(t *testing.T) {
    r := &blockingReclaimer{}
    s := NewSweeper(r, 10*time.Millisecond, 10*time.Minute)

    ctx, cancel := context.WithCancel(context.Background())
    go s.Start(ctx)

    require.Eventually(t, func() bool { return r.callCount() >= 2 },
        time.Second, 5*time.Millisecond, "expected at least two sweep runs")

    cancel()
    <-s.doneCh
}

func TestSweeper_SkipsOverlappingRuns(t *testing.T) {
    r := &blockingReclaimer{release: make(chan struct{})}
    s := NewSweeper(r, 10*time.Millisecond, 10*time.Minute)

    go s.Start(context.Background())

    // First tick enters and blocks; the latch must hold every later tick
    // back while it is in flight.
    require.Eventually(t, func() bool { return r.callCount() == 1 },
        time.Second, time.Millisecond)
    time.Sleep(50 * time.Millisecond)
    assert.Equal(t, 1, r.callCount(), "ticks during a running sweep must be skipped")

    // Once the slow pass finishes, later ticks sweep again.
    close(r.release)
    require.Eventually(t, func() bool { return r.callCount() >= 2 },
        time.Second, time.Millisecond, "loop must keep sweeping after a long pass")

    s.Stop()
}

func TestSweeper_StopWaitsForLoop(t *testing.T) {
    r := &blockingReclaimer{}
    s := NewSweeper(r, time.Hour, 10*time.Minute)

    go s.Start(context.Background())
    time.Sleep(10 * time.Millisecond)
    s.Stop()

    select {
    case <-s.doneCh:
    default:
        t.Fatal("Stop returned before the loop exited")
    }
}
