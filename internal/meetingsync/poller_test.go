package meetingsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type pollResult struct {
	snap StatusSnapshot
	err  error
}

// scriptedFetcher replays a fixed poll sequence; the final entry
// repeats once the script is exhausted.
type scriptedFetcher struct {
	mu      sync.Mutex
	script  []pollResult
	idx     int
	calls   int
	inCall  int32
	overlap int32
}

func (f *scriptedFetcher) MeetingStatus(ctx context.Context, meetingID string) (StatusSnapshot, error) {
	if atomic.AddInt32(&f.inCall, 1) > 1 {
		atomic.StoreInt32(&f.overlap, 1)
	}
	defer atomic.AddInt32(&f.inCall, -1)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	res := f.script[f.idx]
	if f.idx < len(f.script)-1 {
		f.idx++
	}
	return res.snap, res.err
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func snap(status MeetingState, background bool) StatusSnapshot {
	return StatusSnapshot{
		MeetingID:         "m1",
		Status:            status,
		CurrentRound:      1,
		MaxRounds:         2,
		MessageCount:      3,
		BackgroundRunning: background,
	}
}

type pollRecorder struct {
	mu        sync.Mutex
	changes   []StatusSnapshot
	completes int
}

func (r *pollRecorder) onStatusChange(s StatusSnapshot) {
	r.mu.Lock()
	r.changes = append(r.changes, s)
	r.mu.Unlock()
}

func (r *pollRecorder) onComplete() {
	r.mu.Lock()
	r.completes++
	r.mu.Unlock()
}

func (r *pollRecorder) changeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func (r *pollRecorder) completeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completes
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-timeout:
			t.Fatalf("timed out waiting for %s", what)
		case <-ticker.C:
			if cond() {
				return
			}
		}
	}
}

func newTestPoller(fetcher StatusFetcher, rec *pollRecorder, interval time.Duration) *StatusPoller {
	return NewStatusPoller(fetcher, "m1", PollerOptions{
		Interval:       interval,
		OnStatusChange: rec.onStatusChange,
		OnComplete:     rec.onComplete,
	})
}

func TestPollerCompletionEdgeFiresOnce(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{script: []pollResult{
		{snap: snap(StatePending, true)},
		{snap: snap(StateRunning, true)},
		{snap: snap(StateRunning, true)},
		{snap: snap(StateCompleted, false)},
	}}
	rec := &pollRecorder{}
	p := newTestPoller(fetcher, rec, 5*time.Millisecond)

	p.Enable()
	waitFor(t, "poller to settle", func() bool { return !p.Polling() })

	if got := rec.completeCount(); got != 1 {
		t.Fatalf("expected exactly one completion, got %d", got)
	}
	if got := rec.changeCount(); got != 4 {
		t.Fatalf("expected 4 status changes, got %d", got)
	}
	last, ok := p.Status()
	if !ok || last.Status != StateCompleted {
		t.Fatalf("unexpected final snapshot: %+v ok=%v", last, ok)
	}
	if atomic.LoadInt32(&fetcher.overlap) != 0 {
		t.Fatal("overlapping status requests were issued")
	}

	// Settling stops the timer; no further polls may land.
	calls := fetcher.callCount()
	time.Sleep(30 * time.Millisecond)
	if fetcher.callCount() != calls {
		t.Fatalf("poller kept polling after settling: %d -> %d", calls, fetcher.callCount())
	}
}

func TestPollerBackgroundRunningKeepsPolling(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{script: []pollResult{
		{snap: snap(StateRunning, true)},
	}}
	rec := &pollRecorder{}
	p := newTestPoller(fetcher, rec, 5*time.Millisecond)

	p.Enable()
	waitFor(t, "several polls", func() bool { return fetcher.callCount() >= 5 })

	if !p.Polling() {
		t.Fatal("poller deactivated while background work was running")
	}
	if got := rec.completeCount(); got != 0 {
		t.Fatalf("unexpected completion callbacks: %d", got)
	}
	p.Disable()
}

func TestPollerSwallowsTransientFailures(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{script: []pollResult{
		{snap: snap(StateRunning, true)},
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		{snap: snap(StateCompleted, false)},
	}}
	rec := &pollRecorder{}
	p := newTestPoller(fetcher, rec, 5*time.Millisecond)

	p.Enable()
	waitFor(t, "completion after failures", func() bool { return !p.Polling() })

	if got := rec.completeCount(); got != 1 {
		t.Fatalf("expected one completion across failures, got %d", got)
	}
	// Failed polls fire no callback and leave the retained snapshot
	// untouched, so only the two successful polls are visible.
	rec.mu.Lock()
	got := append([]StatusSnapshot(nil), rec.changes...)
	rec.mu.Unlock()
	if len(got) != 2 || got[0].Status != StateRunning || got[1].Status != StateCompleted {
		t.Fatalf("unexpected status change sequence: %+v", got)
	}
}

func TestPollerDisableDiscardsInFlightResponse(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	fetcher := &blockingFetcher{release: release, started: started}
	rec := &pollRecorder{}
	p := newTestPoller(fetcher, rec, 5*time.Millisecond)

	p.Enable()
	<-started
	p.Disable()
	close(release)

	time.Sleep(20 * time.Millisecond)
	if got := rec.changeCount(); got != 0 {
		t.Fatalf("in-flight response fired callbacks after Disable: %d", got)
	}
	if p.Polling() {
		t.Fatal("stale response reactivated polling")
	}
}

type blockingFetcher struct {
	release <-chan struct{}
	started chan struct{}
}

func (f *blockingFetcher) MeetingStatus(ctx context.Context, meetingID string) (StatusSnapshot, error) {
	select {
	case f.started <- struct{}{}:
	default:
	}
	<-f.release
	return snap(StateRunning, true), nil
}

func TestPollerEnableIsIdempotent(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{script: []pollResult{
		{snap: snap(StateRunning, true)},
	}}
	rec := &pollRecorder{}
	p := newTestPoller(fetcher, rec, 10*time.Millisecond)

	p.Enable()
	p.Enable()
	p.Enable()

	waitFor(t, "a few polls", func() bool { return fetcher.callCount() >= 3 })
	if atomic.LoadInt32(&fetcher.overlap) != 0 {
		t.Fatal("duplicate timers issued overlapping polls")
	}
	p.Disable()
	p.Disable()
}

func TestPollerImmediateFirstPoll(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{script: []pollResult{
		{snap: snap(StateRunning, true)},
	}}
	rec := &pollRecorder{}
	// An hour-long interval proves the first poll does not wait for a
	// tick.
	p := newTestPoller(fetcher, rec, time.Hour)

	p.Enable()
	waitFor(t, "immediate poll", func() bool { return rec.changeCount() == 1 })
	p.Disable()
}

func TestPollerSettledFirstPollNoCompletionEdge(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{script: []pollResult{
		{snap: snap(StateCompleted, false)},
	}}
	rec := &pollRecorder{}
	p := newTestPoller(fetcher, rec, 5*time.Millisecond)

	p.Enable()
	waitFor(t, "self-termination", func() bool { return !p.Polling() })

	// The edge requires a prior running observation; a meeting that is
	// already settled on the first poll reports status but not
	// completion.
	if got := rec.completeCount(); got != 0 {
		t.Fatalf("completion fired without a running->settled edge: %d", got)
	}
	if got := rec.changeCount(); got != 1 {
		t.Fatalf("expected single status change, got %d", got)
	}
}

func TestPollerReEnableResetsEdgeDetection(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{script: []pollResult{
		{snap: snap(StateCompleted, false)},
	}}
	rec := &pollRecorder{}
	p := newTestPoller(fetcher, rec, 5*time.Millisecond)

	p.Enable()
	waitFor(t, "first settle", func() bool { return !p.Polling() })
	p.Enable()
	waitFor(t, "second settle", func() bool { return rec.changeCount() >= 2 && !p.Polling() })

	// Both enables observed completed without a running predecessor.
	if got := rec.completeCount(); got != 0 {
		t.Fatalf("unexpected completion after re-enable: %d", got)
	}
}

func TestPollerDefaultInterval(t *testing.T) {
	t.Parallel()

	p := NewStatusPoller(&scriptedFetcher{script: []pollResult{{snap: snap(StatePending, true)}}}, "m1", PollerOptions{})
	if p.interval != DefaultPollInterval {
		t.Fatalf("expected default interval %v, got %v", DefaultPollInterval, p.interval)
	}
}

// ctxCapturingFetcher remembers the context of the latest poll.
type ctxCapturingFetcher struct {
	inner *scriptedFetcher

	mu   sync.Mutex
	last context.Context
}

func (f *ctxCapturingFetcher) MeetingStatus(ctx context.Context, meetingID string) (StatusSnapshot, error) {
	f.mu.Lock()
	f.last = ctx
	f.mu.Unlock()
	return f.inner.MeetingStatus(ctx, meetingID)
}

func (f *ctxCapturingFetcher) lastCtx() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func TestPollerSelfTerminationReleasesContext(t *testing.T) {
	t.Parallel()

	fetcher := &ctxCapturingFetcher{inner: &scriptedFetcher{script: []pollResult{
		{snap: snap(StateRunning, true)},
		{snap: snap(StateCompleted, false)},
	}}}
	rec := &pollRecorder{}
	p := newTestPoller(fetcher, rec, 5*time.Millisecond)

	p.Enable()
	waitFor(t, "poller to settle", func() bool { return !p.Polling() })
	waitFor(t, "poll context cancellation", func() bool {
		ctx := fetcher.lastCtx()
		return ctx != nil && ctx.Err() != nil
	})
}
