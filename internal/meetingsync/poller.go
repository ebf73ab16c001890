package meetingsync

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is used when PollerOptions.Interval is unset.
const DefaultPollInterval = 3 * time.Second

// StatusFetcher issues one status request for a meeting.
type StatusFetcher interface {
	MeetingStatus(ctx context.Context, meetingID string) (StatusSnapshot, error)
}

// PollerOptions configure a StatusPoller.
type PollerOptions struct {
	Interval       time.Duration
	OnStatusChange func(StatusSnapshot)
	OnComplete     func()
}

// StatusPoller samples a meeting's status on a fixed interval. It is
// independent of the stream channel and detects completion even when
// the stream is down or its completion event was lost.
//
// Polls are issued serially from a single goroutine, so at most one
// request is in flight at a time and an older response can never
// overwrite a newer snapshot. Request failures are swallowed: no
// callback fires, no state changes, and the schedule continues.
type StatusPoller struct {
	fetcher        StatusFetcher
	meetingID      string
	interval       time.Duration
	onStatusChange func(StatusSnapshot)
	onComplete     func()

	mu         sync.Mutex
	active     bool
	generation uint64
	cancel     context.CancelFunc
	last       *StatusSnapshot
	prevStatus MeetingState
}

// NewStatusPoller builds a poller for the given meeting. Callbacks are
// optional; a nil callback is simply skipped.
func NewStatusPoller(fetcher StatusFetcher, meetingID string, opts PollerOptions) *StatusPoller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &StatusPoller{
		fetcher:        fetcher,
		meetingID:      meetingID,
		interval:       interval,
		onStatusChange: opts.OnStatusChange,
		onComplete:     opts.OnComplete,
	}
}

// Enable arms the poller: one immediate poll, then one per interval.
// Calling Enable while armed is a no-op. Re-enabling after the poller
// stopped resets completion edge detection.
func (p *StatusPoller) Enable() {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return
	}
	p.active = true
	p.generation++
	gen := p.generation
	p.prevStatus = ""
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx, gen)
}

// Disable stops polling. A response already in flight is discarded and
// cannot reactivate the poller. Safe to call repeatedly.
func (p *StatusPoller) Disable() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Polling reports whether the interval timer is currently armed.
func (p *StatusPoller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Status returns the latest snapshot, and false when no poll has
// succeeded yet.
func (p *StatusPoller) Status() (StatusSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return StatusSnapshot{}, false
	}
	return *p.last, true
}

func (p *StatusPoller) run(ctx context.Context, gen uint64) {
	if !p.poll(ctx, gen) {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.poll(ctx, gen) {
				return
			}
		}
	}
}

// poll performs one status request and applies the result. It returns
// false when the loop should stop, either because the poller was
// disabled or because the meeting settled.
func (p *StatusPoller) poll(ctx context.Context, gen uint64) bool {
	snap, err := p.fetcher.MeetingStatus(ctx, p.meetingID)
	if err != nil {
		// Transient failures keep the schedule; a canceled context
		// means the poller was disabled while the request was out.
		return ctx.Err() == nil
	}

	p.mu.Lock()
	if !p.active || p.generation != gen {
		p.mu.Unlock()
		return false
	}
	completed := p.prevStatus == StateRunning && snap.Status != StateRunning && !snap.BackgroundRunning
	p.prevStatus = snap.Status
	p.last = &snap
	settled := snap.Settled()
	var cancel context.CancelFunc
	if settled {
		// The meeting is done; stop without requiring the caller to
		// disable us.
		p.active = false
		cancel = p.cancel
		p.cancel = nil
	}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if p.onStatusChange != nil {
		p.onStatusChange(snap)
	}
	if completed && p.onComplete != nil {
		p.onComplete()
	}
	return !settled
}
