// Package poller drives client-side polling of job progress until the job
// reaches a terminal state.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// DefaultInterval is the reference poll interval.
const DefaultInterval = 3 * time.Second

// Fetcher retrieves the current state of a job. Satisfied by the job store
// directly, or by an HTTP client hitting the jobs endpoint; the poller
// does not care which transport is behind it.
type Fetcher interface {
	GetJob(ctx context.Context, id string) (*model.Job, error)
}

// Update is one observation delivered to the subscriber. Exactly one of
// Job/Err is set; an Err update is a soft signal (the poll keeps running).
type Update struct {
	Job *model.Job
	Err error
}

// Handle controls one live poll.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the poll. Safe to call multiple times; a response already in
// flight is discarded rather than delivered to a cancelled subscription.
func (h *Handle) Stop() {
	h.cancel()
}

// Done is closed when the poll loop has fully stopped, either on a terminal
// job status or after cancellation.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Poller runs at most one live poll per job id. Starting a poll for an id
// that is already being polled cancels the prior poll first.
type Poller struct {
	fetch    Fetcher
	interval time.Duration

	mu     sync.Mutex
	active map[string]*Handle
}

// New creates a Poller. A non-positive interval falls back to DefaultInterval.
func New(fetch Fetcher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		fetch:    fetch,
		interval: interval,
		active:   make(map[string]*Handle),
	}
}

// Poll fetches the job immediately, then re-fetches every interval until
// the status is terminal, delivering each observation to onUpdate. Fetch
// errors are surfaced as soft Update.Err signals and retried on the next
// tick; only a terminal status or cancellation stops the loop.
func (p *Poller) Poll(ctx context.Context, jobID string, onUpdate func(Update)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	if prev, ok := p.active[jobID]; ok {
		prev.Stop()
	}
	p.active[jobID] = h
	p.mu.Unlock()

	go p.loop(ctx, jobID, h, onUpdate)
	return h
}

func (p *Poller) loop(ctx context.Context, jobID string, h *Handle, onUpdate func(Update)) {
	defer close(h.done)
	defer func() {
		p.mu.Lock()
		if p.active[jobID] == h {
			delete(p.active, jobID)
		}
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		job, err := p.fetch.GetJob(ctx, jobID)

		// A late response must not resurrect a cancelled subscription.
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			zap.L().Warn("job poll fetch failed, retrying next tick",
				zap.String("job_id", jobID),
				zap.Error(err),
			)
			onUpdate(Update{Err: err})
		} else {
			onUpdate(Update{Job: job})
			if job.Status.Terminal() {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
