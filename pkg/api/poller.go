package api

import (
	"context"
	"sync"
	"time"
)

// PollUpdate is one observed poll cycle for a job.
type PollUpdate struct {
	Job  *JobDetail
	Logs []string
}

// Poller drives the submit-then-poll loop for one logical flow. Each Watch
// call gets a monotonically increasing version; responses belonging to a
// superseded version are discarded, and starting a new watch cancels the
// previous one. Cancellation surfaces as ErrCanceled, which callers treat as
// a no-op rather than a failure.
type Poller struct {
	svc      Service
	interval time.Duration

	mu      sync.Mutex
	version uint64
	cancel  context.CancelFunc
}

// NewPoller creates a poller issuing one detail+logs cycle per interval.
func NewPoller(svc Service, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{svc: svc, interval: interval}
}

// begin registers a new watch, superseding any active one.
func (p *Poller) begin(ctx context.Context) (uint64, context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	p.version++
	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	return p.version, watchCtx
}

// current reports whether version is still the latest watch.
func (p *Poller) current(version uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return version == p.version
}

// Cancel aborts the active watch, if any. It never produces a user-visible
// error: the watch returns ErrCanceled and callers drop it silently.
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Watch polls the job until it reaches a terminal status, invoking onUpdate
// after every cycle. Detail and logs are fetched concurrently within a
// cycle; a failed logs call only omits the lines for that cycle. The final
// job detail is returned on normal completion.
func (p *Poller) Watch(ctx context.Context, jobID string, onUpdate func(PollUpdate)) (*JobDetail, error) {
	version, watchCtx := p.begin(ctx)

	for {
		var (
			wg      sync.WaitGroup
			job     *JobDetail
			jobErr  error
			logs    *JobLogs
			logsErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			job, jobErr = p.svc.FetchJob(watchCtx, jobID, nil)
		}()
		go func() {
			defer wg.Done()
			logs, logsErr = p.svc.FetchJobLogs(watchCtx, jobID, nil)
		}()
		wg.Wait()

		// A newer watch owns the flow now; this response is stale.
		if !p.current(version) {
			return nil, ErrCanceled
		}

		if jobErr != nil {
			if IsCanceled(jobErr) {
				return nil, ErrCanceled
			}
			return nil, jobErr
		}

		update := PollUpdate{Job: job}
		if logsErr == nil && logs != nil {
			update.Logs = logs.Lines
		}
		if onUpdate != nil {
			onUpdate(update)
		}

		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-watchCtx.Done():
			return nil, ErrCanceled
		case <-time.After(p.interval):
		}
	}
}
