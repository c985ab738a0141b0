// Package jobqueue implements the Job Queue & Worker Pool (spec §4.5): a
// SQLite-backed queue of store.JobRecord rows drained by a fixed-size pool
// of goroutines, each claiming one job at a time via
// store.Store.ClaimNextJob's immediate-lock transaction. Grounded on the
// teacher's internal/workflow.runLane loop (claim, process, back off on
// empty or error) generalized from one lane per pipeline stage to one pool
// shared across job types, with Pause/Unpause/Resize borrowed from
// link270-shrinkray's internal/jobs.WorkerPool for operator control over a
// running daemon.
package jobqueue

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"spindle/internal/logging"
	"spindle/internal/store"
)

// Handler processes one claimed job and returns the output path to record
// on success. Returning an error fails the job; returning
// context.Canceled leaves it running so a restart's reap/reclaim picks it
// back up, matching the teacher's shutdown-leaves-item-running contract.
type Handler func(ctx context.Context, job *store.JobRecord) (outputPath string, err error)

// Config tunes the pool's polling and housekeeping cadence. Zero values
// are replaced with sane defaults by NewPool.
type Config struct {
	Concurrency        int
	PollInterval       time.Duration
	ErrorRetryInterval time.Duration
	HeartbeatInterval  time.Duration
	ReapInterval       time.Duration
	StaleAfter         time.Duration
	RetentionInterval  time.Duration
	RetentionAge       time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.ErrorRetryInterval <= 0 {
		c.ErrorRetryInterval = 5 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = 30 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 2 * time.Minute
	}
	if c.RetentionInterval <= 0 {
		c.RetentionInterval = time.Hour
	}
	if c.RetentionAge <= 0 {
		c.RetentionAge = 30 * 24 * time.Hour
	}
	return c
}

// Pool drains store.JobRecord rows with a fixed (but resizable) number of
// worker goroutines, dispatching each job to the Handler registered for
// its JobType.
type Pool struct {
	store    *store.Store
	handlers map[store.JobType]Handler
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stops   []chan struct{}

	pausedMu sync.RWMutex
	paused   bool
}

// NewPool constructs a worker pool over s, dispatching to handlers by
// job type. A job type with no registered handler fails immediately with
// a descriptive error when claimed.
func NewPool(s *store.Store, handlers map[store.JobType]Handler, cfg Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		store:    s,
		handlers: handlers,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Start launches the configured number of worker goroutines plus a
// housekeeping goroutine (stale-job reaping and job retention).
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("jobqueue: pool already running")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.wg.Add(1)
	go p.runHousekeeping(p.ctx)

	for i := 0; i < p.cfg.Concurrency; i++ {
		p.startWorkerLocked()
	}
	return nil
}

// Stop cancels all workers and waits for them to finish their current job.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// Pause stops workers from claiming new jobs; jobs already running
// continue to completion.
func (p *Pool) Pause() {
	p.pausedMu.Lock()
	p.paused = true
	p.pausedMu.Unlock()
}

// Unpause resumes claiming new jobs.
func (p *Pool) Unpause() {
	p.pausedMu.Lock()
	p.paused = false
	p.pausedMu.Unlock()
}

// IsPaused reports whether the pool is currently paused.
func (p *Pool) IsPaused() bool {
	p.pausedMu.RLock()
	defer p.pausedMu.RUnlock()
	return p.paused
}

// WorkerCount returns the number of worker goroutines currently running.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stops)
}

// Resize changes the number of worker goroutines. Growing starts new
// workers immediately; shrinking signals the excess workers to stop after
// their current job finishes (it does not preempt in-flight work, since
// the Phase Executor already guarantees a clean rollback path of its
// own).
func (p *Pool) Resize(n int) {
	if n < 1 {
		n = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		p.cfg.Concurrency = n
		return
	}
	for len(p.stops) < n {
		p.startWorkerLocked()
	}
	for len(p.stops) > n {
		last := len(p.stops) - 1
		close(p.stops[last])
		p.stops = p.stops[:last]
	}
	p.cfg.Concurrency = n
}

func (p *Pool) startWorkerLocked() {
	stop := make(chan struct{})
	p.stops = append(p.stops, stop)
	p.wg.Add(1)
	go p.runWorker(p.ctx, stop)
}

func (p *Pool) runWorker(ctx context.Context, stop chan struct{}) {
	defer p.wg.Done()
	pid := os.Getpid()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if p.IsPaused() {
			if !sleepOrDone(ctx, stop, p.cfg.PollInterval) {
				return
			}
			continue
		}

		job, err := p.store.ClaimNextJob(ctx, pid)
		if err != nil {
			p.logger.Error("failed to claim next job",
				logging.String(logging.FieldEventType, "job_claim_failed"),
				logging.Error(err))
			if !sleepOrDone(ctx, stop, p.cfg.ErrorRetryInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !sleepOrDone(ctx, stop, p.cfg.PollInterval) {
				return
			}
			continue
		}

		p.process(ctx, job)
	}
}

func (p *Pool) process(ctx context.Context, job *store.JobRecord) {
	log := p.logger.With(
		logging.String("job_id", job.ID),
		logging.String("job_type", string(job.JobType)))

	handler, ok := p.handlers[job.JobType]
	if !ok {
		msg := "no handler registered for job type " + string(job.JobType)
		log.Error(msg, logging.String(logging.FieldEventType, "job_unhandled"))
		if err := p.store.FailJob(ctx, job.ID, msg); err != nil {
			log.Error("failed to mark unhandled job as failed", logging.Error(err))
		}
		return
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go p.runHeartbeat(hbCtx, &hbWG, job.ID)

	log.Info("job started", logging.String(logging.FieldEventType, "job_started"))
	outputPath, err := handler(ctx, job)

	hbCancel()
	hbWG.Wait()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("job interrupted; left running for reclaim",
				logging.String(logging.FieldEventType, "job_interrupted"))
			return
		}
		log.Error("job failed", logging.Error(err), logging.String(logging.FieldEventType, "job_failed"))
		if failErr := p.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			log.Error("failed to record job failure", logging.Error(failErr))
		}
		return
	}

	if err := p.store.CompleteJob(ctx, job.ID, outputPath); err != nil {
		log.Error("failed to record job completion", logging.Error(err))
		return
	}
	log.Info("job completed", logging.String(logging.FieldEventType, "job_completed"))
}

func (p *Pool) runHeartbeat(ctx context.Context, wg *sync.WaitGroup, jobID string) {
	defer wg.Done()
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.store.UpdateHeartbeat(context.Background(), jobID); err != nil {
				p.logger.Warn("failed to update job heartbeat",
					logging.String("job_id", jobID), logging.Error(err))
			}
		}
	}
}

func (p *Pool) runHousekeeping(ctx context.Context) {
	defer p.wg.Done()
	reapTicker := time.NewTicker(p.cfg.ReapInterval)
	defer reapTicker.Stop()
	retentionTicker := time.NewTicker(p.cfg.RetentionInterval)
	defer retentionTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reapTicker.C:
			cutoff := time.Now().UTC().Add(-p.cfg.StaleAfter)
			n, err := p.store.ReapStaleJobs(ctx, cutoff)
			if err != nil {
				p.logger.Error("failed to reap stale jobs", logging.Error(err))
			} else if n > 0 {
				p.logger.Info("reaped stale jobs", logging.String(logging.FieldEventType, "jobs_reaped"))
			}
		case <-retentionTicker.C:
			cutoff := time.Now().UTC().Add(-p.cfg.RetentionAge)
			if _, err := p.store.DeleteOldJobs(ctx, cutoff); err != nil {
				p.logger.Error("failed to prune old jobs", logging.Error(err))
			}
		}
	}
}

// sleepOrDone waits for d, returning false if ctx or stop fire first.
func sleepOrDone(ctx context.Context, stop chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
