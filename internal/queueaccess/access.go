// Package queueaccess provides a single interface over the job queue that
// works whether the caller is talking to the daemon over IPC or holding the
// store open directly in-process (e.g. a one-shot CLI invocation with no
// daemon running).
package queueaccess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spindle/internal/ipc"
	"spindle/internal/jobqueue"
	"spindle/internal/store"
)

// Access provides queue operations regardless of IPC or direct store backing.
type Access interface {
	Status(ctx context.Context) (ipc.StatusResponse, error)
	JobList(ctx context.Context, req ipc.JobListRequest) ([]ipc.Job, error)
	JobDescribe(ctx context.Context, id string) (ipc.Job, error)
	JobEnqueue(ctx context.Context, req ipc.JobEnqueueRequest) (ipc.Job, error)
	JobRetry(ctx context.Context, id string) (ipc.Job, error)
	JobCancel(ctx context.Context, id string) (bool, error)
	Pause(ctx context.Context) (bool, error)
	Unpause(ctx context.Context) (bool, error)
	Resize(ctx context.Context, concurrency int) (int, error)
	QueueHealth(ctx context.Context) (ipc.QueueHealthResponse, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewDirectAccess returns an Access backed by a store held in the same
// process, for tooling that must work without a running daemon. pool may be
// nil when no worker pool is running in-process; Pause, Unpause and Resize
// return an error in that case, and Status reports Running=false with a
// zero worker count.
func NewDirectAccess(s *store.Store, pool *jobqueue.Pool) Access {
	return &directAccess{store: s, pool: pool}
}

var errNoPool = errors.New("no worker pool running in this process")

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Status(_ context.Context) (ipc.StatusResponse, error) {
	resp, err := a.client.Status()
	if err != nil {
		return ipc.StatusResponse{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) JobList(_ context.Context, req ipc.JobListRequest) ([]ipc.Job, error) {
	resp, err := a.client.JobList(req)
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (a *ipcAccess) JobDescribe(_ context.Context, id string) (ipc.Job, error) {
	resp, err := a.client.JobDescribe(id)
	if err != nil {
		return ipc.Job{}, err
	}
	return resp.Job, nil
}

func (a *ipcAccess) JobEnqueue(_ context.Context, req ipc.JobEnqueueRequest) (ipc.Job, error) {
	resp, err := a.client.JobEnqueue(req)
	if err != nil {
		return ipc.Job{}, err
	}
	return resp.Job, nil
}

func (a *ipcAccess) JobRetry(_ context.Context, id string) (ipc.Job, error) {
	resp, err := a.client.JobRetry(id)
	if err != nil {
		return ipc.Job{}, err
	}
	return resp.Job, nil
}

func (a *ipcAccess) JobCancel(_ context.Context, id string) (bool, error) {
	resp, err := a.client.JobCancel(id)
	if err != nil {
		return false, err
	}
	return resp.Cancelled, nil
}

func (a *ipcAccess) Pause(_ context.Context) (bool, error) {
	resp, err := a.client.Pause()
	if err != nil {
		return false, err
	}
	return resp.Paused, nil
}

func (a *ipcAccess) Unpause(_ context.Context) (bool, error) {
	resp, err := a.client.Unpause()
	if err != nil {
		return false, err
	}
	return resp.Paused, nil
}

func (a *ipcAccess) Resize(_ context.Context, concurrency int) (int, error) {
	resp, err := a.client.Resize(concurrency)
	if err != nil {
		return 0, err
	}
	return resp.WorkerCount, nil
}

func (a *ipcAccess) QueueHealth(_ context.Context) (ipc.QueueHealthResponse, error) {
	resp, err := a.client.QueueHealth()
	if err != nil {
		return ipc.QueueHealthResponse{}, err
	}
	return *resp, nil
}

type directAccess struct {
	store *store.Store
	pool  *jobqueue.Pool
}

func convertJob(job *store.JobRecord) ipc.Job {
	wire := ipc.Job{
		ID:              job.ID,
		JobType:         string(job.JobType),
		Status:          string(job.Status),
		Priority:        job.Priority,
		FileID:          job.FileID,
		PolicyName:      job.PolicyName,
		PlanID:          job.PlanID,
		ProgressPercent: job.ProgressPercent,
		OutputPath:      job.OutputPath,
		BackupPath:      job.BackupPath,
		ErrorMessage:    job.ErrorMessage,
		Origin:          string(job.Origin),
		BatchID:         job.BatchID,
	}
	if !job.CreatedAt.IsZero() {
		wire.CreatedAt = job.CreatedAt.Format(time.RFC3339)
	}
	if job.StartedAt != nil {
		wire.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		wire.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return wire
}

func (a *directAccess) Status(ctx context.Context) (ipc.StatusResponse, error) {
	resp := ipc.StatusResponse{Running: a.pool != nil}
	if a.pool != nil {
		resp.Paused = a.pool.IsPaused()
		resp.WorkerCount = a.pool.WorkerCount()
	}
	counts, err := a.jobCounts(ctx)
	if err != nil {
		return ipc.StatusResponse{}, err
	}
	resp.JobCounts = counts
	return resp, nil
}

func (a *directAccess) jobCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, 5)
	for _, status := range []store.JobStatus{store.JobQueued, store.JobRunning, store.JobCompleted, store.JobFailed, store.JobCancelled} {
		jobs, err := a.store.ListJobs(ctx, store.ListJobsOptions{Status: status})
		if err != nil {
			return nil, err
		}
		counts[string(status)] = len(jobs)
	}
	return counts, nil
}

func (a *directAccess) JobList(ctx context.Context, req ipc.JobListRequest) ([]ipc.Job, error) {
	opts := store.ListJobsOptions{
		Status:     store.JobStatus(strings.TrimSpace(req.Status)),
		JobType:    store.JobType(strings.TrimSpace(req.JobType)),
		SortBy:     req.SortBy,
		Descending: req.Descending,
		Limit:      req.Limit,
	}
	jobs, err := a.store.ListJobs(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]ipc.Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, convertJob(job))
	}
	return out, nil
}

func (a *directAccess) JobDescribe(ctx context.Context, id string) (ipc.Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ipc.Job{}, errors.New("id is required")
	}
	job, err := a.store.GetJob(ctx, id)
	if err != nil {
		return ipc.Job{}, err
	}
	if job == nil {
		return ipc.Job{}, fmt.Errorf("job %q not found", id)
	}
	return convertJob(job), nil
}

func (a *directAccess) JobEnqueue(ctx context.Context, req ipc.JobEnqueueRequest) (ipc.Job, error) {
	jobType := store.JobType(strings.TrimSpace(req.JobType))
	switch jobType {
	case store.JobScan, store.JobApply, store.JobTranscode, store.JobMove, store.JobProcess, store.JobPrune:
	default:
		return ipc.Job{}, fmt.Errorf("job_type: unsupported value %q", req.JobType)
	}
	job, err := a.store.EnqueueJob(ctx, &store.JobRecord{
		JobType:    jobType,
		FileID:     req.FileID,
		PolicyName: req.PolicyName,
		PolicyJSON: req.PolicyJSON,
		PlanID:     req.PlanID,
		Priority:   req.Priority,
		Origin:     store.OriginCLI,
	})
	if err != nil {
		return ipc.Job{}, err
	}
	return convertJob(job), nil
}

func (a *directAccess) JobRetry(ctx context.Context, id string) (ipc.Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ipc.Job{}, errors.New("id is required")
	}
	job, err := a.store.GetJob(ctx, id)
	if err != nil {
		return ipc.Job{}, err
	}
	if job == nil {
		return ipc.Job{}, fmt.Errorf("job %q not found", id)
	}
	if job.Status != store.JobFailed && job.Status != store.JobCancelled {
		return ipc.Job{}, fmt.Errorf("job %q is %s, not failed or cancelled", id, job.Status)
	}
	retried, err := a.store.EnqueueJob(ctx, &store.JobRecord{
		JobType:    job.JobType,
		FileID:     job.FileID,
		PolicyName: job.PolicyName,
		PolicyJSON: job.PolicyJSON,
		PlanID:     job.PlanID,
		Priority:   job.Priority,
		Origin:     job.Origin,
		BatchID:    job.BatchID,
	})
	if err != nil {
		return ipc.Job{}, err
	}
	return convertJob(retried), nil
}

func (a *directAccess) JobCancel(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, errors.New("id is required")
	}
	if err := a.store.CancelJob(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

func (a *directAccess) Pause(_ context.Context) (bool, error) {
	if a.pool == nil {
		return false, errNoPool
	}
	a.pool.Pause()
	return true, nil
}

func (a *directAccess) Unpause(_ context.Context) (bool, error) {
	if a.pool == nil {
		return false, errNoPool
	}
	a.pool.Unpause()
	return a.pool.IsPaused(), nil
}

func (a *directAccess) Resize(_ context.Context, concurrency int) (int, error) {
	if a.pool == nil {
		return 0, errNoPool
	}
	if concurrency <= 0 {
		return 0, errors.New("concurrency must be positive")
	}
	a.pool.Resize(concurrency)
	return a.pool.WorkerCount(), nil
}

func (a *directAccess) QueueHealth(ctx context.Context) (ipc.QueueHealthResponse, error) {
	counts, err := a.jobCounts(ctx)
	if err != nil {
		return ipc.QueueHealthResponse{}, err
	}
	resp := ipc.QueueHealthResponse{
		Queued:    counts[string(store.JobQueued)],
		Running:   counts[string(store.JobRunning)],
		Completed: counts[string(store.JobCompleted)],
		Failed:    counts[string(store.JobFailed)],
		Cancelled: counts[string(store.JobCancelled)],
	}
	resp.Total = resp.Queued + resp.Running + resp.Completed + resp.Failed + resp.Cancelled
	return resp, nil
}
