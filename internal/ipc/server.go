package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"spindle/internal/jobqueue"
	"spindle/internal/logging"
	"spindle/internal/store"
)

// Server exposes the job queue and worker pool over JSON-RPC on a Unix
// domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. The
// server delegates all state to store and pool; it holds no state of its
// own.
func NewServer(ctx context.Context, path string, s *store.Store, pool *jobqueue.Pool, logger *slog.Logger) (*Server, error) {
	if s == nil {
		return nil, errors.New("ipc server requires a store")
	}
	if pool == nil {
		return nil, errors.New("ipc server requires a worker pool")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{store: s, pool: pool, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Vpo", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Info("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket", logging.String("socket", s.path), logging.Error(err))
	}
}

type service struct {
	store  *store.Store
	pool   *jobqueue.Pool
	logger *slog.Logger
	ctx    context.Context
}

func convertJob(job *store.JobRecord) Job {
	wire := Job{
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

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Running = true
	resp.Paused = s.pool.IsPaused()
	resp.WorkerCount = s.pool.WorkerCount()
	resp.PID = os.Getpid()

	resp.JobCounts = make(map[string]int, 5)
	for _, status := range []store.JobStatus{store.JobQueued, store.JobRunning, store.JobCompleted, store.JobFailed, store.JobCancelled} {
		jobs, err := s.store.ListJobs(s.ctx, store.ListJobsOptions{Status: status})
		if err != nil {
			return err
		}
		resp.JobCounts[string(status)] = len(jobs)
	}
	return nil
}

func (s *service) JobList(req JobListRequest, resp *JobListResponse) error {
	opts := store.ListJobsOptions{
		Status:     store.JobStatus(strings.TrimSpace(req.Status)),
		JobType:    store.JobType(strings.TrimSpace(req.JobType)),
		SortBy:     req.SortBy,
		Descending: req.Descending,
		Limit:      req.Limit,
	}
	jobs, err := s.store.ListJobs(s.ctx, opts)
	if err != nil {
		return err
	}
	resp.Jobs = make([]Job, 0, len(jobs))
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, convertJob(job))
	}
	return nil
}

func (s *service) JobDescribe(req JobDescribeRequest, resp *JobDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("id is required")
	}
	job, err := s.store.GetJob(s.ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %q not found", id)
	}
	resp.Job = convertJob(job)
	return nil
}

func (s *service) JobEnqueue(req JobEnqueueRequest, resp *JobEnqueueResponse) error {
	jobType := store.JobType(strings.TrimSpace(req.JobType))
	switch jobType {
	case store.JobScan, store.JobApply, store.JobTranscode, store.JobMove, store.JobProcess, store.JobPrune:
	default:
		return fmt.Errorf("job_type: unsupported value %q", req.JobType)
	}
	job, err := s.store.EnqueueJob(s.ctx, &store.JobRecord{
		JobType:    jobType,
		FileID:     req.FileID,
		PolicyName: req.PolicyName,
		PolicyJSON: req.PolicyJSON,
		PlanID:     req.PlanID,
		Priority:   req.Priority,
		Origin:     store.OriginCLI,
	})
	if err != nil {
		return err
	}
	resp.Job = convertJob(job)
	return nil
}

func (s *service) JobRetry(req JobRetryRequest, resp *JobRetryResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("id is required")
	}
	job, err := s.store.GetJob(s.ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %q not found", id)
	}
	if job.Status != store.JobFailed && job.Status != store.JobCancelled {
		return fmt.Errorf("job %q is %s, not failed or cancelled", id, job.Status)
	}
	retried, err := s.store.EnqueueJob(s.ctx, &store.JobRecord{
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
		return err
	}
	resp.Job = convertJob(retried)
	return nil
}

func (s *service) JobCancel(req JobCancelRequest, resp *JobCancelResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("id is required")
	}
	if err := s.store.CancelJob(s.ctx, id); err != nil {
		return err
	}
	resp.Cancelled = true
	return nil
}

func (s *service) Pause(_ PauseRequest, resp *PauseResponse) error {
	s.pool.Pause()
	resp.Paused = true
	return nil
}

func (s *service) Unpause(_ UnpauseRequest, resp *UnpauseResponse) error {
	s.pool.Unpause()
	resp.Paused = s.pool.IsPaused()
	return nil
}

func (s *service) Resize(req ResizeRequest, resp *ResizeResponse) error {
	if req.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	s.pool.Resize(req.Concurrency)
	resp.WorkerCount = s.pool.WorkerCount()
	return nil
}

func (s *service) QueueHealth(_ QueueHealthRequest, resp *QueueHealthResponse) error {
	counts := make(map[store.JobStatus]int, 5)
	for _, status := range []store.JobStatus{store.JobQueued, store.JobRunning, store.JobCompleted, store.JobFailed, store.JobCancelled} {
		jobs, err := s.store.ListJobs(s.ctx, store.ListJobsOptions{Status: status})
		if err != nil {
			return err
		}
		counts[status] = len(jobs)
	}
	resp.Queued = counts[store.JobQueued]
	resp.Running = counts[store.JobRunning]
	resp.Completed = counts[store.JobCompleted]
	resp.Failed = counts[store.JobFailed]
	resp.Cancelled = counts[store.JobCancelled]
	resp.Total = resp.Queued + resp.Running + resp.Completed + resp.Failed + resp.Cancelled
	return nil
}
