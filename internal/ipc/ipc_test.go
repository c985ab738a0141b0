package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spindle/internal/ipc"
	"spindle/internal/jobqueue"
	"spindle/internal/logging"
	"spindle/internal/store"
)

type ipcTestEnv struct {
	Client *ipc.Client
	Store  *store.Store
	Pool   *jobqueue.Pool
	Ctx    context.Context
	Cancel context.CancelFunc
}

// testConfig keeps every background interval far longer than a test's
// lifetime: these tests exercise the RPC surface against jobs the test
// itself creates and mutates, and a worker racing in to claim or fail
// one first would make assertions flaky.
func testConfig() jobqueue.Config {
	return jobqueue.Config{
		Concurrency:        2,
		PollInterval:       time.Hour,
		ErrorRetryInterval: time.Hour,
		HeartbeatInterval:  time.Hour,
		ReapInterval:       time.Hour,
		StaleAfter:         time.Hour,
		RetentionInterval:  time.Hour,
		RetentionAge:       30 * 24 * time.Hour,
	}
}

func setupIPCTest(t *testing.T, handlers map[store.JobType]jobqueue.Handler) *ipcTestEnv {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "vpo.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	logger := logging.NewNop()
	pool := jobqueue.NewPool(s, handlers, testConfig(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("pool.Start: %v", err)
	}
	t.Cleanup(pool.Stop)

	socket := filepath.Join(t.TempDir(), "vpo.sock")
	srv, err := ipc.NewServer(ctx, socket, s, pool, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &ipcTestEnv{Client: client, Store: s, Pool: pool, Ctx: ctx, Cancel: cancel}
}

func TestIPCStatusReportsWorkerCountAndJobCounts(t *testing.T) {
	env := setupIPCTest(t, nil)

	if _, err := env.Store.EnqueueJob(env.Ctx, &store.JobRecord{JobType: store.JobScan}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	status, err := env.Client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected Running=true")
	}
	if status.WorkerCount != 2 {
		t.Fatalf("expected worker count 2, got %d", status.WorkerCount)
	}
	if status.JobCounts[string(store.JobQueued)] != 1 {
		t.Fatalf("expected 1 queued job, got %d", status.JobCounts[string(store.JobQueued)])
	}
}

func TestIPCJobEnqueueAndDescribe(t *testing.T) {
	env := setupIPCTest(t, nil)

	enqueueResp, err := env.Client.JobEnqueue(ipc.JobEnqueueRequest{JobType: string(store.JobScan)})
	if err != nil {
		t.Fatalf("JobEnqueue failed: %v", err)
	}
	if enqueueResp.Job.Status != string(store.JobQueued) {
		t.Fatalf("expected queued status, got %q", enqueueResp.Job.Status)
	}

	describeResp, err := env.Client.JobDescribe(enqueueResp.Job.ID)
	if err != nil {
		t.Fatalf("JobDescribe failed: %v", err)
	}
	if describeResp.Job.ID != enqueueResp.Job.ID {
		t.Fatalf("unexpected job id: %q", describeResp.Job.ID)
	}
}

func TestIPCJobEnqueueRejectsUnknownType(t *testing.T) {
	env := setupIPCTest(t, nil)

	if _, err := env.Client.JobEnqueue(ipc.JobEnqueueRequest{JobType: "bogus"}); err == nil {
		t.Fatal("expected error for unsupported job type")
	}
}

func TestIPCJobListFiltersByStatus(t *testing.T) {
	env := setupIPCTest(t, nil)

	if _, err := env.Store.EnqueueJob(env.Ctx, &store.JobRecord{JobType: store.JobScan}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := env.Store.EnqueueJob(env.Ctx, &store.JobRecord{JobType: store.JobTranscode}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	resp, err := env.Client.JobList(ipc.JobListRequest{JobType: string(store.JobTranscode)})
	if err != nil {
		t.Fatalf("JobList failed: %v", err)
	}
	if len(resp.Jobs) != 1 || resp.Jobs[0].JobType != string(store.JobTranscode) {
		t.Fatalf("unexpected jobs: %#v", resp.Jobs)
	}
}

func TestIPCJobCancel(t *testing.T) {
	env := setupIPCTest(t, nil)

	job, err := env.Store.EnqueueJob(env.Ctx, &store.JobRecord{JobType: store.JobScan})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	resp, err := env.Client.JobCancel(job.ID)
	if err != nil {
		t.Fatalf("JobCancel failed: %v", err)
	}
	if !resp.Cancelled {
		t.Fatal("expected Cancelled=true")
	}

	describeResp, err := env.Client.JobDescribe(job.ID)
	if err != nil {
		t.Fatalf("JobDescribe failed: %v", err)
	}
	if describeResp.Job.Status != string(store.JobCancelled) {
		t.Fatalf("expected cancelled status, got %q", describeResp.Job.Status)
	}
}

func TestIPCJobRetryReenqueuesFailedJob(t *testing.T) {
	env := setupIPCTest(t, nil)

	job, err := env.Store.EnqueueJob(env.Ctx, &store.JobRecord{JobType: store.JobScan, PolicyName: "default"})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := env.Store.FailJob(env.Ctx, job.ID, "boom"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	resp, err := env.Client.JobRetry(job.ID)
	if err != nil {
		t.Fatalf("JobRetry failed: %v", err)
	}
	if resp.Job.ID == job.ID {
		t.Fatal("expected retry to create a new job id")
	}
	if resp.Job.PolicyName != "default" {
		t.Fatalf("expected retried job to carry policy name, got %q", resp.Job.PolicyName)
	}
	if resp.Job.Status != string(store.JobQueued) {
		t.Fatalf("expected retried job to be queued, got %q", resp.Job.Status)
	}
}

func TestIPCJobRetryRejectsNonTerminalJob(t *testing.T) {
	env := setupIPCTest(t, nil)

	job, err := env.Store.EnqueueJob(env.Ctx, &store.JobRecord{JobType: store.JobScan})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	if _, err := env.Client.JobRetry(job.ID); err == nil {
		t.Fatal("expected error retrying a queued job")
	}
}

func TestIPCPauseUnpauseTogglesPausedState(t *testing.T) {
	env := setupIPCTest(t, nil)

	pauseResp, err := env.Client.Pause()
	if err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if !pauseResp.Paused {
		t.Fatal("expected Paused=true")
	}
	if !env.Pool.IsPaused() {
		t.Fatal("expected pool to be paused")
	}

	unpauseResp, err := env.Client.Unpause()
	if err != nil {
		t.Fatalf("Unpause failed: %v", err)
	}
	if unpauseResp.Paused {
		t.Fatal("expected Paused=false after unpause")
	}
}

func TestIPCResizeChangesWorkerCount(t *testing.T) {
	env := setupIPCTest(t, nil)

	resp, err := env.Client.Resize(5)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if resp.WorkerCount != 5 {
		t.Fatalf("expected worker count 5, got %d", resp.WorkerCount)
	}
	if env.Pool.WorkerCount() != 5 {
		t.Fatalf("expected pool worker count 5, got %d", env.Pool.WorkerCount())
	}
}

func TestIPCQueueHealthReportsCounts(t *testing.T) {
	env := setupIPCTest(t, nil)

	if _, err := env.Store.EnqueueJob(env.Ctx, &store.JobRecord{JobType: store.JobScan}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	failed, err := env.Store.EnqueueJob(env.Ctx, &store.JobRecord{JobType: store.JobScan})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := env.Store.FailJob(env.Ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	resp, err := env.Client.QueueHealth()
	if err != nil {
		t.Fatalf("QueueHealth failed: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected total 2, got %d", resp.Total)
	}
	if resp.Queued != 1 {
		t.Fatalf("expected queued 1, got %d", resp.Queued)
	}
	if resp.Failed != 1 {
		t.Fatalf("expected failed 1, got %d", resp.Failed)
	}
}
