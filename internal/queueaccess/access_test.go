package queueaccess_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"spindle/internal/ipc"
	"spindle/internal/queueaccess"
	"spindle/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "vpo.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDirectAccessEnqueueListDescribe(t *testing.T) {
	s := newTestStore(t)
	access := queueaccess.NewDirectAccess(s, nil)
	ctx := context.Background()

	job, err := access.JobEnqueue(ctx, ipc.JobEnqueueRequest{JobType: "scan"})
	if err != nil {
		t.Fatalf("JobEnqueue: %v", err)
	}
	if job.Status != string(store.JobQueued) {
		t.Fatalf("expected queued status, got %s", job.Status)
	}

	jobs, err := access.JobList(ctx, ipc.JobListRequest{JobType: "scan"})
	if err != nil {
		t.Fatalf("JobList: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}

	described, err := access.JobDescribe(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobDescribe: %v", err)
	}
	if described.ID != job.ID {
		t.Fatalf("expected job %s, got %s", job.ID, described.ID)
	}
}

func TestDirectAccessEnqueueRejectsUnknownJobType(t *testing.T) {
	s := newTestStore(t)
	access := queueaccess.NewDirectAccess(s, nil)

	if _, err := access.JobEnqueue(context.Background(), ipc.JobEnqueueRequest{JobType: "not-a-real-type"}); err == nil {
		t.Fatal("expected an error for an unsupported job_type")
	}
}

func TestDirectAccessCancel(t *testing.T) {
	s := newTestStore(t)
	access := queueaccess.NewDirectAccess(s, nil)
	ctx := context.Background()

	job, err := access.JobEnqueue(ctx, ipc.JobEnqueueRequest{JobType: "scan"})
	if err != nil {
		t.Fatalf("JobEnqueue: %v", err)
	}

	cancelled, err := access.JobCancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobCancel: %v", err)
	}
	if !cancelled {
		t.Fatal("expected cancellation to succeed")
	}

	described, err := access.JobDescribe(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobDescribe: %v", err)
	}
	if described.Status != string(store.JobCancelled) {
		t.Fatalf("expected cancelled status, got %s", described.Status)
	}
}

func TestDirectAccessRetryRequiresTerminalJob(t *testing.T) {
	s := newTestStore(t)
	access := queueaccess.NewDirectAccess(s, nil)
	ctx := context.Background()

	job, err := access.JobEnqueue(ctx, ipc.JobEnqueueRequest{JobType: "scan"})
	if err != nil {
		t.Fatalf("JobEnqueue: %v", err)
	}

	if _, err := access.JobRetry(ctx, job.ID); err == nil {
		t.Fatal("expected an error retrying a still-queued job")
	}
}

func TestDirectAccessWithoutPoolRejectsPoolOperations(t *testing.T) {
	s := newTestStore(t)
	access := queueaccess.NewDirectAccess(s, nil)
	ctx := context.Background()

	if _, err := access.Pause(ctx); err == nil {
		t.Fatal("expected Pause to fail with no worker pool running")
	}
	if _, err := access.Resize(ctx, 4); err == nil {
		t.Fatal("expected Resize to fail with no worker pool running")
	}
}

func TestDirectAccessQueueHealth(t *testing.T) {
	s := newTestStore(t)
	access := queueaccess.NewDirectAccess(s, nil)
	ctx := context.Background()

	if _, err := access.JobEnqueue(ctx, ipc.JobEnqueueRequest{JobType: "scan"}); err != nil {
		t.Fatalf("JobEnqueue: %v", err)
	}

	health, err := access.QueueHealth(ctx)
	if err != nil {
		t.Fatalf("QueueHealth: %v", err)
	}
	if health.Queued != 1 || health.Total != 1 {
		t.Fatalf("expected 1 queued of 1 total, got queued=%d total=%d", health.Queued, health.Total)
	}
}

func TestOpenWithFallbackUsesDirectAccessWhenDialFails(t *testing.T) {
	s := newTestStore(t)

	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return nil, errors.New("no daemon listening") },
		func() (*store.Store, error) { return s, nil },
	)
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	defer session.Close()

	if _, err := session.Access.Pause(context.Background()); err == nil {
		t.Fatal("expected Pause to fail without a worker pool in the fallback session")
	}
}

func TestOpenWithFallbackFailsWithNoDialerOrStore(t *testing.T) {
	if _, err := queueaccess.OpenWithFallback(nil, nil); err == nil {
		t.Fatal("expected an error with neither a dialer nor a store opener")
	}
}
