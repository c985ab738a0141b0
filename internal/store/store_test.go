package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"spindle/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vpo.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenAppliesMigrationsAndRoundTripsFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.UpsertFile(ctx, &store.FileRecord{
		Path:            "/library/movie.mkv",
		SizeBytes:       1024,
		ModifiedAt:      time.Now().UTC(),
		ContainerFormat: "matroska",
		ScanStatus:      store.ScanOK,
	})
	if err != nil {
		t.Fatalf("UpsertFile failed: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected file ID to be assigned")
	}

	fetched, err := s.GetFileByPath(ctx, "/library/movie.mkv")
	if err != nil {
		t.Fatalf("GetFileByPath failed: %v", err)
	}
	if fetched == nil || fetched.ID != rec.ID {
		t.Fatalf("unexpected fetched file: %#v", fetched)
	}

	// Upsert again with the same path must update, not duplicate.
	rec2, err := s.UpsertFile(ctx, &store.FileRecord{
		Path:            "/library/movie.mkv",
		SizeBytes:       2048,
		ModifiedAt:      time.Now().UTC(),
		ContainerFormat: "matroska",
		ScanStatus:      store.ScanOK,
	})
	if err != nil {
		t.Fatalf("second UpsertFile failed: %v", err)
	}
	if rec2.ID != rec.ID {
		t.Fatalf("expected same file ID on upsert, got %d vs %d", rec2.ID, rec.ID)
	}
	if rec2.SizeBytes != 2048 {
		t.Fatalf("expected updated size, got %d", rec2.SizeBytes)
	}
}

func TestReplaceTracksIsAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	file, err := s.UpsertFile(ctx, &store.FileRecord{
		Path: "/library/show.mkv", ModifiedAt: time.Now().UTC(), ScanStatus: store.ScanOK,
	})
	if err != nil {
		t.Fatalf("UpsertFile failed: %v", err)
	}

	err = s.ReplaceTracks(ctx, file.ID, []store.TrackRecord{
		{TrackIndex: 0, Kind: store.TrackVideo, Codec: "hevc"},
		{TrackIndex: 1, Kind: store.TrackAudio, Codec: "aac", Language: "eng"},
	})
	if err != nil {
		t.Fatalf("ReplaceTracks failed: %v", err)
	}

	tracks, err := s.ListTracksByFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("ListTracksByFile failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}

	// A second replace with fewer tracks must fully supersede the first.
	if err := s.ReplaceTracks(ctx, file.ID, []store.TrackRecord{
		{TrackIndex: 0, Kind: store.TrackVideo, Codec: "h264"},
	}); err != nil {
		t.Fatalf("second ReplaceTracks failed: %v", err)
	}
	tracks, err = s.ListTracksByFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("ListTracksByFile failed: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track after replace, got %d", len(tracks))
	}
}

func TestClaimNextJobIsSingleConsumer(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	low, err := s.EnqueueJob(ctx, &store.JobRecord{JobType: store.JobScan, Priority: 100})
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	high, err := s.EnqueueJob(ctx, &store.JobRecord{JobType: store.JobScan, Priority: 900})
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}

	claimed, err := s.ClaimNextJob(ctx, 1234)
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if claimed == nil || claimed.ID != high.ID {
		t.Fatalf("expected highest-priority job %s claimed first, got %#v", high.ID, claimed)
	}
	if claimed.Status != store.JobRunning {
		t.Fatalf("expected claimed job to be running, got %s", claimed.Status)
	}

	second, err := s.ClaimNextJob(ctx, 5678)
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if second == nil || second.ID != low.ID {
		t.Fatalf("expected remaining job %s claimed next, got %#v", low.ID, second)
	}

	third, err := s.ClaimNextJob(ctx, 9999)
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if third != nil {
		t.Fatalf("expected no more queued jobs, got %#v", third)
	}
}

func TestReapStaleJobsRequeues(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job, err := s.EnqueueJob(ctx, &store.JobRecord{JobType: store.JobProcess})
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	if _, err := s.ClaimNextJob(ctx, 42); err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}

	cutoff := time.Now().UTC().Add(time.Minute)
	n, err := s.ReapStaleJobs(ctx, cutoff)
	if err != nil {
		t.Fatalf("ReapStaleJobs failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 job reaped, got %d", n)
	}

	reclaimed, err := s.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if reclaimed.Status != store.JobQueued {
		t.Fatalf("expected reaped job back to queued, got %s", reclaimed.Status)
	}
	if reclaimed.WorkerPID != nil {
		t.Fatalf("expected worker_pid cleared on reap")
	}
}

func TestPlanTransitionEnforcesClosedTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	plan, err := s.CreatePlan(ctx, &store.PlanRecord{
		FilePath:   "/library/movie.mkv",
		PolicyName: "default",
	})
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	if plan.Status != store.PlanPending {
		t.Fatalf("expected new plan pending, got %s", plan.Status)
	}

	if err := s.TransitionPlan(ctx, plan.ID, store.PlanApplied); err == nil {
		t.Fatal("expected pending -> applied to be rejected")
	}

	if err := s.TransitionPlan(ctx, plan.ID, store.PlanApproved); err != nil {
		t.Fatalf("expected pending -> approved to succeed: %v", err)
	}

	if err := s.TransitionPlan(ctx, plan.ID, store.PlanApproved); err == nil {
		t.Fatal("expected approved -> approved to be rejected (not in transition table)")
	}

	if err := s.TransitionPlan(ctx, plan.ID, store.PlanApplied); err != nil {
		t.Fatalf("expected approved -> applied to succeed: %v", err)
	}
}

func TestLanguageAnalysisCacheUpsertReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	file, err := s.UpsertFile(ctx, &store.FileRecord{Path: "/library/x.mkv", ModifiedAt: time.Now().UTC(), ScanStatus: store.ScanOK})
	if err != nil {
		t.Fatalf("UpsertFile failed: %v", err)
	}
	if err := s.ReplaceTracks(ctx, file.ID, []store.TrackRecord{{TrackIndex: 0, Kind: store.TrackAudio, Codec: "aac"}}); err != nil {
		t.Fatalf("ReplaceTracks failed: %v", err)
	}
	track, err := s.GetTrackByFileAndIndex(ctx, file.ID, 0)
	if err != nil || track == nil {
		t.Fatalf("GetTrackByFileAndIndex failed: %v", err)
	}

	if err := s.UpsertLanguageAnalysis(ctx, &store.LanguageAnalysisResult{TrackID: track.ID, PrimaryLanguage: "eng", Confidence: 0.9}); err != nil {
		t.Fatalf("UpsertLanguageAnalysis failed: %v", err)
	}
	if err := s.UpsertLanguageAnalysis(ctx, &store.LanguageAnalysisResult{TrackID: track.ID, PrimaryLanguage: "fra", Confidence: 0.75}); err != nil {
		t.Fatalf("second UpsertLanguageAnalysis failed: %v", err)
	}

	got, err := s.GetLanguageAnalysis(ctx, track.ID)
	if err != nil {
		t.Fatalf("GetLanguageAnalysis failed: %v", err)
	}
	if got == nil || got.PrimaryLanguage != "fra" {
		t.Fatalf("expected replaced result fra, got %#v", got)
	}
}

func TestIntegrityCheckPasses(t *testing.T) {
	s := openTestStore(t)
	if err := s.IntegrityCheck(context.Background()); err != nil {
		t.Fatalf("IntegrityCheck failed: %v", err)
	}
}
