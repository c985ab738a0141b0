package jobhandlers_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"spindle/internal/externaltool/fake"
	"spindle/internal/jobhandlers"
	"spindle/internal/mediainfo"
	"spindle/internal/phaseexec"
	"spindle/internal/planmodel"
	"spindle/internal/policy"
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

func writeLibraryFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write library file: %v", err)
	}
	return path
}

func basicPolicy() policy.EvaluationPolicy {
	return policy.EvaluationPolicy{
		Name:    "default",
		Version: "1",
		Phases: []policy.PhaseDefinition{
			{Name: "cleanup"},
		},
	}
}

func TestHandleScanPersistsTracks(t *testing.T) {
	s := newTestStore(t)
	path := writeLibraryFile(t, "movie.mkv")

	info := mediainfo.FileInfo{
		Path:            path,
		ContainerFormat: "matroska",
		Tracks: []mediainfo.Track{
			{Index: 0, Kind: mediainfo.TrackVideo, Codec: "hevc"},
			{Index: 1, Kind: mediainfo.TrackAudio, Codec: "aac", Channels: 6},
		},
	}
	tools := fake.New(fake.WithProbeResult(path, info))

	file, err := s.UpsertFile(context.Background(), &store.FileRecord{Path: path, ScanStatus: store.ScanPending})
	if err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}

	reg := &jobhandlers.Registry{Store: s, Tools: tools}
	handlers := reg.Build()
	scan, ok := handlers[store.JobScan]
	if !ok {
		t.Fatal("expected a scan handler to be registered")
	}

	outPath, err := scan(context.Background(), &store.JobRecord{JobType: store.JobScan, FileID: &file.ID})
	if err != nil {
		t.Fatalf("scan handler failed: %v", err)
	}
	if outPath != path {
		t.Fatalf("expected output path %q, got %q", path, outPath)
	}

	tracks, err := s.ListTracksByFile(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("ListTracksByFile: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 persisted tracks, got %d", len(tracks))
	}
}

func TestHandleProcessDirectApplyEvaluatesEveryPhase(t *testing.T) {
	s := newTestStore(t)
	path := writeLibraryFile(t, "movie.mkv")

	file, err := s.UpsertFile(context.Background(), &store.FileRecord{
		Path: path, ContainerFormat: "matroska", ScanStatus: store.ScanOK,
	})
	if err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}
	if err := s.ReplaceTracks(context.Background(), file.ID, []store.TrackRecord{
		{FileID: file.ID, TrackIndex: 0, Kind: store.TrackVideo, Codec: "hevc"},
		{FileID: file.ID, TrackIndex: 1, Kind: store.TrackAudio, Codec: "aac"},
	}); err != nil {
		t.Fatalf("ReplaceTracks: %v", err)
	}

	reg := &jobhandlers.Registry{
		Store:    s,
		Tools:    fake.New(),
		Executor: &phaseexec.Executor{Store: s, Tools: fake.New()},
		Policies: map[string]policy.EvaluationPolicy{"default": basicPolicy()},
	}
	process := reg.Build()[store.JobProcess]

	outPath, err := process(context.Background(), &store.JobRecord{
		JobType: store.JobProcess, FileID: &file.ID, PolicyName: "default",
	})
	if err != nil {
		t.Fatalf("process handler failed: %v", err)
	}
	if outPath != path {
		t.Fatalf("expected final path %q (no-op plan), got %q", path, outPath)
	}
}

func TestHandleProcessUnknownPolicyFails(t *testing.T) {
	s := newTestStore(t)
	path := writeLibraryFile(t, "movie.mkv")
	file, err := s.UpsertFile(context.Background(), &store.FileRecord{Path: path, ScanStatus: store.ScanOK})
	if err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}

	reg := &jobhandlers.Registry{Store: s, Tools: fake.New(), Executor: &phaseexec.Executor{Store: s, Tools: fake.New()}}
	process := reg.Build()[store.JobProcess]

	if _, err := process(context.Background(), &store.JobRecord{
		JobType: store.JobProcess, FileID: &file.ID, PolicyName: "missing",
	}); err == nil {
		t.Fatal("expected an error for an unregistered policy name")
	}
}

func TestHandleProcessRequiresApprovedPlan(t *testing.T) {
	s := newTestStore(t)
	path := writeLibraryFile(t, "movie.mkv")
	file, err := s.UpsertFile(context.Background(), &store.FileRecord{Path: path, ScanStatus: store.ScanOK})
	if err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}

	actionsJSON, err := json.Marshal(planmodel.Plan{})
	if err != nil {
		t.Fatalf("marshal plan: %v", err)
	}
	plan, err := s.CreatePlan(context.Background(), &store.PlanRecord{
		FileID: &file.ID, FilePath: path, PolicyName: "default", ActionsJSON: string(actionsJSON),
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	reg := &jobhandlers.Registry{Store: s, Tools: fake.New(), Executor: &phaseexec.Executor{Store: s, Tools: fake.New()}}
	process := reg.Build()[store.JobProcess]

	// Still pending: the handler must refuse to run it.
	if _, err := process(context.Background(), &store.JobRecord{
		JobType: store.JobProcess, FileID: &file.ID, PlanID: plan.ID,
	}); err == nil {
		t.Fatal("expected an error for a plan that has not been approved")
	}

	if err := s.TransitionPlan(context.Background(), plan.ID, store.PlanApproved); err != nil {
		t.Fatalf("TransitionPlan: %v", err)
	}

	outPath, err := process(context.Background(), &store.JobRecord{
		JobType: store.JobProcess, FileID: &file.ID, PlanID: plan.ID,
	})
	if err != nil {
		t.Fatalf("process handler failed after approval: %v", err)
	}
	if outPath != path {
		t.Fatalf("expected final path %q for a no-op plan, got %q", path, outPath)
	}

	// The persisted plan has no actions, so the executor treats it as a
	// no-op and the plan transitions to canceled rather than applied.
	final, err := s.GetPlan(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if final.Status != store.PlanCanceled {
		t.Fatalf("expected plan to transition to canceled for a no-op replay, got %s", final.Status)
	}
}
