package fake_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"spindle/internal/externaltool"
	"spindle/internal/externaltool/fake"
	"spindle/internal/mediainfo"
)

func TestProbeReturnsSeededResult(t *testing.T) {
	info := mediainfo.FileInfo{ContainerFormat: "matroska"}
	toolset := fake.New(fake.WithProbeResult("/movie.mkv", info))

	got, err := toolset.Probe(context.Background(), "/movie.mkv")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if got.ContainerFormat != "matroska" {
		t.Fatalf("unexpected probe result: %+v", got)
	}
}

func TestProbeUnseededPathErrors(t *testing.T) {
	toolset := fake.New()
	if _, err := toolset.Probe(context.Background(), "/missing.mkv"); err == nil {
		t.Fatal("expected error for unseeded path")
	}
}

func TestWithFailureInjectsError(t *testing.T) {
	wantErr := errors.New("boom")
	toolset := fake.New(fake.WithFailure("remux", wantErr))

	err := toolset.Remux(context.Background(), externaltool.RemuxPlan{InputPath: "/a.mkv"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected injected failure, got %v", err)
	}
}

func TestTranscodeRecordsCallAndReportsProgress(t *testing.T) {
	toolset := fake.New()
	var percents []float64
	outputPath := filepath.Join(t.TempDir(), ".vpo_temp_a.mkv")

	_, err := toolset.Transcode(context.Background(), externaltool.TranscodeRequest{
		InputPath:  "/a.mkv",
		OutputPath: outputPath,
		Progress:   func(p externaltool.TranscodeProgress) { percents = append(percents, p.Percent) },
	})
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if len(toolset.TranscodeCalls) != 1 {
		t.Fatalf("expected 1 recorded transcode call, got %d", len(toolset.TranscodeCalls))
	}
	if len(percents) != 2 || percents[len(percents)-1] != 100 {
		t.Fatalf("expected progress to reach 100, got %v", percents)
	}
}
