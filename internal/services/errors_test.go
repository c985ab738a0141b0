package services_test

import (
	"errors"
	"strings"
	"testing"

	"spindle/internal/services"
)

func TestWrapAndUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "encoding", "mux", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	se, ok := err.(*services.ServiceError)
	if !ok {
		t.Fatalf("expected ServiceError, got %T", err)
	}
	if se.Kind != services.ErrorKindExternal {
		t.Fatalf("unexpected kind %q", se.Kind)
	}
	if se.Code != "E_EXTERNAL" {
		t.Fatalf("unexpected code %q", se.Code)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected errors.Is to match wrapped error")
	}
	if got := err.Error(); !strings.Contains(got, "encoding") || !strings.Contains(got, "boom") {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestWrapHintAttachesCodeAndHint(t *testing.T) {
	err := services.WrapHint(services.ErrValidation, "policy", "evaluate", "bad disposition", "E_BAD_DISPOSITION", "check track language tags", nil)
	se, ok := err.(*services.ServiceError)
	if !ok {
		t.Fatalf("expected ServiceError, got %T", err)
	}
	if se.Code != "E_BAD_DISPOSITION" {
		t.Fatalf("expected overridden code, got %q", se.Code)
	}
	if se.Hint != "check track language tags" {
		t.Fatalf("expected hint to be set, got %q", se.Hint)
	}
	if se.Kind != services.ErrorKindValidation {
		t.Fatalf("expected validation kind, got %q", se.Kind)
	}
}

func TestWrapDetailCarriesDetailPath(t *testing.T) {
	err := services.WrapDetail(services.ErrExternalTool, "phaseexec", "probe", "ffprobe failed", nil, "/tmp/ffprobe.log")
	details := services.Details(err)
	if details.DetailPath != "/tmp/ffprobe.log" {
		t.Fatalf("expected detail path to survive, got %q", details.DetailPath)
	}
	if details.Hint == "" {
		t.Fatal("expected a default hint once a detail path is present")
	}
}

func TestDetailsFallsBackForPlainErrors(t *testing.T) {
	details := services.Details(errors.New("plain failure"))
	if details.Kind != services.ErrorKindTransient {
		t.Fatalf("expected transient kind for unclassified errors, got %q", details.Kind)
	}
	if details.Message != "plain failure" {
		t.Fatalf("unexpected message %q", details.Message)
	}
}
