package phaseexec

import "context"

// TranscriptionPlugin is the optional registry entry the transcription
// operation calls into. It is intentionally minimal — spec §1 Non-goals
// exclude a real ASR pipeline from this module's scope — so that a
// caller can register a concrete implementation (local model, hosted
// API, or a fake for tests) without the Phase Executor depending on any
// of them directly.
type TranscriptionPlugin interface {
	Transcribe(ctx context.Context, audioPath string, trackIndex int) (TranscriptionOutput, error)
}

// TranscriptionOutput is one plugin call's result, shaped to map
// directly onto store.TranscriptionResult.
type TranscriptionOutput struct {
	Language   string
	Confidence float64
	Text       string
}
