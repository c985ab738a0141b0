// Package externaltool defines the capability-protocol boundary between
// the core (Policy Evaluator, Transcode Planner, Phase Executor) and the
// real media tools that probe, remux, and transcode files. Per spec §1
// Non-goals, no implementation here shells out to a real process — that
// integration point is intentionally left to a caller outside this
// module; internal/externaltool/fake supplies deterministic test doubles.
package externaltool

import (
	"context"
	"time"

	"spindle/internal/mediainfo"
	"spindle/internal/store"
	"spindle/internal/transcodeplan"
)

// Prober inspects a media file and returns its track layout.
type Prober interface {
	Probe(ctx context.Context, path string) (mediainfo.FileInfo, error)
}

// MetadataEdit describes one track-level metadata mutation. TrackIndex
// addresses the *input* stream index; a Remuxer/MetadataEditor is
// responsible for translating that into whatever addressing its
// underlying tool requires.
type MetadataEdit struct {
	TrackIndex int
	Language   string
	Title      string
	Default    *bool
	Forced     *bool
}

// MetadataEditor applies container-level metadata mutations (language,
// title, default/forced flags) without necessarily re-encoding streams.
type MetadataEditor interface {
	ApplyMetadata(ctx context.Context, path string, edits []MetadataEdit) error
}

// StreamMapping is one entry of the explicit `-map 0:<input-index>`
// addressing convention resolved in SPEC_FULL.md's Open Question #2:
// OutputIndex is this stream's position among outputs of the same Kind,
// so a REMOVEd track never shifts the addressing of tracks that follow
// it in the source.
type StreamMapping struct {
	InputIndex  int
	OutputIndex int
	Kind        mediainfo.TrackKind
}

// RemuxPlan describes a container-level rewrite: a stream selection,
// optional reordering (expressed by StreamMapping order), and metadata
// edits, with no video/audio re-encoding.
type RemuxPlan struct {
	InputPath       string
	OutputPath      string
	ContainerFormat string
	Streams         []StreamMapping
	Metadata        []MetadataEdit
}

// Remuxer rewrites a container per plan without re-encoding.
type Remuxer interface {
	Remux(ctx context.Context, plan RemuxPlan) error
}

// TranscodeProgress is one progress tick from a running transcode,
// mirroring the shape of an external encoder's event stream closely
// enough that a real implementation's progress callback can populate it
// directly.
type TranscodeProgress struct {
	Percent     float64
	Stage       string
	FPS         float64
	Speed       float64
	ETA         time.Duration
	CurrentFrame int64
	TotalFrames  int64
}

// TranscodeRequest bundles a transcode plan with its I/O paths and an
// optional progress callback.
type TranscodeRequest struct {
	InputPath  string
	OutputPath string
	Plan       transcodeplan.TranscodePlan
	Progress   func(TranscodeProgress)
}

// TranscodeResult summarizes a completed transcode for
// store.ProcessingStats.
type TranscodeResult struct {
	OutputPath  string
	FPS         float64
	Bitrate     int64
	TotalFrames int64
	EncoderType store.EncoderType
}

// Transcoder performs a video/audio re-encode per a transcode plan.
type Transcoder interface {
	Transcode(ctx context.Context, req TranscodeRequest) (TranscodeResult, error)
}

// Toolset is the full capability surface the Phase Executor depends on.
// A caller assembling a real implementation is free to satisfy it with
// one tool (e.g. a single CLI wrapper implementing all four methods) or
// several composed together.
type Toolset interface {
	Prober
	MetadataEditor
	Remuxer
	Transcoder
}
