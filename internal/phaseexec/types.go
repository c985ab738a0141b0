// Package phaseexec implements the Phase Executor (spec §4.4): applies
// one policy phase's evaluated Plan (and, when present, TranscodePlan)
// against a real file, with backup/rollback protection and an
// atomic temp-output-then-rename for every mutation.
package phaseexec

import (
	"spindle/internal/mediainfo"
	"spindle/internal/planmodel"
	"spindle/internal/policy"
	"spindle/internal/store"
	"spindle/internal/transcodeplan"
)

// Request bundles everything one phase application needs for one file.
type Request struct {
	FilePath       string
	File           mediainfo.FileInfo
	FileID         int64
	PlanID         string
	JobID          string
	PolicyPlan     planmodel.Plan
	Transcode      *transcodeplan.TranscodePlan
	OnError        policy.OnError
	FileTimestamp  *policy.FileTimestampConfig
	DateSources    map[policy.DateSource]string // resolved date values keyed by source, from plugin metadata
	Transcription  *policy.TranscriptionConfig
}

// Outcome reports what actually happened when applying a Request.
type Outcome struct {
	Applied           bool
	ConstraintSkipped bool
	Skipped           bool // on_error=skip swallowed a failure
	OperationID       string
	FinalPath         string
	BackupPath        string
	Warnings          []string
}
