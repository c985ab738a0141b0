package store

import "time"

// ScanStatus is the closed set of file scan outcomes.
type ScanStatus string

const (
	ScanOK      ScanStatus = "ok"
	ScanError   ScanStatus = "error"
	ScanMissing ScanStatus = "missing"
	ScanPending ScanStatus = "pending"
)

// FileRecord is the persisted row for a discovered library file.
type FileRecord struct {
	ID              int64
	Path            string
	SizeBytes       int64
	ModifiedAt      time.Time
	ContentHash     string
	ContainerFormat string
	ScanStatus      ScanStatus
	ScanError       string
	ScannedAt       *time.Time
	ScanJobID       string
	PluginMetadata  map[string]map[string]string
	ContainerTags   map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TrackKind mirrors mediainfo.TrackKind as the persisted string form.
type TrackKind string

const (
	TrackVideo      TrackKind = "video"
	TrackAudio      TrackKind = "audio"
	TrackSubtitle   TrackKind = "subtitle"
	TrackAttachment TrackKind = "attachment"
	TrackOther      TrackKind = "other"
)

// TrackRecord is the persisted row for one media track of a FileRecord.
type TrackRecord struct {
	ID             int64
	FileID         int64
	TrackIndex     int
	Kind           TrackKind
	Codec          string
	Language       string
	Title          string
	Default        bool
	Forced         bool
	Channels       *int
	Layout         string
	Width          *int
	Height         *int
	FrameRateAvg   *float64
	FrameRateReal  *float64
	ColorTransfer  string
	ColorPrimaries string
	ColorSpace     string
	ColorRange     string
	BitRate        *int64
	DurationSec    *float64
}

// JobType is the closed set of queue job kinds (spec §4.5).
type JobType string

const (
	JobScan      JobType = "scan"
	JobApply     JobType = "apply"
	JobTranscode JobType = "transcode"
	JobMove      JobType = "move"
	JobProcess   JobType = "process"
	JobPrune     JobType = "prune"
)

// JobStatus is the closed set of job lifecycle states.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobOrigin records whether a job was enqueued by the CLI or the daemon
// itself (e.g. a scheduled scan).
type JobOrigin string

const (
	OriginCLI    JobOrigin = "cli"
	OriginDaemon JobOrigin = "daemon"
)

// JobRecord is the persisted row for a unit of queued work.
type JobRecord struct {
	ID              string
	JobType         JobType
	Status          JobStatus
	Priority        int
	FileID          *int64
	PolicyName      string
	PolicyJSON      string
	PlanID          string
	ProgressPercent float64
	ProgressJSON    string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	WorkerPID       *int
	WorkerHeartbeat *time.Time
	OutputPath      string
	BackupPath      string
	ErrorMessage    string
	Origin          JobOrigin
	BatchID         string
	LogPath         string
}

// PlanStatus is the closed set of plan lifecycle states. The legal
// transition table is enforced in repository methods, not here.
type PlanStatus string

const (
	PlanPending  PlanStatus = "pending"
	PlanApproved PlanStatus = "approved"
	PlanRejected PlanStatus = "rejected"
	PlanApplied  PlanStatus = "applied"
	PlanCanceled PlanStatus = "canceled"
)

// PlanRecord is the persisted row for a proposed-but-not-yet-applied
// (or already-applied) set of planned actions.
type PlanRecord struct {
	ID             string
	FileID         *int64
	FilePath       string
	PolicyName     string
	PolicyVersion  string
	JobID          string
	ActionsJSON    string
	ActionCount    int
	RequiresRemux  bool
	Status         PlanStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OperationStatus is the closed set of phase-executor operation states.
type OperationStatus string

const (
	OperationPending    OperationStatus = "PENDING"
	OperationInProgress OperationStatus = "IN_PROGRESS"
	OperationCompleted  OperationStatus = "COMPLETED"
	OperationFailed     OperationStatus = "FAILED"
	OperationRolledBack OperationStatus = "ROLLED_BACK"
)

// OperationRecord is the persisted row tracking phase-executor progress
// for one file, independent of the job that drives it.
type OperationRecord struct {
	ID          string
	FileID      int64
	PlanID      string
	Status      OperationStatus
	ActionsJSON string
	StartedAt   *time.Time
	CompletedAt *time.Time
	BackupPath  string
}

// EncoderType records whether a transcode used hardware or software
// encoding, when known.
type EncoderType string

const (
	EncoderHardware EncoderType = "hardware"
	EncoderSoftware EncoderType = "software"
	EncoderUnknown  EncoderType = "unknown"
)

// ProcessingStats is the persisted before/after summary of one applied
// operation, used for reporting and audit.
type ProcessingStats struct {
	ID                 int64
	FileID             int64
	JobID              string
	SizeBefore         int64
	SizeAfter          int64
	VideoBefore        int
	VideoAfter         int
	AudioBefore        int
	AudioAfter         int
	SubtitleBefore     int
	SubtitleAfter      int
	PhaseDurationsJSON string
	ActionResultsJSON  string
	EncoderFPS         *float64
	EncoderBitrate     *int64
	EncoderTotalFrames *int64
	EncoderType        EncoderType
	HashBefore         string
	HashAfter          string
	CreatedAt          time.Time
}

// PluginAcknowledgment records that a plugin's enrichment of a track has
// been consumed, keyed by a content hash of the plugin's output so stale
// acknowledgments can be detected.
type PluginAcknowledgment struct {
	ID              int64
	TrackID         int64
	PluginName      string
	PluginHash      string
	AcknowledgedAt  time.Time
}

// LanguageAnalysisResult is the cached output of a language-detection
// pass over one audio or subtitle track.
type LanguageAnalysisResult struct {
	ID              int64
	TrackID         int64
	PrimaryLanguage string
	Confidence      float64
	SegmentsJSON    string
	CreatedAt       time.Time
}

// TranscriptionResult is the cached output of a transcription pass over
// one audio track.
type TranscriptionResult struct {
	ID         int64
	TrackID    int64
	Language   string
	Confidence float64
	Text       string
	CreatedAt  time.Time
}

// TrackClassificationResult is the cached output of a track-purpose
// classifier (e.g. "commentary" vs "main") over one audio track.
type TrackClassificationResult struct {
	ID             int64
	TrackID        int64
	Classification string
	Confidence     float64
	CreatedAt      time.Time
}
