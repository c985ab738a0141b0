// Package policy implements the Policy Evaluator (spec §4.2): a pure
// function turning (FileInfo, EvaluationPolicy, plugin metadata, language
// analysis) into a deterministic Plan. It performs no I/O and reads no
// clock.
package policy

import (
	"spindle/internal/mediainfo"
	"spindle/internal/transcodeplan"
)

// OnError is the per-phase error-handling mode.
type OnError string

const (
	OnErrorFail     OnError = "fail"
	OnErrorSkip     OnError = "skip"
	OnErrorContinue OnError = "continue"
)

// TrackOrderBucket is one slot in the desired kept-track ordering.
type TrackOrderBucket string

const (
	BucketVideo           TrackOrderBucket = "video"
	BucketAudioMain       TrackOrderBucket = "audio_main"
	BucketAudioAlternate  TrackOrderBucket = "audio_alternate"
	BucketSubtitle        TrackOrderBucket = "subtitle"
	BucketAttachment      TrackOrderBucket = "attachment"
)

// ContainerConfig requests a container-format change.
type ContainerConfig struct {
	Target string // e.g. "mp4", "matroska"
}

// AudioFilterConfig filters audio tracks by language preference, codec
// allow-list, and channel-count constraints.
type AudioFilterConfig struct {
	LanguagePreference []string
	CodecAllowList     []string
	MinChannels        int
	MaxChannels        int
}

// SubtitleFilterConfig filters subtitle tracks by language preference.
// Forced subtitles are always kept regardless of language.
type SubtitleFilterConfig struct {
	LanguagePreference []string
}

// AttachmentFilterConfig filters attachments; an empty Keep list keeps all.
type AttachmentFilterConfig struct {
	Keep []string
}

// TrackOrderConfig specifies the desired bucket ordering for kept tracks.
type TrackOrderConfig struct {
	Order []TrackOrderBucket
}

// DefaultFlagsConfig controls which kept track becomes default per kind.
type DefaultFlagsConfig struct {
	SubtitleDefaultLanguage string // empty means no subtitle default
}

// ConditionalConfig gates a set of metadata conditions sourced from plugin
// enrichment (spec §4.2 filter pass: "metadata conditions from plugin
// enrichment"). Evaluated as a logical AND of equality checks: for every
// plugin name, every named field must equal the configured value.
type ConditionalConfig struct {
	RequirePluginField map[string]map[string]string // plugin name -> field name -> required value
}

// AudioSynthesisConfig requests the transcode planner's downmix.
type AudioSynthesisConfig struct {
	Downmix transcodeplan.DownmixTarget
}

// FileTimestampMode is the closed set of timestamp operation modes.
type FileTimestampMode string

const (
	TimestampPreserve    FileTimestampMode = "preserve"
	TimestampReleaseDate FileTimestampMode = "release_date"
	TimestampNow         FileTimestampMode = "now"
)

// DateSource is the preference order for release_date mode, named
// explicitly per spec §4.4.
type DateSource string

const (
	SourceReleaseDate     DateSource = "release_date"
	SourceDigitalRelease  DateSource = "digital_release"
	SourcePhysicalRelease DateSource = "physical_release"
	SourceCinemaRelease   DateSource = "cinema_release"
	SourceAirDate         DateSource = "air_date"
	SourcePremiereDate    DateSource = "premiere_date"
)

// DefaultDateSourceOrder is the fallback order spec §4.4 names when no
// explicit preference is configured.
var DefaultDateSourceOrder = []DateSource{
	SourceReleaseDate, SourceDigitalRelease, SourcePhysicalRelease,
	SourceCinemaRelease, SourceAirDate, SourcePremiereDate,
}

// FileTimestampConfig configures the file-timestamp operation.
type FileTimestampConfig struct {
	Mode           FileTimestampMode
	DateSourceOrder []DateSource // overrides DefaultDateSourceOrder when non-empty
	OnMissingDate  FileTimestampMode // preserve|now|skip, applied when release_date finds nothing
}

// TranscriptionConfig enables the transcription operation.
type TranscriptionConfig struct {
	Enabled bool
}

// PhaseDefinition is one named stage of a policy, composed of zero or more
// typed operation configs. nil fields mean the operation kind is absent
// from this phase.
type PhaseDefinition struct {
	Name             string
	OnError          OnError
	Container        *ContainerConfig
	AudioFilter      *AudioFilterConfig
	SubtitleFilter   *SubtitleFilterConfig
	AttachmentFilter *AttachmentFilterConfig
	TrackOrder       *TrackOrderConfig
	DefaultFlags     *DefaultFlagsConfig
	Conditional      *ConditionalConfig
	AudioSynthesis   *AudioSynthesisConfig
	Transcode        *transcodeplan.TranscodePolicyConfig
	AudioTranscode   *transcodeplan.AudioTranscodeConfig
	FileTimestamp    *FileTimestampConfig
	Transcription    *TranscriptionConfig
}

// EvaluationPolicy is the fully-parsed policy value the evaluator consumes.
// YAML parsing of this shape happens outside the core (spec §1 Non-goals);
// the core only sees this already-built value.
type EvaluationPolicy struct {
	Name    string
	Version string

	MinimumAudioTracks    int
	MinimumSubtitleTracks int

	CommentaryPatterns []string

	Phases []PhaseDefinition
}

// PluginMetadata is the opaque per-plugin enrichment map keyed by plugin
// name, e.g. {"tmdb": {...}}. Values are consulted only by field-name
// lookups (ConditionalConfig, FileTimestamp's date sources); the evaluator
// never interprets plugin-specific schema beyond that.
type PluginMetadata map[string]map[string]string

// LanguageAnalysisResult is the subset of a cached language-analysis run
// the filter pass consults: a per-track detected primary language.
type LanguageAnalysisResult struct {
	TrackIndex      int
	PrimaryLanguage string
	Confidence      float64
}

// Input bundles everything the evaluator needs, matching spec §4.2's
// "(FileInfo, EvaluationPolicy, plugin_metadata?, language_results?)".
type Input struct {
	File            mediainfo.FileInfo
	Policy          EvaluationPolicy
	PluginMetadata  PluginMetadata
	LanguageResults []LanguageAnalysisResult
}
