package transcodeplan

// SkipCondition is the optional logical-AND predicate set that lets a file
// skip transcoding entirely. Each unspecified predicate passes.
type SkipCondition struct {
	CodecMatches    []string // alias-aware codec name patterns
	ResolutionWithin string  // resolution preset name, e.g. "1080p"
	BitrateUnder     string  // parseable bitrate string, e.g. "15M"
}

// HardwareAccelConfig selects a hardware encoder preference and its
// software-fallback policy.
type HardwareAccelConfig struct {
	Enabled        string // none|nvenc|vaapi|qsv|amf|videotoolbox
	FallbackToCPU  bool
}

// QualitySettings carries the target quality knobs. The planner reads only
// Preset, as the codec name checked for two-pass eligibility when
// TargetVideoCodec is empty; CRF and TargetBitrate are carried but not
// consulted.
type QualitySettings struct {
	CRF           int
	TargetBitrate string
	Preset        string
}

// AudioTranscodeConfig configures the audio side of a transcode.
type AudioTranscodeConfig struct {
	PreserveCodecs []string
	TargetCodec    string
	TargetBitrate  string
	Downmix        DownmixTarget
}

// DownmixTarget is the optional virtual downmix track request.
type DownmixTarget string

const (
	DownmixNone    DownmixTarget = ""
	DownmixStereo  DownmixTarget = "stereo"
	DownmixSurround51 DownmixTarget = "5.1"
)

// TranscodePolicyConfig is the full set of transcode-relevant policy knobs,
// enumerated as a closed struct per spec §9 ("no open dicts in the
// evaluator").
type TranscodePolicyConfig struct {
	TargetVideoCodec string
	MaxResolution    string // preset name
	Skip             *SkipCondition
	Audio            *AudioTranscodeConfig
	HardwareAccel    *HardwareAccelConfig
	Quality          QualitySettings
	TwoPass          bool
}
