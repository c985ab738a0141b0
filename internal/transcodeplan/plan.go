// Package transcodeplan implements the Transcode Planner (spec §4.3):
// skip-condition evaluation, aspect-ratio-preserving scale computation,
// audio plan derivation, and VFR/HDR/multi-video-stream edge-case
// detection. Like the policy evaluator, it is a pure function: no I/O, no
// time, no randomness.
package transcodeplan

import (
	"fmt"
	"math"

	"spindle/internal/langcode"
	"spindle/internal/mediainfo"
	"spindle/internal/planmodel"
)

// twoPassAllowedCodecs gates two-pass encoding on known-good encoders
// (Open Question #1, resolved in SPEC_FULL.md: gate rather than silently
// degrade).
var twoPassAllowedCodecs = map[string]bool{
	"libx264": true,
	"libx265": true,
	"h264":    true,
	"hevc":    true,
	"h265":    true,
}

// AudioDecision is the per-track outcome of the audio plan.
type AudioDecision string

const (
	AudioCopy      AudioDecision = "copy"
	AudioTranscode AudioDecision = "transcode"
	AudioRemove    AudioDecision = "remove"
)

// AudioTrackPlan is one input audio track's disposition plus, for
// transcoded tracks, the target codec/bitrate.
type AudioTrackPlan struct {
	TrackIndex    int
	Decision      AudioDecision
	TargetCodec   string
	TargetBitrate string
}

// DownmixPlan describes at most one synthesized virtual audio track mixed
// down from the first surviving audio stream.
type DownmixPlan struct {
	SourceTrackIndex int
	Target           DownmixTarget
	FilterRecipe     string
}

// AudioPlan is the full audio disposition: one entry per input track plus
// an optional downmix.
type AudioPlan struct {
	Tracks  []AudioTrackPlan
	Downmix *DownmixPlan
}

// TranscodeReasonCode names why transcoding is or is not needed.
type TranscodeReasonCode string

const (
	ReasonCodecMismatch      TranscodeReasonCode = "codec_mismatch"
	ReasonResolutionExceeded TranscodeReasonCode = "resolution_exceeded"
	ReasonSkipMatched        TranscodeReasonCode = "skip_matched"
)

// TranscodeReason is a structured explanation attached to the plan.
type TranscodeReason struct {
	Code           TranscodeReasonCode
	Detail         string
}

// TranscodePlan is the Transcode Planner's output.
type TranscodePlan struct {
	ShouldSkip    bool
	SkipReason    string
	NeedsTranscode bool
	NeedsScale     bool
	TargetWidth    int
	TargetHeight   int
	Audio          AudioPlan
	Reasons        []TranscodeReason
	Warnings       []string

	// TwoPass reports whether two-pass encoding will actually be used;
	// TwoPassDowngraded is set when the policy requested it but the target
	// codec isn't on the known-good allow-list.
	TwoPass           bool
	TwoPassDowngraded bool
	TwoPassNote       string

	// EstimatedBitrate is set when the source bitrate was missing and had
	// to be derived from size/duration.
	EstimatedBitrate   int64
	BitrateWasEstimated bool
}

// Plan evaluates the transcode policy against an introspected file and the
// filter pass's dispositions (so REMOVEd tracks are reflected in the audio
// plan without re-deriving them).
func Plan(info mediainfo.FileInfo, cfg TranscodePolicyConfig, dispositions []planmodel.TrackDisposition) (TranscodePlan, error) {
	video, videoIdx, hasVideo := info.PrimaryVideo()
	warnMultiVideo(&info)

	currentBitrate, estimated := resolveBitrate(info, video)

	if skip, reason := evaluateSkip(cfg.Skip, video, currentBitrate, hasVideo); skip {
		return TranscodePlan{
			ShouldSkip: true,
			SkipReason: reason,
			Reasons:    []TranscodeReason{{Code: ReasonSkipMatched, Detail: reason}},
		}, nil
	}

	plan := TranscodePlan{
		EstimatedBitrate:    currentBitrate,
		BitrateWasEstimated: estimated,
	}
	if estimated {
		plan.Warnings = append(plan.Warnings, "bitrate missing from source; estimated from file size and duration")
	}
	if videoIdx >= 0 {
		plan.Warnings = append(plan.Warnings, multiVideoWarning(info, videoIdx)...)
	}

	if hasVideo {
		evaluateCodec(&plan, cfg, video)
		evaluateScale(&plan, cfg, video)
		evaluateHDR(&plan, video)
		evaluateVFR(&plan, video)
	}

	plan.Audio = buildAudioPlan(info, cfg.Audio, dispositions)

	if cfg.TwoPass {
		evaluateTwoPass(&plan, cfg)
	}

	return plan, nil
}

func resolveBitrate(info mediainfo.FileInfo, video mediainfo.Track) (int64, bool) {
	if video.BitRate > 0 {
		return video.BitRate, false
	}
	if info.DurationSec <= 0 || info.SizeBytes <= 0 {
		return 0, true
	}
	estimated := int64(8 * float64(info.SizeBytes) / info.DurationSec)
	return estimated, true
}

func evaluateSkip(cond *SkipCondition, video mediainfo.Track, currentBitrate int64, hasVideo bool) (bool, string) {
	if cond == nil {
		return false, ""
	}
	var matched []string

	if len(cond.CodecMatches) > 0 {
		if !hasVideo || !langcode.CodecMatchesAny(video.Codec, cond.CodecMatches) {
			return false, fmt.Sprintf("codec %q did not match skip patterns %v", video.Codec, cond.CodecMatches)
		}
		matched = append(matched, fmt.Sprintf("codec=%s", video.Codec))
	}

	if cond.ResolutionWithin != "" {
		maxW, maxH, ok := langcode.ResolvePreset(cond.ResolutionWithin)
		if !ok {
			return false, fmt.Sprintf("unknown resolution preset %q", cond.ResolutionWithin)
		}
		if !hasVideo || video.Width > maxW || video.Height > maxH {
			return false, fmt.Sprintf("resolution %dx%d exceeds preset %s", video.Width, video.Height, cond.ResolutionWithin)
		}
		matched = append(matched, fmt.Sprintf("resolution<=%s", cond.ResolutionWithin))
	}

	if cond.BitrateUnder != "" {
		threshold, ok := langcode.ParseBitrate(cond.BitrateUnder)
		if !ok {
			return false, fmt.Sprintf("unparseable bitrate threshold %q", cond.BitrateUnder)
		}
		if currentBitrate >= threshold {
			return false, fmt.Sprintf("bitrate %d >= threshold %d", currentBitrate, threshold)
		}
		matched = append(matched, fmt.Sprintf("bitrate<%s", cond.BitrateUnder))
	}

	if len(matched) == 0 {
		return false, "no skip conditions configured"
	}
	return true, fmt.Sprintf("matched: %v", matched)
}

func evaluateCodec(plan *TranscodePlan, cfg TranscodePolicyConfig, video mediainfo.Track) {
	if cfg.TargetVideoCodec == "" {
		return
	}
	if langcode.CodecMatches(video.Codec, cfg.TargetVideoCodec) {
		return
	}
	plan.NeedsTranscode = true
	plan.Reasons = append(plan.Reasons, TranscodeReason{
		Code:   ReasonCodecMismatch,
		Detail: fmt.Sprintf("%s -> %s", video.Codec, cfg.TargetVideoCodec),
	})
}

func evaluateScale(plan *TranscodePlan, cfg TranscodePolicyConfig, video mediainfo.Track) {
	if cfg.MaxResolution == "" || video.Width <= 0 || video.Height <= 0 {
		return
	}
	maxW, maxH, ok := langcode.ResolvePreset(cfg.MaxResolution)
	if !ok {
		return
	}
	if video.Width <= maxW && video.Height <= maxH {
		return
	}
	widthRatio := float64(maxW) / float64(video.Width)
	heightRatio := float64(maxH) / float64(video.Height)
	scale := math.Min(widthRatio, heightRatio)

	targetW := langcode.RoundEven(int(float64(video.Width) * scale))
	targetH := langcode.RoundEven(int(float64(video.Height) * scale))

	plan.NeedsScale = true
	plan.NeedsTranscode = true
	plan.TargetWidth = targetW
	plan.TargetHeight = targetH
	plan.Reasons = append(plan.Reasons, TranscodeReason{
		Code: ReasonResolutionExceeded,
		Detail: fmt.Sprintf("%dx%d -> %dx%d (max %s)", video.Width, video.Height, targetW, targetH, cfg.MaxResolution),
	})
}

func evaluateHDR(plan *TranscodePlan, video mediainfo.Track) {
	if !video.Color.IsHDR() {
		return
	}
	if plan.NeedsScale {
		plan.Warnings = append(plan.Warnings, "HDR source is being scaled; visual quality may suffer")
	}
	plan.Warnings = append(plan.Warnings, fmt.Sprintf("HDR metadata (%s) must be preserved end-to-end", video.Color.Transfer))
}

func evaluateVFR(plan *TranscodePlan, video mediainfo.Track) {
	if video.FrameRateAvg <= 0 || video.FrameRateReal <= 0 {
		return
	}
	diff := math.Abs(video.FrameRateAvg - video.FrameRateReal)
	if diff/video.FrameRateReal > 0.01 {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"variable frame rate detected (avg=%.3f real=%.3f)", video.FrameRateAvg, video.FrameRateReal))
	}
}

func warnMultiVideo(info *mediainfo.FileInfo) {
	// No-op placeholder kept for symmetry with multiVideoWarning; the real
	// detection happens in multiVideoWarning once PrimaryVideo has already
	// picked a winner, since the warning needs the selected index.
	_ = info
}

func multiVideoWarning(info mediainfo.FileInfo, primaryIdx int) []string {
	count := 0
	for _, t := range info.Tracks {
		if t.Kind == mediainfo.TrackVideo {
			count++
		}
	}
	if count <= 1 {
		return nil
	}
	return []string{fmt.Sprintf("%d video streams present; selected stream at index %d as primary", count, primaryIdx)}
}

func evaluateTwoPass(plan *TranscodePlan, cfg TranscodePolicyConfig) {
	codec := cfg.TargetVideoCodec
	if codec == "" {
		codec = cfg.Quality.Preset
	}
	if twoPassAllowedCodecs[codec] {
		plan.TwoPass = true
		return
	}
	plan.TwoPassDowngraded = true
	plan.TwoPassNote = fmt.Sprintf("two-pass requested but target codec %q is not on the known-good allow-list; using single-pass", codec)
	plan.Warnings = append(plan.Warnings, plan.TwoPassNote)
}

func buildAudioPlan(info mediainfo.FileInfo, cfg *AudioTranscodeConfig, dispositions []planmodel.TrackDisposition) AudioPlan {
	removed := make(map[int]bool, len(dispositions))
	for _, d := range dispositions {
		if d.State == planmodel.Removed {
			removed[d.TrackIndex] = true
		}
	}

	var result AudioPlan
	firstSurviving := -1
	for _, t := range info.Tracks {
		if t.Kind != mediainfo.TrackAudio {
			continue
		}
		if removed[t.Index] {
			result.Tracks = append(result.Tracks, AudioTrackPlan{TrackIndex: t.Index, Decision: AudioRemove})
			continue
		}
		if firstSurviving < 0 {
			firstSurviving = t.Index
		}
		decision := audioDecisionFor(t, cfg)
		entry := AudioTrackPlan{TrackIndex: t.Index, Decision: decision}
		if decision == AudioTranscode && cfg != nil {
			entry.TargetCodec = cfg.TargetCodec
			entry.TargetBitrate = cfg.TargetBitrate
		}
		result.Tracks = append(result.Tracks, entry)
	}

	if cfg != nil && cfg.Downmix != DownmixNone && firstSurviving >= 0 {
		result.Downmix = &DownmixPlan{
			SourceTrackIndex: firstSurviving,
			Target:           cfg.Downmix,
			FilterRecipe:     downmixRecipe(cfg.Downmix),
		}
	}

	return result
}

func audioDecisionFor(t mediainfo.Track, cfg *AudioTranscodeConfig) AudioDecision {
	if cfg == nil {
		return AudioCopy
	}
	if langcode.CodecMatchesAny(t.Codec, cfg.PreserveCodecs) {
		return AudioCopy
	}
	if cfg.TargetCodec == "" {
		return AudioCopy
	}
	if langcode.CodecMatches(t.Codec, cfg.TargetCodec) {
		return AudioCopy
	}
	return AudioTranscode
}

// downmixRecipe returns the named filter matrix so dialog is preserved
// across the fold-down, per spec §4.3.
func downmixRecipe(target DownmixTarget) string {
	switch target {
	case DownmixStereo:
		return "pan=stereo|FL=0.5*FC+0.707*FL+0.707*BL+0.5*LFE|FR=0.5*FC+0.707*FR+0.707*BR+0.5*LFE" // Dolby Pro Logic II style fold-down
	case DownmixSurround51:
		return "pan=5.1|FL=FL+0.707*FLC|FR=FR+0.707*FRC|FC=FC|LFE=LFE|BL=BL+0.5*SL|BR=BR+0.5*SR" // symmetric 7.1 -> 5.1 fold-down
	default:
		return ""
	}
}
