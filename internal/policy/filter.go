package policy

import (
	"fmt"
	"regexp"
	"strings"

	"spindle/internal/langcode"
	"spindle/internal/mediainfo"
	"spindle/internal/planmodel"
)

// filterResult is the filter pass's working state before floors are
// enforced.
type filterResult struct {
	dispositions []planmodel.TrackDisposition
	kept         map[int]bool
}

func (f filterResult) isKept(index int) bool { return f.kept[index] }

// runFilterPass computes the per-track keep/remove decision for every
// track in file, honoring audio/subtitle/attachment filter configs and the
// commentary title anti-pattern list. Video and "other" tracks are always
// kept; the filter pass only narrows audio/subtitle/attachment.
func runFilterPass(file mediainfo.FileInfo, policy EvaluationPolicy, phase PhaseDefinition, lang []LanguageAnalysisResult) filterResult {
	commentary := compileCommentaryPatterns(policy.CommentaryPatterns)
	langByTrack := make(map[int]LanguageAnalysisResult, len(lang))
	for _, l := range lang {
		langByTrack[l.TrackIndex] = l
	}

	result := filterResult{kept: make(map[int]bool, len(file.Tracks))}

	for _, t := range file.Tracks {
		switch t.Kind {
		case mediainfo.TrackVideo, mediainfo.TrackOther:
			result.keep(t.Index, "retained by default")
		case mediainfo.TrackAudio:
			keep, reason := evaluateAudioTrack(t, phase.AudioFilter, commentary, langByTrack[t.Index])
			result.record(t.Index, keep, reason)
		case mediainfo.TrackSubtitle:
			keep, reason := evaluateSubtitleTrack(t, phase.SubtitleFilter)
			result.record(t.Index, keep, reason)
		case mediainfo.TrackAttachment:
			keep, reason := evaluateAttachmentTrack(t, phase.AttachmentFilter)
			result.record(t.Index, keep, reason)
		default:
			result.keep(t.Index, "retained by default")
		}
	}

	return result
}

func (f *filterResult) keep(index int, reason string) {
	f.record(index, true, reason)
}

func (f *filterResult) record(index int, keep bool, reason string) {
	state := planmodel.Removed
	if keep {
		state = planmodel.Kept
		f.kept[index] = true
	}
	f.dispositions = append(f.dispositions, planmodel.TrackDisposition{
		TrackIndex: index,
		State:      state,
		Reason:     reason,
	})
}

func compileCommentaryPatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			compiled = append(compiled, re)
		}
	}
	return compiled
}

func evaluateAudioTrack(t mediainfo.Track, cfg *AudioFilterConfig, commentary []*regexp.Regexp, langResult LanguageAnalysisResult) (bool, string) {
	for _, re := range commentary {
		if re.MatchString(t.Title) {
			return false, fmt.Sprintf("title %q matches commentary pattern", t.Title)
		}
	}
	if cfg == nil {
		return true, "no audio filter configured"
	}
	if len(cfg.LanguagePreference) > 0 {
		if _, ok := langcode.PreferenceRank(t.Language, cfg.LanguagePreference); !ok {
			return false, fmt.Sprintf("language %q not in preference list", t.Language)
		}
	}
	if len(cfg.CodecAllowList) > 0 && !langcode.CodecMatchesAny(t.Codec, cfg.CodecAllowList) {
		return false, fmt.Sprintf("codec %q not in allow-list", t.Codec)
	}
	if cfg.MinChannels > 0 && t.Channels < cfg.MinChannels {
		return false, fmt.Sprintf("channel count %d below minimum %d", t.Channels, cfg.MinChannels)
	}
	if cfg.MaxChannels > 0 && t.Channels > cfg.MaxChannels {
		return false, fmt.Sprintf("channel count %d above maximum %d", t.Channels, cfg.MaxChannels)
	}
	if langResult.PrimaryLanguage != "" && len(cfg.LanguagePreference) > 0 {
		if !langcode.Equal(langResult.PrimaryLanguage, t.Language) {
			return false, fmt.Sprintf("detected primary language %q disagrees with tagged language %q", langResult.PrimaryLanguage, t.Language)
		}
	}
	return true, "passed audio filter"
}

func evaluateSubtitleTrack(t mediainfo.Track, cfg *SubtitleFilterConfig) (bool, string) {
	if t.Forced {
		return true, "forced subtitles are always kept"
	}
	if cfg == nil || len(cfg.LanguagePreference) == 0 {
		return true, "no subtitle filter configured"
	}
	if _, ok := langcode.PreferenceRank(t.Language, cfg.LanguagePreference); !ok {
		return false, fmt.Sprintf("language %q not in preference list", t.Language)
	}
	return true, "passed subtitle filter"
}

func evaluateAttachmentTrack(t mediainfo.Track, cfg *AttachmentFilterConfig) (bool, string) {
	if cfg == nil || len(cfg.Keep) == 0 {
		return true, "no attachment filter configured"
	}
	for _, want := range cfg.Keep {
		if strings.EqualFold(want, t.Title) {
			return true, "matched attachment keep-list"
		}
	}
	return false, "not in attachment keep-list"
}

// enforceFloors applies spec §4.2's "never produce a plan that would drop
// below the floor" rule: when the filter pass's removals would push a
// kind below its configured floor (and the input had at least that many
// tracks of that kind), the removals for that kind are undone and the plan
// is marked constraint-skipped with a structured reason.
func enforceFloors(file mediainfo.FileInfo, policy EvaluationPolicy, result *filterResult) (skipped bool, reason string) {
	if floorViolated(file, result, mediainfo.TrackAudio, policy.MinimumAudioTracks) {
		restoreKind(file, result, mediainfo.TrackAudio)
		return true, fmt.Sprintf("constraint: would drop below minimum_audio_tracks=%d", policy.MinimumAudioTracks)
	}
	if floorViolated(file, result, mediainfo.TrackSubtitle, policy.MinimumSubtitleTracks) {
		restoreKind(file, result, mediainfo.TrackSubtitle)
		return true, fmt.Sprintf("constraint: would drop below minimum_subtitle_tracks=%d", policy.MinimumSubtitleTracks)
	}
	return false, ""
}

func floorViolated(file mediainfo.FileInfo, result *filterResult, kind mediainfo.TrackKind, floor int) bool {
	if floor <= 0 {
		return false
	}
	total, kept := 0, 0
	for _, t := range file.Tracks {
		if t.Kind != kind {
			continue
		}
		total++
		if result.isKept(t.Index) {
			kept++
		}
	}
	return total >= floor && kept < floor
}

func restoreKind(file mediainfo.FileInfo, result *filterResult, kind mediainfo.TrackKind) {
	for _, t := range file.Tracks {
		if t.Kind != kind {
			continue
		}
		result.kept[t.Index] = true
	}
	for i := range result.dispositions {
		d := &result.dispositions[i]
		for _, t := range file.Tracks {
			if t.Index == d.TrackIndex && t.Kind == kind {
				d.State = planmodel.Kept
				d.Reason = "restored to satisfy minimum-track floor"
			}
		}
	}
}
