package policy

import (
	"spindle/internal/langcode"
	"spindle/internal/mediainfo"
	"spindle/internal/planmodel"
)

// runDefaultFlagsPass computes the desired is_default track per kind among
// kept tracks and emits CLEAR_DEFAULT actions before SET_DEFAULT actions
// (final ordering is enforced by Plan.SortActions, called once by the
// caller after all passes run).
func runDefaultFlagsPass(file mediainfo.FileInfo, phase PhaseDefinition, result filterResult) []planmodel.PlannedAction {
	var actions []planmodel.PlannedAction

	desiredVideo := firstKeptOfKind(file, result, mediainfo.TrackVideo, nil)
	desiredAudio := firstKeptOfKind(file, result, mediainfo.TrackAudio, audioPreference(phase))
	desiredSubtitle := -1
	if phase.DefaultFlags != nil && phase.DefaultFlags.SubtitleDefaultLanguage != "" {
		desiredSubtitle = firstKeptMatchingLanguage(file, result, mediainfo.TrackSubtitle, phase.DefaultFlags.SubtitleDefaultLanguage)
	}

	desired := map[int]bool{}
	if desiredVideo >= 0 {
		desired[desiredVideo] = true
	}
	if desiredAudio >= 0 {
		desired[desiredAudio] = true
	}
	if desiredSubtitle >= 0 {
		desired[desiredSubtitle] = true
	}

	for _, t := range file.Tracks {
		if !result.isKept(t.Index) {
			continue
		}
		if t.Kind != mediainfo.TrackVideo && t.Kind != mediainfo.TrackAudio && t.Kind != mediainfo.TrackSubtitle {
			continue
		}
		wantDefault := desired[t.Index]
		if t.Default && !wantDefault {
			idx := t.Index
			actions = append(actions, planmodel.PlannedAction{
				Type: planmodel.ActionClearDefault, TrackIndex: &idx,
				CurrentValue: "true", DesiredValue: "false",
			})
		}
		if !t.Default && wantDefault {
			idx := t.Index
			actions = append(actions, planmodel.PlannedAction{
				Type: planmodel.ActionSetDefault, TrackIndex: &idx,
				CurrentValue: "false", DesiredValue: "true",
			})
		}
	}

	return actions
}

func audioPreference(phase PhaseDefinition) []string {
	if phase.AudioFilter == nil {
		return nil
	}
	return phase.AudioFilter.LanguagePreference
}

// firstKeptOfKind returns the index of the first kept track of kind,
// preferring the highest-ranked language in preference when provided.
func firstKeptOfKind(file mediainfo.FileInfo, result filterResult, kind mediainfo.TrackKind, preference []string) int {
	best := -1
	bestRank := len(preference) + 1
	for _, t := range file.Tracks {
		if t.Kind != kind || !result.isKept(t.Index) {
			continue
		}
		if len(preference) == 0 {
			if best < 0 {
				best = t.Index
			}
			continue
		}
		rank, ok := langcode.PreferenceRank(t.Language, preference)
		if !ok {
			continue
		}
		if rank < bestRank {
			bestRank = rank
			best = t.Index
		}
	}
	if best < 0 && len(preference) > 0 {
		// No kept track matched the preference list; fall back to the
		// first kept track of this kind so exactly one default exists.
		for _, t := range file.Tracks {
			if t.Kind == kind && result.isKept(t.Index) {
				return t.Index
			}
		}
	}
	return best
}

func firstKeptMatchingLanguage(file mediainfo.FileInfo, result filterResult, kind mediainfo.TrackKind, language string) int {
	for _, t := range file.Tracks {
		if t.Kind == kind && result.isKept(t.Index) && langcode.Equal(t.Language, language) {
			return t.Index
		}
	}
	return -1
}
