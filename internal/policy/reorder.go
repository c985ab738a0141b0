package policy

import (
	"sort"
	"strconv"
	"strings"

	"spindle/internal/langcode"
	"spindle/internal/mediainfo"
	"spindle/internal/planmodel"
)

// runReorderPass computes the desired kept-track permutation honoring
// phase.TrackOrder and, if it differs from the input order, returns a
// single file-level REORDER action plus requiresRemux=true. It returns
// (nil, false) when no track_order is configured (reorder is skipped
// entirely) or when the order is already as desired.
func runReorderPass(file mediainfo.FileInfo, phase PhaseDefinition, result filterResult) (action *planmodel.PlannedAction, requiresRemux bool) {
	if phase.TrackOrder == nil || len(phase.TrackOrder.Order) == 0 {
		return nil, false
	}

	current := keptIndicesInInputOrder(file, result)
	desired := desiredOrder(file, phase, result)

	if indicesEqual(current, desired) {
		return nil, false
	}

	return &planmodel.PlannedAction{
		Type:         planmodel.ActionReorder,
		CurrentValue: joinIndices(current),
		DesiredValue: joinIndices(desired),
	}, true
}

func keptIndicesInInputOrder(file mediainfo.FileInfo, result filterResult) []int {
	var out []int
	for _, t := range file.Tracks {
		if result.isKept(t.Index) {
			out = append(out, t.Index)
		}
	}
	return out
}

func desiredOrder(file mediainfo.FileInfo, phase PhaseDefinition, result filterResult) []int {
	audioPref := audioPreference(phase)
	subtitlePref := subtitlePreference(phase)
	mainAudio := firstKeptOfKind(file, result, mediainfo.TrackAudio, audioPref)

	buckets := map[TrackOrderBucket][]int{}
	for _, t := range file.Tracks {
		if !result.isKept(t.Index) {
			continue
		}
		switch t.Kind {
		case mediainfo.TrackVideo:
			buckets[BucketVideo] = append(buckets[BucketVideo], t.Index)
		case mediainfo.TrackAudio:
			if t.Index == mainAudio {
				buckets[BucketAudioMain] = append(buckets[BucketAudioMain], t.Index)
			} else {
				buckets[BucketAudioAlternate] = append(buckets[BucketAudioAlternate], t.Index)
			}
		case mediainfo.TrackSubtitle:
			buckets[BucketSubtitle] = append(buckets[BucketSubtitle], t.Index)
		case mediainfo.TrackAttachment:
			buckets[BucketAttachment] = append(buckets[BucketAttachment], t.Index)
		}
	}

	sortByLanguagePreference(file, buckets[BucketAudioAlternate], audioPref)
	sortByLanguagePreference(file, buckets[BucketSubtitle], subtitlePref)

	var out []int
	seen := make(map[TrackOrderBucket]bool, len(phase.TrackOrder.Order))
	for _, bucket := range phase.TrackOrder.Order {
		seen[bucket] = true
		out = append(out, buckets[bucket]...)
	}
	// Any kept kind absent from the configured order is appended in its
	// input-order position at the end, so a partial track_order never
	// silently drops tracks from the plan.
	for _, bucket := range []TrackOrderBucket{BucketVideo, BucketAudioMain, BucketAudioAlternate, BucketSubtitle, BucketAttachment} {
		if !seen[bucket] {
			out = append(out, buckets[bucket]...)
		}
	}
	return out
}

func subtitlePreference(phase PhaseDefinition) []string {
	if phase.SubtitleFilter == nil {
		return nil
	}
	return phase.SubtitleFilter.LanguagePreference
}

func sortByLanguagePreference(file mediainfo.FileInfo, indices []int, preference []string) {
	if len(preference) == 0 {
		return
	}
	langByIndex := make(map[int]string, len(file.Tracks))
	for _, t := range file.Tracks {
		langByIndex[t.Index] = t.Language
	}
	sort.SliceStable(indices, func(i, j int) bool {
		ri, iok := langcode.PreferenceRank(langByIndex[indices[i]], preference)
		rj, jok := langcode.PreferenceRank(langByIndex[indices[j]], preference)
		if !iok {
			ri = len(preference)
		}
		if !jok {
			rj = len(preference)
		}
		return ri < rj
	})
}

func indicesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}
