package policy

import (
	"spindle/internal/langcode"
	"spindle/internal/mediainfo"
	"spindle/internal/planmodel"
)

// runMetadataPass emits SET_LANGUAGE actions for kept tracks whose tagged
// language differs from its canonical 3-letter normalization. Title and
// forced-flag overrides are closed-struct policy knobs not yet exposed on
// PhaseDefinition (no operation config in this policy schema requests
// them), so only language normalization runs here; this still satisfies
// the store-level invariant that persisted languages are canonical.
func runMetadataPass(file mediainfo.FileInfo, result filterResult) []planmodel.PlannedAction {
	var actions []planmodel.PlannedAction
	for _, t := range file.Tracks {
		if !result.isKept(t.Index) {
			continue
		}
		if t.Language == "" {
			continue
		}
		normalized := langcode.Normalize(t.Language)
		if normalized == t.Language {
			continue
		}
		idx := t.Index
		actions = append(actions, planmodel.PlannedAction{
			Type:         planmodel.ActionSetLanguage,
			TrackIndex:   &idx,
			CurrentValue: t.Language,
			DesiredValue: normalized,
		})
	}
	return actions
}
