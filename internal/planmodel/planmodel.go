// Package planmodel holds the evaluator's pure output value types: Plan,
// PlannedAction, TrackDisposition. None of it does I/O; the Store persists
// a serialized form and the Phase Executor consumes it directly (spec §9:
// "implement it as a sum type / enum-of-structs; avoid class hierarchies").
package planmodel

// ActionType is the closed set of atomic plan intents.
type ActionType string

const (
	ActionClearDefault ActionType = "clear_default"
	ActionSetDefault   ActionType = "set_default"
	ActionSetTitle     ActionType = "set_title"
	ActionSetLanguage  ActionType = "set_language"
	ActionSetForced    ActionType = "set_forced"
	ActionReorder      ActionType = "reorder"
)

// actionRank fixes the total order actions must appear in within a plan:
// CLEAR_DEFAULT < SET_DEFAULT < per-track metadata sets < REORDER <
// container-level (container changes are carried on the Plan itself, not
// as an action, so REORDER is the last action kind).
var actionRank = map[ActionType]int{
	ActionClearDefault: 0,
	ActionSetDefault:   1,
	ActionSetTitle:     2,
	ActionSetLanguage:  2,
	ActionSetForced:    2,
	ActionReorder:      3,
}

// Rank returns the action's position in the canonical ordering. Actions of
// equal rank keep their relative insertion order (the evaluator appends in
// pass order, and sorting is stable).
func (a ActionType) Rank() int {
	if r, ok := actionRank[a]; ok {
		return r
	}
	return len(actionRank)
}

// PlannedAction is one atomic intent against a file or a track within it.
// TrackIndex is nil for file-level actions (currently only Reorder).
type PlannedAction struct {
	Type         ActionType
	TrackIndex   *int
	CurrentValue string
	DesiredValue string
}

// IsFileLevel reports whether the action targets the whole file rather than
// one track.
func (a PlannedAction) IsFileLevel() bool {
	return a.TrackIndex == nil
}

// DispositionState is the kept/removed decision for one input track under
// the filter pass.
type DispositionState string

const (
	Kept    DispositionState = "kept"
	Removed DispositionState = "removed"
)

// TrackDisposition records the filter pass's decision for one input track.
type TrackDisposition struct {
	TrackIndex int
	State      DispositionState
	Reason     string
}

// ContainerChange describes a requested container-format switch.
type ContainerChange struct {
	Source string
	Target string
}

// Plan is the evaluator's deterministic output for one file: a totally
// ordered list of actions, the per-track keep/remove dispositions, an
// optional container change, and whether a remux is required to realize
// the plan.
type Plan struct {
	Actions           []PlannedAction
	Dispositions      []TrackDisposition
	ContainerChange   *ContainerChange
	RequiresRemux     bool
	TracksKept        int
	TracksRemoved     int
	ConstraintSkipped bool
	ConstraintReason  string

	// Warnings accumulate non-fatal edge-case notes from the transcode
	// planner (VFR, multi-video, HDR+scale) so the phase executor can log
	// and persist them without re-deriving the condition.
	Warnings []string
}

// SortActions reorders p.Actions into the canonical total order, stable
// within equal ranks.
func (p *Plan) SortActions() {
	stableSortByRank(p.Actions)
}

func stableSortByRank(actions []PlannedAction) {
	// Insertion sort: actions lists are always small (at most a few dozen
	// per file) and stability matters more than asymptotic complexity.
	for i := 1; i < len(actions); i++ {
		j := i
		for j > 0 && actions[j-1].Type.Rank() > actions[j].Type.Rank() {
			actions[j-1], actions[j] = actions[j], actions[j-1]
			j--
		}
	}
}
