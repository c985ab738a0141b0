package policy

import (
	"spindle/internal/mediainfo"
	"spindle/internal/planmodel"
	"spindle/internal/transcodeplan"
)

// Result bundles the evaluator's output: the track/metadata/ordering plan,
// and — when the phase configures transcode — the companion transcode
// plan from §4.3.
type Result struct {
	Plan      planmodel.Plan
	Transcode *transcodeplan.TranscodePlan
}

// Evaluate runs the six construction passes of spec §4.2 for one phase
// against one file and returns a deterministic Result. It is a pure
// function: the same inputs always produce a byte-equal Plan.
//
// A ConstraintError is never returned from here — floor violations are
// folded into Result.Plan.ConstraintSkipped instead, matching spec §9's
// guidance to model PolicyError as a distinct result variant rather than
// an exception in a statically typed target.
func Evaluate(file mediainfo.FileInfo, policy EvaluationPolicy, phase PhaseDefinition, pluginMeta PluginMetadata, langResults []LanguageAnalysisResult) (Result, error) {
	// 1. Filter pass.
	filtered := runFilterPass(file, policy, phase, langResults)
	skipped, reason := enforceFloors(file, policy, &filtered)

	plan := planmodel.Plan{
		Dispositions:      filtered.dispositions,
		ConstraintSkipped: skipped,
		ConstraintReason:  reason,
	}

	if !passesConditional(phase.Conditional, pluginMeta) {
		plan.ConstraintSkipped = true
		if plan.ConstraintReason == "" {
			plan.ConstraintReason = "constraint: conditional operation's required plugin field was absent"
		}
	}

	var actions []planmodel.PlannedAction

	// 2. Default-flags pass.
	actions = append(actions, runDefaultFlagsPass(file, phase, filtered)...)

	// 3. Metadata pass.
	actions = append(actions, runMetadataPass(file, filtered)...)

	// 4. Reorder pass.
	if reorderAction, requiresRemux := runReorderPass(file, phase, filtered); reorderAction != nil {
		actions = append(actions, *reorderAction)
		plan.RequiresRemux = plan.RequiresRemux || requiresRemux
	}

	plan.Actions = actions
	plan.SortActions()

	// 5. Container pass.
	if phase.Container != nil && phase.Container.Target != "" && phase.Container.Target != file.ContainerFormat {
		plan.ContainerChange = &planmodel.ContainerChange{
			Source: file.ContainerFormat,
			Target: phase.Container.Target,
		}
		plan.RequiresRemux = true
	}

	for _, d := range plan.Dispositions {
		if d.State == planmodel.Kept {
			plan.TracksKept++
		} else {
			plan.TracksRemoved++
		}
	}

	// 6. Transcode pass.
	result := Result{Plan: plan}
	if phase.Transcode != nil {
		cfg := *phase.Transcode
		if phase.AudioTranscode != nil {
			cfg.Audio = phase.AudioTranscode
		}
		if phase.AudioSynthesis != nil && cfg.Audio != nil {
			cfg.Audio.Downmix = phase.AudioSynthesis.Downmix
		}
		transcodePlan, err := transcodeplan.Plan(file, cfg, plan.Dispositions)
		if err != nil {
			return Result{}, err
		}
		result.Transcode = &transcodePlan
		for _, w := range transcodePlan.Warnings {
			result.Plan.Warnings = append(result.Plan.Warnings, w)
		}
	}

	return result, nil
}

// passesConditional evaluates a ConditionalConfig as a logical AND of
// plugin-field equality checks. A nil config always passes.
func passesConditional(cfg *ConditionalConfig, pluginMeta PluginMetadata) bool {
	if cfg == nil || len(cfg.RequirePluginField) == 0 {
		return true
	}
	for plugin, wantFields := range cfg.RequirePluginField {
		fields, ok := pluginMeta[plugin]
		if !ok {
			return false
		}
		for field, wantValue := range wantFields {
			if fields[field] != wantValue {
				return false
			}
		}
	}
	return true
}
