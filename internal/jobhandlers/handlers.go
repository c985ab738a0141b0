// Package jobhandlers wires the store, the policy evaluator, the transcode
// planner, and the Phase Executor into the jobqueue.Handler functions the
// worker pool dispatches to (spec §4.5: "an external caller enqueues jobs;
// workers pull from the queue ... drive the plan through the external
// tools"). Grounded on the teacher's internal/workflow manager, which plays
// the same connective role between its queue and its per-stage handlers.
package jobhandlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"spindle/internal/corerr"
	"spindle/internal/externaltool"
	"spindle/internal/jobqueue"
	"spindle/internal/logging"
	"spindle/internal/mediainfo"
	"spindle/internal/phaseexec"
	"spindle/internal/planmodel"
	"spindle/internal/policy"
	"spindle/internal/store"
)

// Registry bundles the collaborators job handlers need: the store for
// persistence, the tool capability set for probing, the Phase Executor for
// applying evaluated plans, and the named policies this daemon was started
// with (policy *parsing* is out of scope per spec §1 Non-goals; Registry
// only consumes already-built policy.EvaluationPolicy values).
type Registry struct {
	Store    *store.Store
	Tools    externaltool.Toolset
	Executor *phaseexec.Executor
	Policies map[string]policy.EvaluationPolicy
	Logger   *slog.Logger
}

func (r *Registry) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logging.NewNop()
}

// Build returns the job-type-to-handler map cmd/vpod registers with the
// worker pool. scan and process are the two fully wired operational paths;
// apply, transcode, move, and prune remain part of the closed JobType enum
// (spec §3) for schema compatibility with no independent handler yet — an
// unregistered type fails cleanly via jobqueue.Pool's own "no handler
// registered" path rather than silently doing nothing.
func (r *Registry) Build() map[store.JobType]jobqueue.Handler {
	return map[store.JobType]jobqueue.Handler{
		store.JobScan:    r.handleScan,
		store.JobProcess: r.handleProcess,
	}
}

// handleScan probes job.FileID's file and persists the resulting track
// layout, the prerequisite a process job's direct-apply path depends on.
func (r *Registry) handleScan(ctx context.Context, job *store.JobRecord) (string, error) {
	if job.FileID == nil {
		return "", corerr.New(corerr.InputError, "jobhandlers", "scan job requires file_id", nil)
	}
	file, err := r.Store.GetFileByID(ctx, *job.FileID)
	if err != nil {
		return "", err
	}
	if file == nil {
		return "", corerr.New(corerr.InputError, "jobhandlers", fmt.Sprintf("file %d not found", *job.FileID), nil)
	}

	info, err := r.Tools.Probe(ctx, file.Path)
	if err != nil {
		return "", corerr.New(corerr.ToolFailure, "jobhandlers", "probe", err)
	}

	file.ContainerFormat = info.ContainerFormat
	file.ContainerTags = info.ContainerTags
	file.ScanStatus = store.ScanOK
	if _, err := r.Store.UpsertFile(ctx, file); err != nil {
		return "", err
	}
	if err := r.Store.ReplaceTracks(ctx, file.ID, tracksFromFileInfo(file.ID, info)); err != nil {
		return "", err
	}
	return file.Path, nil
}

// handleProcess implements SPEC_FULL.md §9's plan-approval integration
// choice: a process job created with an explicit plan_id requires that
// plan to be approved before the Phase Executor runs it; a process job
// with no plan_id evaluates every phase of its named policy and applies
// each in turn, in one step.
func (r *Registry) handleProcess(ctx context.Context, job *store.JobRecord) (string, error) {
	if job.FileID == nil {
		return "", corerr.New(corerr.InputError, "jobhandlers", "process job requires file_id", nil)
	}
	file, err := r.Store.GetFileByID(ctx, *job.FileID)
	if err != nil {
		return "", err
	}
	if file == nil {
		return "", corerr.New(corerr.InputError, "jobhandlers", fmt.Sprintf("file %d not found", *job.FileID), nil)
	}
	tracks, err := r.Store.ListTracksByFile(ctx, file.ID)
	if err != nil {
		return "", err
	}
	info := fileInfoFromRecords(file, tracks)

	if job.PlanID != "" {
		return r.runApprovedPlan(ctx, job, info)
	}

	evalPolicy, err := r.resolvePolicy(ctx, job)
	if err != nil {
		return "", err
	}

	finalPath := file.Path
	for _, phase := range evalPolicy.Phases {
		result, err := policy.Evaluate(info, evalPolicy, phase, nil, nil)
		if err != nil {
			return "", corerr.New(corerr.InputError, "jobhandlers", "evaluate phase "+phase.Name, err)
		}

		outcome, err := r.Executor.Run(ctx, phaseexec.Request{
			FilePath:      finalPath,
			File:          info,
			FileID:        file.ID,
			JobID:         job.ID,
			PolicyPlan:    result.Plan,
			Transcode:     result.Transcode,
			OnError:       phase.OnError,
			FileTimestamp: phase.FileTimestamp,
			Transcription: phase.Transcription,
		})
		if err != nil {
			return "", err
		}
		if outcome.Applied {
			finalPath = outcome.FinalPath
			info.Path = finalPath
		}
	}
	return finalPath, nil
}

// runApprovedPlan executes a previously-created Plan after confirming it
// has been approved; applying it transitions the plan to PlanApplied when
// the executor reports Outcome.Applied, and to PlanCanceled otherwise (a
// plan with nothing to do, or a failure swallowed under on_error=skip or
// on_error=continue).
// PlanRecord.ActionsJSON holds the full serialized planmodel.Plan (not
// just its Actions slice) so an approved plan replays with its
// dispositions and container change intact; transcoding is not part of
// the persisted plan shape, so the approval path never drives a
// transcode — only the direct-apply path does.
func (r *Registry) runApprovedPlan(ctx context.Context, job *store.JobRecord, info mediainfo.FileInfo) (string, error) {
	plan, err := r.Store.GetPlan(ctx, job.PlanID)
	if err != nil {
		return "", err
	}
	if plan == nil {
		return "", corerr.New(corerr.InputError, "jobhandlers", "plan "+job.PlanID+" not found", nil)
	}
	if plan.Status != store.PlanApproved {
		return "", corerr.New(corerr.InputError, "jobhandlers",
			fmt.Sprintf("plan %s is %s, not approved", plan.ID, plan.Status), nil)
	}

	var policyPlan planmodel.Plan
	if err := json.Unmarshal([]byte(plan.ActionsJSON), &policyPlan); err != nil {
		return "", corerr.New(corerr.InputError, "jobhandlers", "decode plan", err)
	}

	var fileID int64
	if plan.FileID != nil {
		fileID = *plan.FileID
	}

	outcome, err := r.Executor.Run(ctx, phaseexec.Request{
		FilePath:   plan.FilePath,
		File:       info,
		FileID:     fileID,
		PlanID:     plan.ID,
		JobID:      job.ID,
		PolicyPlan: policyPlan,
	})
	if err != nil {
		return "", err
	}

	status := store.PlanApplied
	if !outcome.Applied {
		status = store.PlanCanceled
	}
	if err := r.Store.TransitionPlan(ctx, plan.ID, status); err != nil {
		return "", err
	}
	return outcome.FinalPath, nil
}

// resolvePolicy looks up the named policy a job was enqueued against.
// Per-job PolicyJSON overrides, when present, let a caller enqueue a
// one-off policy without registering it with the daemon first.
func (r *Registry) resolvePolicy(_ context.Context, job *store.JobRecord) (policy.EvaluationPolicy, error) {
	if job.PolicyJSON != "" {
		var p policy.EvaluationPolicy
		if err := json.Unmarshal([]byte(job.PolicyJSON), &p); err != nil {
			return policy.EvaluationPolicy{}, corerr.New(corerr.InputError, "jobhandlers", "decode policy_json", err)
		}
		return p, nil
	}
	p, ok := r.Policies[job.PolicyName]
	if !ok {
		return policy.EvaluationPolicy{}, corerr.New(corerr.InputError, "jobhandlers",
			"unknown policy "+job.PolicyName, errors.New("no policy registered with that name"))
	}
	return p, nil
}
