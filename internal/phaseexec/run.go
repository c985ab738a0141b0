package phaseexec

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spindle/internal/admission"
	"spindle/internal/atomicfile"
	"spindle/internal/corerr"
	"spindle/internal/externaltool"
	"spindle/internal/logging"
	"spindle/internal/planmodel"
	"spindle/internal/policy"
	"spindle/internal/services"
	"spindle/internal/store"
)

// Executor applies evaluated plans to real files. It owns no policy
// logic of its own — every decision arrives already made in a Request —
// and is responsible only for doing the mutation safely: admission,
// backup, apply, commit-or-rollback.
type Executor struct {
	Store        *store.Store
	Tools        externaltool.Toolset
	Transcribers map[string]TranscriptionPlugin // keyed by plugin name
	Logger       *slog.Logger
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logging.NewNop()
}

// Run applies req's plan to its file, returning what actually happened.
// A nil error with Outcome.Skipped=true means on_error=skip swallowed a
// failure; a non-nil error means on_error=fail propagated one.
func (e *Executor) Run(ctx context.Context, req Request) (Outcome, error) {
	log := logging.WithContext(services.WithStage(ctx, "phaseexec"), e.logger())

	if req.PolicyPlan.ConstraintSkipped {
		log.Info("phase skipped by constraint",
			logging.String(logging.FieldEventType, "constraint_skip"),
			logging.String("reason", req.PolicyPlan.ConstraintReason))
		return Outcome{ConstraintSkipped: true}, nil
	}

	needsMutation := len(req.PolicyPlan.Actions) > 0 ||
		req.PolicyPlan.ContainerChange != nil ||
		req.PolicyPlan.TracksRemoved > 0 ||
		(req.Transcode != nil && req.Transcode.NeedsTranscode && !req.Transcode.ShouldSkip)
	needsTimestamp := req.FileTimestamp != nil
	needsTranscription := req.Transcription != nil && req.Transcription.Enabled

	if !needsMutation && !needsTimestamp && !needsTranscription {
		return Outcome{Applied: false}, nil
	}

	lock, ok, err := admission.TryAcquire(req.FilePath)
	if err != nil {
		return Outcome{}, corerr.New(corerr.FilesystemError, "phaseexec", "acquire admission lock", err)
	}
	if !ok {
		return Outcome{}, corerr.New(corerr.ToolUnavailable, "phaseexec", "file already has an in-flight operation: "+req.FilePath, nil)
	}
	defer func() { _ = lock.Release() }()

	var backupPath string
	if needsMutation {
		backupPath, err = atomicfile.Backup(req.FilePath)
		if err != nil {
			return Outcome{}, err
		}
	}

	op, err := e.Store.StartOperation(ctx, &store.OperationRecord{
		FileID:     req.FileID,
		PlanID:     req.PlanID,
		BackupPath: backupPath,
	})
	if err != nil {
		return Outcome{}, err
	}

	finalPath := req.FilePath
	sizeBefore := fileSize(req.FilePath)

	applyErr := e.apply(ctx, &req, &finalPath)

	if applyErr != nil {
		return e.handleFailure(ctx, log, req, op.ID, backupPath, applyErr)
	}

	if needsTimestamp {
		if err := applyTimestamp(finalPath, *req.FileTimestamp, req.DateSources, time.Now().UTC()); err != nil {
			return e.handleFailure(ctx, log, req, op.ID, backupPath, err)
		}
	}

	var transcriptionWarnings []string
	if needsTranscription {
		transcriptionWarnings = e.applyTranscription(ctx, req, log)
	}

	if backupPath != "" {
		if err := atomicfile.DiscardBackup(backupPath); err != nil {
			log.Warn("failed to discard backup", logging.Error(err))
		}
	}
	if err := e.Store.CompleteOperation(ctx, op.ID); err != nil {
		return Outcome{}, err
	}

	if needsMutation {
		e.recordStats(ctx, req, sizeBefore, fileSize(finalPath))
	}

	log.Info("phase applied",
		logging.String(logging.FieldEventType, "phase_complete"),
		logging.String("final_path", finalPath))

	warnings := append([]string{}, req.PolicyPlan.Warnings...)
	if req.Transcode != nil {
		warnings = append(warnings, req.Transcode.Warnings...)
	}
	warnings = append(warnings, transcriptionWarnings...)

	return Outcome{Applied: true, OperationID: op.ID, FinalPath: finalPath, BackupPath: backupPath, Warnings: warnings}, nil
}

// apply performs the mutation steps in canonical order: metadata-only
// edit or full remux, then transcode. *finalPath is updated in place
// when a container-format change renames the file.
func (e *Executor) apply(ctx context.Context, req *Request, finalPath *string) error {
	edits := metadataEdits(req.PolicyPlan)

	switch {
	case req.PolicyPlan.RequiresRemux || req.PolicyPlan.TracksRemoved > 0:
		plan := buildRemuxPlan(*req, edits)
		target := req.FilePath
		if req.PolicyPlan.ContainerChange != nil {
			target = retargetExtension(req.FilePath, req.PolicyPlan.ContainerChange.Target)
		}
		temp := atomicfile.TempPath(target)
		plan.OutputPath = temp
		if err := e.Tools.Remux(ctx, plan); err != nil {
			return corerr.New(corerr.ToolFailure, "phaseexec", "remux", err)
		}
		if err := atomicfile.Rename(temp, target); err != nil {
			return err
		}
		if target != req.FilePath {
			if err := os.Remove(req.FilePath); err != nil && !os.IsNotExist(err) {
				return corerr.New(corerr.FilesystemError, "phaseexec", "remove pre-remux original", err)
			}
		}
		*finalPath = target

	case len(edits) > 0:
		if err := e.Tools.ApplyMetadata(ctx, req.FilePath, edits); err != nil {
			return corerr.New(corerr.ToolFailure, "phaseexec", "apply metadata", err)
		}
	}

	if req.Transcode != nil && req.Transcode.NeedsTranscode && !req.Transcode.ShouldSkip {
		temp := atomicfile.TempPath(*finalPath)
		result, err := e.Tools.Transcode(ctx, externaltool.TranscodeRequest{
			InputPath:  *finalPath,
			OutputPath: temp,
			Plan:       *req.Transcode,
		})
		if err != nil {
			return corerr.New(corerr.ToolFailure, "phaseexec", "transcode", err)
		}
		if err := atomicfile.Rename(temp, *finalPath); err != nil {
			return err
		}
		_ = result // consumed by recordStats via a fresh stat; encoder detail kept for future wiring
	}

	return nil
}

func (e *Executor) handleFailure(ctx context.Context, log *slog.Logger, req Request, opID, backupPath string, applyErr error) (Outcome, error) {
	log.Error("phase failed",
		logging.String(logging.FieldEventType, "phase_failure"),
		logging.Error(applyErr))

	switch req.OnError {
	case policy.OnErrorSkip:
		if backupPath != "" {
			if err := atomicfile.Restore(backupPath, req.FilePath); err != nil {
				log.Error("rollback after skip failed", logging.Error(err))
			}
		}
		if err := e.Store.RollBackOperation(ctx, opID); err != nil {
			return Outcome{}, err
		}
		return Outcome{Skipped: true, OperationID: opID}, nil

	case policy.OnErrorContinue:
		if err := e.Store.FailOperation(ctx, opID); err != nil {
			log.Error("failed to record continue-mode failure", logging.Error(err))
		}
		log.Warn("continuing despite phase failure", logging.Error(applyErr))
		return Outcome{Applied: false, OperationID: opID, Warnings: []string{applyErr.Error()}}, nil

	default: // policy.OnErrorFail, or unset
		if backupPath != "" {
			if err := atomicfile.Restore(backupPath, req.FilePath); err != nil {
				log.Error("rollback after failure failed", logging.Error(err))
			}
		}
		if err := e.Store.FailOperation(ctx, opID); err != nil {
			log.Error("failed to record operation failure", logging.Error(err))
		}
		if req.JobID != "" {
			if err := e.Store.FailJob(ctx, req.JobID, applyErr.Error()); err != nil {
				log.Error("failed to record job failure", logging.Error(err))
			}
		}
		return Outcome{}, applyErr
	}
}

func (e *Executor) applyTranscription(ctx context.Context, req Request, log *slog.Logger) []string {
	var warnings []string
	for _, track := range req.File.AudioTracks() {
		for pluginName, plugin := range e.Transcribers {
			out, err := plugin.Transcribe(ctx, req.FilePath, track.Index)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("transcription plugin %s failed on track %d: %v", pluginName, track.Index, err))
				continue
			}
			trackRec, err := e.Store.GetTrackByFileAndIndex(ctx, req.FileID, track.Index)
			if err != nil || trackRec == nil {
				continue
			}
			if err := e.Store.UpsertTranscription(ctx, &store.TranscriptionResult{
				TrackID: trackRec.ID, Language: out.Language, Confidence: out.Confidence, Text: out.Text,
			}); err != nil {
				log.Error("failed to persist transcription", logging.Error(err))
			}
		}
	}
	return warnings
}

func (e *Executor) recordStats(ctx context.Context, req Request, sizeBefore, sizeAfter int64) {
	kept := map[int]bool{}
	for _, d := range req.PolicyPlan.Dispositions {
		if d.State == planmodel.Kept {
			kept[d.TrackIndex] = true
		}
	}

	var videoBefore, audioBefore, subtitleBefore int
	var videoAfter, audioAfter, subtitleAfter int
	for _, t := range req.File.Tracks {
		switch t.Kind {
		case "video":
			videoBefore++
		case "audio":
			audioBefore++
		case "subtitle":
			subtitleBefore++
		}
		if !kept[t.Index] {
			continue
		}
		switch t.Kind {
		case "video":
			videoAfter++
		case "audio":
			audioAfter++
		case "subtitle":
			subtitleAfter++
		}
	}

	if err := e.Store.RecordProcessingStats(ctx, &store.ProcessingStats{
		FileID:         req.FileID,
		JobID:          req.JobID,
		SizeBefore:     sizeBefore,
		SizeAfter:      sizeAfter,
		VideoBefore:    videoBefore,
		VideoAfter:     videoAfter,
		AudioBefore:    audioBefore,
		AudioAfter:     audioAfter,
		SubtitleBefore: subtitleBefore,
		SubtitleAfter:  subtitleAfter,
	}); err != nil {
		e.logger().Error("failed to record processing stats", logging.Error(err))
	}
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// retargetExtension swaps finalPath's extension for target's canonical
// extension (e.g. "matroska" -> ".mkv"), leaving unrecognized targets as
// a literal extension.
func retargetExtension(finalPath, target string) string {
	ext := target
	switch strings.ToLower(target) {
	case "matroska", "mkv":
		ext = "mkv"
	case "mp4":
		ext = "mp4"
	case "webm":
		ext = "webm"
	}
	dir := filepath.Dir(finalPath)
	base := filepath.Base(finalPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+"."+ext)
}
