package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"spindle/internal/corerr"
)

const jobColumns = `id, job_type, status, priority, file_id, policy_name, policy_json, plan_id,
	progress_percent, progress_json, created_at, started_at, completed_at,
	worker_pid, worker_heartbeat, output_path, backup_path, error_message, origin, batch_id, log_path`

// EnqueueJob inserts a new queued job and returns the persisted record.
func (s *Store) EnqueueJob(ctx context.Context, job *JobRecord) (*JobRecord, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	if job.ID == "" {
		job.ID = newID()
	}
	if job.Priority == 0 {
		job.Priority = 500
	}
	if job.Status == "" {
		job.Status = JobQueued
	}
	if job.Origin == "" {
		job.Origin = OriginDaemon
	}
	now := time.Now().UTC()
	job.CreatedAt = now

	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO jobs (
			id, job_type, status, priority, file_id, policy_name, policy_json, plan_id,
			progress_percent, progress_json, created_at, origin, batch_id, log_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.JobType), string(job.Status), job.Priority,
		nullableFileID(job.FileID), nullableString(job.PolicyName), nullableString(job.PolicyJSON),
		nullableString(job.PlanID), job.ProgressPercent, nullableString(job.ProgressJSON),
		now.Format(time.RFC3339Nano), string(job.Origin), nullableString(job.BatchID), nullableString(job.LogPath),
	); err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "enqueue job", err)
	}
	return s.GetJob(ctx, job.ID)
}

// ClaimNextJob atomically selects and marks running the oldest
// highest-priority queued job, matching spec §4.5's claim transition:
// an immediate-mode transaction so two workers can never claim the
// same row.
func (s *Store) ClaimNextJob(ctx context.Context, workerPID int) (*JobRecord, error) {
	ctx = ensureContext(ctx)
	var claimed *JobRecord

	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx,
			`SELECT id FROM jobs WHERE status = ? ORDER BY priority DESC, created_at ASC LIMIT 1`,
			string(JobQueued),
		)
		var id string
		if scanErr := row.Scan(&id); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return nil
			}
			return scanErr
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, started_at = ?, worker_pid = ?, worker_heartbeat = ? WHERE id = ? AND status = ?`,
			string(JobRunning), now, workerPID, now, id, string(JobQueued),
		); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		claimed, err = s.GetJob(ctx, id)
		return err
	})
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "claim next job", err)
	}
	return claimed, nil
}

// UpdateHeartbeat refreshes worker_heartbeat for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, jobID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET worker_heartbeat = ? WHERE id = ? AND status = ?`,
		now, jobID, string(JobRunning),
	); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "update job heartbeat", err)
	}
	return nil
}

// ReapStaleJobs requeues running jobs whose heartbeat is older than
// cutoff, matching spec §4.5's stale-heartbeat reaping.
func (s *Store) ReapStaleJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, started_at = NULL, worker_pid = NULL, worker_heartbeat = NULL
		 WHERE status = ? AND worker_heartbeat IS NOT NULL AND worker_heartbeat < ?`,
		string(JobQueued), string(JobRunning), cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, corerr.New(corerr.StoreIntegrity, "store", "reap stale jobs", err)
	}
	return res.RowsAffected()
}

// UpdateProgress records a job's progress percent and opaque progress
// detail blob.
func (s *Store) UpdateProgress(ctx context.Context, jobID string, percent float64, progressJSON string) error {
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET progress_percent = ?, progress_json = ? WHERE id = ?`,
		percent, nullableString(progressJSON), jobID,
	); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "update job progress", err)
	}
	return nil
}

// CompleteJob transitions a job to completed, recording its output path.
func (s *Store) CompleteJob(ctx context.Context, jobID, outputPath string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, output_path = ?, progress_percent = 100.0, worker_pid = NULL
		 WHERE id = ?`,
		string(JobCompleted), now, nullableString(outputPath), jobID,
	); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "complete job", err)
	}
	return nil
}

// FailJob transitions a job to failed, recording the error message.
func (s *Store) FailJob(ctx context.Context, jobID, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, error_message = ?, worker_pid = NULL WHERE id = ?`,
		string(JobFailed), now, nullableString(errMsg), jobID,
	); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "fail job", err)
	}
	return nil
}

// CancelJob transitions a queued or running job to cancelled.
func (s *Store) CancelJob(ctx context.Context, jobID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, worker_pid = NULL
		 WHERE id = ? AND status IN (?, ?)`,
		string(JobCancelled), now, jobID, string(JobQueued), string(JobRunning),
	)
	if err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "cancel job", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "cancel job rows affected", err)
	}
	if affected == 0 {
		return corerr.New(corerr.InvalidPlanTransition, "store", "job is not queued or running", nil)
	}
	return nil
}

// DeleteOldJobs prunes terminal jobs completed before cutoff, matching
// spec §4.5's retention operation.
func (s *Store) DeleteOldJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		string(JobCompleted), string(JobFailed), string(JobCancelled), cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, corerr.New(corerr.StoreIntegrity, "store", "delete old jobs", err)
	}
	return res.RowsAffected()
}

// GetJob fetches a job by id. Returns (nil, nil) when absent.
func (s *Store) GetJob(ctx context.Context, id string) (*JobRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "get job", err)
	}
	return job, nil
}

// ListJobsOptions filters and orders a job listing.
type ListJobsOptions struct {
	Status     JobStatus
	JobType    JobType
	SortBy     string
	Descending bool
	Limit      int
}

// ListJobs returns jobs matching opts, sorted by a whitelisted column.
func (s *Store) ListJobs(ctx context.Context, opts ListJobsOptions) ([]*JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1 = 1`
	var args []any
	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	if opts.JobType != "" {
		query += ` AND job_type = ?`
		args = append(args, string(opts.JobType))
	}
	column := resolveSortColumn(opts.SortBy)
	if column == "duration_seconds" || column == "path" {
		column = "created_at"
	}
	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}
	query += " ORDER BY " + column + " " + direction
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "list jobs", err)
	}
	defer rows.Close()

	var out []*JobRecord
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, corerr.New(corerr.StoreIntegrity, "store", "scan job row", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func nullableFileID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*JobRecord, error) {
	var (
		id              string
		jobType         string
		status          string
		priority        int
		fileID          sql.NullInt64
		policyName      sql.NullString
		policyJSON      sql.NullString
		planID          sql.NullString
		progressPercent float64
		progressJSON    sql.NullString
		createdAt       string
		startedAt       sql.NullString
		completedAt     sql.NullString
		workerPID       sql.NullInt64
		workerHeartbeat sql.NullString
		outputPath      sql.NullString
		backupPath      sql.NullString
		errorMessage    sql.NullString
		origin          string
		batchID         sql.NullString
		logPath         sql.NullString
	)

	if err := scanner.Scan(
		&id, &jobType, &status, &priority, &fileID, &policyName, &policyJSON, &planID,
		&progressPercent, &progressJSON, &createdAt, &startedAt, &completedAt,
		&workerPID, &workerHeartbeat, &outputPath, &backupPath, &errorMessage, &origin, &batchID, &logPath,
	); err != nil {
		return nil, err
	}

	job := &JobRecord{
		ID:              id,
		JobType:         JobType(jobType),
		Status:          JobStatus(status),
		Priority:        priority,
		PolicyName:      policyName.String,
		PolicyJSON:      policyJSON.String,
		PlanID:          planID.String,
		ProgressPercent: progressPercent,
		ProgressJSON:    progressJSON.String,
		OutputPath:      outputPath.String,
		BackupPath:      backupPath.String,
		ErrorMessage:    errorMessage.String,
		Origin:          JobOrigin(origin),
		BatchID:         batchID.String,
		LogPath:         logPath.String,
	}
	if fileID.Valid {
		v := fileID.Int64
		job.FileID = &v
	}
	if workerPID.Valid {
		v := int(workerPID.Int64)
		job.WorkerPID = &v
	}
	if t, err := parseTimeString(createdAt); err == nil {
		job.CreatedAt = t
	}
	job.StartedAt = nullTimePtr(startedAt)
	job.CompletedAt = nullTimePtr(completedAt)
	job.WorkerHeartbeat = nullTimePtr(workerHeartbeat)

	return job, nil
}
