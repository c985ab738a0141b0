package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"spindle/internal/corerr"
)

const operationColumns = `id, file_id, plan_id, status, actions_json, started_at, completed_at, backup_path`

// StartOperation records a phase executor's operation as IN_PROGRESS,
// capturing the backup path created before any mutation begins.
func (s *Store) StartOperation(ctx context.Context, rec *OperationRecord) (*OperationRecord, error) {
	if rec == nil {
		return nil, errors.New("operation record is nil")
	}
	if rec.ID == "" {
		rec.ID = newID()
	}
	now := time.Now().UTC()

	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO operations (id, file_id, plan_id, status, actions_json, started_at, backup_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FileID, nullableString(rec.PlanID), string(OperationInProgress),
		rec.ActionsJSON, now.Format(time.RFC3339Nano), nullableString(rec.BackupPath),
	); err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "start operation", err)
	}
	return s.GetOperation(ctx, rec.ID)
}

// CompleteOperation marks an operation COMPLETED.
func (s *Store) CompleteOperation(ctx context.Context, id string) error {
	return s.finishOperation(ctx, id, OperationCompleted)
}

// FailOperation marks an operation FAILED; the backup remains on disk
// for inspection or a later rollback attempt.
func (s *Store) FailOperation(ctx context.Context, id string) error {
	return s.finishOperation(ctx, id, OperationFailed)
}

// RollBackOperation marks an operation ROLLED_BACK after the phase
// executor has restored the file from its backup.
func (s *Store) RollBackOperation(ctx context.Context, id string) error {
	return s.finishOperation(ctx, id, OperationRolledBack)
}

func (s *Store) finishOperation(ctx context.Context, id string, status OperationStatus) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE operations SET status = ?, completed_at = ? WHERE id = ?`,
		string(status), now, id,
	); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "finish operation", err)
	}
	return nil
}

// GetOperation fetches an operation by id. Returns (nil, nil) when absent.
func (s *Store) GetOperation(ctx context.Context, id string) (*OperationRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+operationColumns+` FROM operations WHERE id = ?`, id)
	rec, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "get operation", err)
	}
	return rec, nil
}

// ListIncompleteOperations returns operations left IN_PROGRESS, the set
// a daemon restart must reconcile (roll back or resume) on startup.
func (s *Store) ListIncompleteOperations(ctx context.Context) ([]*OperationRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+operationColumns+` FROM operations WHERE status = ? ORDER BY started_at ASC`,
		string(OperationInProgress),
	)
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "list incomplete operations", err)
	}
	defer rows.Close()

	var out []*OperationRecord
	for rows.Next() {
		rec, err := scanOperation(rows)
		if err != nil {
			return nil, corerr.New(corerr.StoreIntegrity, "store", "scan operation row", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanOperation(scanner interface{ Scan(dest ...any) error }) (*OperationRecord, error) {
	var (
		id          string
		fileID      int64
		planID      sql.NullString
		status      string
		actionsJSON string
		startedAt   sql.NullString
		completedAt sql.NullString
		backupPath  sql.NullString
	)

	if err := scanner.Scan(&id, &fileID, &planID, &status, &actionsJSON, &startedAt, &completedAt, &backupPath); err != nil {
		return nil, err
	}

	rec := &OperationRecord{
		ID:          id,
		FileID:      fileID,
		PlanID:      planID.String,
		Status:      OperationStatus(status),
		ActionsJSON: actionsJSON,
		BackupPath:  backupPath.String,
	}
	rec.StartedAt = nullTimePtr(startedAt)
	rec.CompletedAt = nullTimePtr(completedAt)
	return rec, nil
}
