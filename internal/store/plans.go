package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"spindle/internal/corerr"
)

const planColumns = `id, file_id, file_path, policy_name, policy_version, job_id,
	actions_json, action_count, requires_remux, status, created_at, updated_at`

// planTransitions is the closed PlanStatus transition table resolved
// from the original project's state machine (spec §9 Open Question
// #3): a plan proposed for review moves to approved or rejected, an
// approved plan is applied or canceled, and every other state is
// terminal.
var planTransitions = map[PlanStatus]map[PlanStatus]bool{
	PlanPending:  {PlanApproved: true, PlanRejected: true, PlanCanceled: true},
	PlanApproved: {PlanApplied: true, PlanCanceled: true},
}

// CreatePlan persists a newly proposed plan in PlanPending status.
func (s *Store) CreatePlan(ctx context.Context, rec *PlanRecord) (*PlanRecord, error) {
	if rec == nil {
		return nil, errors.New("plan record is nil")
	}
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.Status == "" {
		rec.Status = PlanPending
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO plans (
			id, file_id, file_path, policy_name, policy_version, job_id,
			actions_json, action_count, requires_remux, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullableFileID(rec.FileID), rec.FilePath, rec.PolicyName, rec.PolicyVersion,
		nullableString(rec.JobID), rec.ActionsJSON, rec.ActionCount, boolToInt(rec.RequiresRemux),
		string(rec.Status), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	); err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "create plan", err)
	}
	return s.GetPlan(ctx, rec.ID)
}

// TransitionPlan moves a plan to newStatus, enforcing the closed
// PlanStatus transition table. An illegal transition returns a
// CoreError of Kind InvalidPlanTransition rather than silently
// succeeding or panicking.
func (s *Store) TransitionPlan(ctx context.Context, planID string, newStatus PlanStatus) error {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return corerr.New(corerr.InputError, "store", "plan not found: "+planID, nil)
	}
	allowed := planTransitions[plan.Status]
	if !allowed[newStatus] {
		return corerr.New(corerr.InvalidPlanTransition, "store",
			"cannot transition plan from "+string(plan.Status)+" to "+string(newStatus), nil)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE plans SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(newStatus), now, planID, string(plan.Status),
	); err != nil {
		return corerr.New(corerr.StoreIntegrity, "store", "transition plan", err)
	}
	return nil
}

// GetPlan fetches a plan by id. Returns (nil, nil) when absent.
func (s *Store) GetPlan(ctx context.Context, id string) (*PlanRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+planColumns+` FROM plans WHERE id = ?`, id)
	rec, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "get plan", err)
	}
	return rec, nil
}

// ListPlansByStatus returns plans in the given status, oldest first.
func (s *Store) ListPlansByStatus(ctx context.Context, status PlanStatus) ([]*PlanRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+planColumns+` FROM plans WHERE status = ? ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, corerr.New(corerr.StoreIntegrity, "store", "list plans by status", err)
	}
	defer rows.Close()

	var out []*PlanRecord
	for rows.Next() {
		rec, err := scanPlan(rows)
		if err != nil {
			return nil, corerr.New(corerr.StoreIntegrity, "store", "scan plan row", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanPlan(scanner interface{ Scan(dest ...any) error }) (*PlanRecord, error) {
	var (
		id            string
		fileID        sql.NullInt64
		filePath      string
		policyName    string
		policyVersion string
		jobID         sql.NullString
		actionsJSON   string
		actionCount   int
		requiresRemux int64
		status        string
		createdAt     string
		updatedAt     string
	)

	if err := scanner.Scan(
		&id, &fileID, &filePath, &policyName, &policyVersion, &jobID,
		&actionsJSON, &actionCount, &requiresRemux, &status, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	rec := &PlanRecord{
		ID:            id,
		FilePath:      filePath,
		PolicyName:    policyName,
		PolicyVersion: policyVersion,
		JobID:         jobID.String,
		ActionsJSON:   actionsJSON,
		ActionCount:   actionCount,
		RequiresRemux: intToBool(requiresRemux),
		Status:        PlanStatus(status),
	}
	if fileID.Valid {
		v := fileID.Int64
		rec.FileID = &v
	}
	if t, err := parseTimeString(createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := parseTimeString(updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}
