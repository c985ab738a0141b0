package policy

import "spindle/internal/corerr"

// ConstraintError signals that applying the policy would violate a stated
// floor (e.g. removing all audio). It is not a failure — per spec §4.2,
// §7, and §9 it is a control-flow signal the phase executor's operation
// dispatch recognizes and translates into a constraint-skip result.
type ConstraintError struct {
	Reason string
}

func (e *ConstraintError) Error() string {
	return "constraint: " + e.Reason
}

// AsCoreError converts a ConstraintError to the shared taxonomy's
// PolicyConstraint kind for callers that want a uniform error type.
func (e *ConstraintError) AsCoreError() *corerr.CoreError {
	return corerr.New(corerr.PolicyConstraint, "policy", e.Reason, e)
}
