package engine

import (
	"errors"
	"fmt"
)

// StateConsistencyError reports a slot sequence mismatch: a component
// produced a different count or kind order of slot accesses than its
// previous build for the same work node. This is unrecoverable for the
// pass - the in-flight tree is discarded and nothing commits.
type StateConsistencyError struct {
	// Component is the component type name that violated the slot order.
	Component string

	// Slot is the cursor position at which the mismatch was detected.
	Slot int

	// Message describes the specific violation (kind mismatch, count
	// change, access outside a build).
	Message string
}

// Error implements the error interface.
func (e *StateConsistencyError) Error() string {
	return fmt.Sprintf("state consistency violation in %q at slot %d: %s", e.Component, e.Slot, e.Message)
}

// IsStateConsistencyError returns true if the error is a slot sequence
// violation. Uses errors.As to handle wrapped errors.
func IsStateConsistencyError(err error) bool {
	var se *StateConsistencyError
	return errors.As(err, &se)
}

// DuplicateKeyError reports two new children declaring the same key under
// one parent. Child identity would be ambiguous, so the pass fails rather
// than silently picking one.
type DuplicateKeyError struct {
	// Key is the duplicated identity key.
	Key string

	// Parent is the type name of the parent whose child list is ambiguous.
	Parent string
}

// Error implements the error interface.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q among children of %q", e.Key, e.Parent)
}

// IsDuplicateKeyError returns true if the error is an ambiguous child
// identity error. Uses errors.As to handle wrapped errors.
func IsDuplicateKeyError(err error) bool {
	var de *DuplicateKeyError
	return errors.As(err, &de)
}

// ComponentPanicError reports a component function panicking during build.
// If a boundary ancestor exists the pass restarts with the error captured;
// otherwise the pass is aborted and the error surfaces to the trigger
// caller.
type ComponentPanicError struct {
	// Component is the panicking component's type name.
	Component string

	// Value is the recovered panic value.
	Value any
}

// Error implements the error interface.
func (e *ComponentPanicError) Error() string {
	return fmt.Sprintf("component %q panicked during build: %v", e.Component, e.Value)
}

// IsComponentPanicError returns true if the error is a recovered component
// panic. Uses errors.As to handle wrapped errors.
func IsComponentPanicError(err error) bool {
	var ce *ComponentPanicError
	return errors.As(err, &ce)
}

// CommitTargetError reports the target surface rejecting a mutation during
// commit. The pass is marked failed; already-applied entries are left in
// place and no automatic retry occurs - re-issuing the update is the
// trigger caller's responsibility.
type CommitTargetError struct {
	// PassToken identifies the failed pass.
	PassToken string

	// Index is the position of the rejected entry in the mutation script.
	Index int

	// Mutation is the rejected entry.
	Mutation Mutation

	// Err is the surface's error.
	Err error
}

// Error implements the error interface.
func (e *CommitTargetError) Error() string {
	return fmt.Sprintf("commit failed at entry %d (%s node %d) in pass %s: %v",
		e.Index, e.Mutation.Op, e.Mutation.NodeID, e.PassToken, e.Err)
}

// Unwrap returns the surface's error for errors.Is/As chains.
func (e *CommitTargetError) Unwrap() error {
	return e.Err
}

// IsCommitTargetError returns true if the error is a surface rejection.
// Uses errors.As to handle wrapped errors.
func IsCommitTargetError(err error) bool {
	var ce *CommitTargetError
	return errors.As(err, &ce)
}

// UnitQuotaError reports a render pass exceeding the per-pass unit budget.
// This guards against runaway component loops (a component whose build
// keeps growing the pending tree) the same way a steps quota guards a
// cascading rule engine.
type UnitQuotaError struct {
	PassToken string
	Units     int
	Limit     int
}

// Error implements the error interface.
func (e *UnitQuotaError) Error() string {
	return fmt.Sprintf("pass %s exceeded unit budget: %d units > %d limit",
		e.PassToken, e.Units, e.Limit)
}

// IsUnitQuotaError returns true if the error is a unit budget violation.
// Uses errors.As to handle wrapped errors.
func IsUnitQuotaError(err error) bool {
	var qe *UnitQuotaError
	return errors.As(err, &qe)
}
