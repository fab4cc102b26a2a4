package hotfix

import (
	"errors"
	"fmt"

	"github.com/shinji-kodama/gitflow/internal/model"
)

// Validation failures. Both abort the workflow before any branch or commit
// has been created.
var (
	// ErrUncommittedChanges indicates the working tree differs from HEAD.
	ErrUncommittedChanges = errors.New("you have some uncommitted files; commit or discard local changes in order to proceed")

	// ErrDuplicateBranch indicates the target hotfix branch already exists.
	ErrDuplicateBranch = errors.New("hotfix branch with that name already exists; cannot start hotfix")
)

// DuplicateBranchError names the branch that blocked the workflow.
// errors.Is(err, ErrDuplicateBranch) reports true for it.
type DuplicateBranchError struct {
	Branch string
}

func (e *DuplicateBranchError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDuplicateBranch, e.Branch)
}

// Is matches ErrDuplicateBranch.
func (e *DuplicateBranchError) Is(target error) bool {
	return target == ErrDuplicateBranch
}

// StepError reports a collaborator failure part way through the workflow.
// State is the last state successfully reached; anything created up to that
// point (branch, commit) is left in place.
type StepError struct {
	State model.WorkflowState
	Step  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s (stopped after %s): %v", e.Step, e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
