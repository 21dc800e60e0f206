package release

import (
	"errors"
	"fmt"
)

// Pipeline-fatal sentinels. Per-image failures use the engine and export
// sentinels and are counted and continued; these abort the release.
var (
	// ErrInvalidConfig marks a malformed ReleaseConfig; the pipeline fails
	// fast before staging anything.
	ErrInvalidConfig = errors.New("invalid release config")

	// ErrTransactionFailed marks a failed transforms-completion update.
	// The release is failed and its artifacts removed so no orphaned
	// COMPLETED records can exist.
	ErrTransactionFailed = errors.New("transform completion transaction failed")
)

// StepError annotates a pipeline failure with the release, the step it
// occurred in, and the identifying key of the item being processed.
type StepError struct {
	ReleaseID string
	Step      Step
	Key       string
	Err       error
}

func (e *StepError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("release %s: step %s: %s: %v", e.ReleaseID, e.Step, e.Key, e.Err)
	}
	return fmt.Sprintf("release %s: step %s: %v", e.ReleaseID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// stepErr wraps err with release/step/key context.
func stepErr(releaseID string, step Step, key string, err error) error {
	return &StepError{ReleaseID: releaseID, Step: step, Key: key, Err: err}
}
