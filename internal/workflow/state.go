// Package workflow sequences uploads, transaction building and submission
// for one user-initiated operation, reporting progress as status text and
// a single terminal notification.
package workflow

import "fmt"

// State is a workflow stage.
type State string

const (
	StateIdle               State = "idle"
	StateValidating         State = "validating"
	StateUploadingPrimary   State = "uploading_primary"
	StateUploadingSecondary State = "uploading_secondary"
	StateUploadingMetadata  State = "uploading_metadata"
	StateSubmitting         State = "submitting"
	StateReported           State = "reported"
)

func (s State) String() string { return string(s) }

// IsTerminal reports whether s ends a run.
func IsTerminal(s State) bool { return s == StateReported }

// forward lists the stage moves each state allows besides reporting.
// UploadingSecondary is optional, and purchases go straight from
// validation to submission.
var forward = map[State][]State{
	StateIdle:               {StateValidating},
	StateValidating:         {StateUploadingPrimary, StateSubmitting},
	StateUploadingPrimary:   {StateUploadingSecondary, StateUploadingMetadata},
	StateUploadingSecondary: {StateUploadingMetadata},
	StateUploadingMetadata:  {StateSubmitting},
}

func isAllowedTransition(from, to State) bool {
	if IsTerminal(from) {
		return false
	}
	if to == StateReported {
		return true
	}
	for _, s := range forward[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transition validates from -> to.
func transition(from, to State) error {
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	return nil
}
