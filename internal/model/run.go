package model

import "time"

// Outcome is the terminal result of a workflow run.
type Outcome string

const (
	OutcomePending Outcome = ""
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

func (o Outcome) String() string { return string(o) }

// RunRecord is one journal entry describing a finished workflow run.
type RunRecord struct {
	ID         string    `json:"id"`
	Workflow   string    `json:"workflow"`
	State      string    `json:"state"`
	Outcome    Outcome   `json:"outcome"`
	Stage      string    `json:"stage,omitempty"` // stage that failed, empty on success
	TxID       string    `json:"tx_id,omitempty"`
	ContentID  string    `json:"content_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
