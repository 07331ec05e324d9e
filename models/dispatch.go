package models

import "time"

type DispatchState string

const (
	DispatchIdle      DispatchState = "idle"
	DispatchRunning   DispatchState = "running"
	DispatchCompleted DispatchState = "completed"
	DispatchAborted   DispatchState = "aborted"
)

// DispatchProgress is a point-in-time snapshot of a dispatch run
type DispatchProgress struct {
	RunID             string        `json:"run_id,omitempty"`
	Owner             string        `json:"owner,omitempty"`
	State             DispatchState `json:"state"`
	Phase             string        `json:"phase"`
	Cursor            int           `json:"cursor"`
	Total             int           `json:"total"`
	LastCompletedName string        `json:"last_completed_name,omitempty"`
	Sent              int           `json:"sent"`
	Failed            int           `json:"failed"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	FinishedAt        *time.Time    `json:"finished_at,omitempty"`
}

// DispatchSummary is the final tally reported when a run ends
type DispatchSummary struct {
	RunID   string        `json:"run_id"`
	State   DispatchState `json:"state"`
	Total   int           `json:"total"`
	Sent    int           `json:"sent"`
	Failed  int           `json:"failed"`
	Elapsed time.Duration `json:"elapsed"`
}
