package models

import "time"

// Job run statuses
const (
	JobStatusSucceeded = "SUCCEEDED"
	JobStatusFailed    = "FAILED"
)

// JobRun records one execution of a background job.
type JobRun struct {
	ID           string    `json:"id"`
	JobName      string    `json:"job_name"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	UsersTotal   int       `json:"users_total"`
	UsersFailed  int       `json:"users_failed"`
	RowsWritten  int       `json:"rows_written"`
	ErrorMessage string    `json:"error_message,omitempty"`
}
