package domain

import "time"

// RunRecord is the audit entry persisted after one assistant run. It records
// the outcome only, never message history or the caller's credential.
type RunRecord struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	Answer       string    `json:"answer"`
	Steps        int       `json:"steps"`
	FilesWritten int       `json:"files_written"`
	Degraded     bool      `json:"degraded"`
	CreatedAt    time.Time `json:"created_at"`
}
