package models

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of an async search job.
// Transitions are one-way: QUEUED -> RUNNING -> {DONE_SUCCESS | DONE_FAILED}.
type JobStatus string

const (
	StatusQueued      JobStatus = "QUEUED"
	StatusRunning     JobStatus = "RUNNING"
	StatusDoneSuccess JobStatus = "DONE_SUCCESS"
	StatusDoneFailed  JobStatus = "DONE_FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusDoneSuccess || s == StatusDoneFailed
}

// JobError is the persisted failure description of a job.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Route   string `json:"route,omitempty"`
}

// Job is the persisted record of one async search request.
// RequestID is opaque to clients and globally unique; SessionID is the
// ownership principal every read is checked against.
type Job struct {
	RequestID      string          `json:"requestId"`
	SessionID      string          `json:"sessionId"`
	Status         JobStatus       `json:"status"`
	Progress       int             `json:"progress"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *JobError       `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// CandidatePool is the raw provider result set retained with the exact
// context it was fetched under, so soft-filter-only changes can be served
// without another provider call.
type CandidatePool struct {
	Context   SearchContext `json:"context"`
	Places    []Place       `json:"places"`
	FetchedAt time.Time     `json:"fetchedAt"`
}
