package search

import (
	"time"

	"github.com/FACorreiaa/loci-search/internal/app/domain/jobstore"
	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// ErrorBody is the stable error shape carried in WS terminal events.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Route   string `json:"route,omitempty"`
}

// RunningMeta annotates a poll on a non-terminal job.
type RunningMeta struct {
	IsStale      bool   `json:"isStale"`
	AgeMs        int64  `json:"ageMs"`
	UpdatedAgeMs int64  `json:"updatedAgeMs"`
	Message      string `json:"message,omitempty"`
}

// Envelope is the accept/poll body for every state except terminal success,
// which returns the stored SearchResponse verbatim. Failed jobs keep HTTP
// 200 with the stable flat error fields; terminal tells clients to stop
// polling.
type Envelope struct {
	ContractsVersion string           `json:"contractsVersion"`
	RequestID        string           `json:"requestId"`
	Status           models.JobStatus `json:"status"`
	Progress         int              `json:"progress"`
	ResultURL        string           `json:"resultUrl,omitempty"`
	Meta             *RunningMeta     `json:"meta,omitempty"`
	Terminal         bool             `json:"terminal,omitempty"`
	Code             string           `json:"code,omitempty"`
	Message          string           `json:"message,omitempty"`
	ErrorType        string           `json:"errorType,omitempty"`
}

// BuildEnvelope maps a job to its polling body. A DONE_SUCCESS job with no
// stored result is reported as RESULT_MISSING rather than succeeding with an
// empty body; errorType carries the route attribution of the failing stage.
func BuildEnvelope(job *models.Job) Envelope {
	env := Envelope{
		ContractsVersion: models.ContractsVersion,
		RequestID:        job.RequestID,
		Status:           job.Status,
		Progress:         job.Progress,
	}

	switch job.Status {
	case models.StatusDoneSuccess:
		env.Terminal = true
		if len(job.Result) == 0 {
			env.Code = models.CodeResultMissing
			env.Message = "result expired or was never written"
		}
	case models.StatusDoneFailed:
		env.Terminal = true
		env.Code = models.CodeSearchFailed
		env.Message = "search failed"
		if job.Error != nil {
			env.Code = job.Error.Kind
			env.Message = job.Error.Message
			env.ErrorType = job.Error.Route
		}
	}
	return env
}

// buildRunningMeta fills the staleness annotation for a 202 poll.
func buildRunningMeta(job *models.Job, checker *jobstore.StaleChecker) *RunningMeta {
	now := time.Now()
	meta := &RunningMeta{
		AgeMs:        now.Sub(job.CreatedAt).Milliseconds(),
		UpdatedAgeMs: now.Sub(job.UpdatedAt).Milliseconds(),
	}
	if checker != nil {
		meta.IsStale = checker.IsStale(job)
	}
	return meta
}
