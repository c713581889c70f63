package search

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

func TestBuildEnvelopeRunning(t *testing.T) {
	env := BuildEnvelope(&models.Job{
		RequestID: "req-1",
		Status:    models.StatusRunning,
		Progress:  models.ProgressProvider,
	})

	assert.Equal(t, models.ContractsVersion, env.ContractsVersion)
	assert.Equal(t, models.StatusRunning, env.Status)
	assert.Equal(t, models.ProgressProvider, env.Progress)
	assert.False(t, env.Terminal)
	assert.Empty(t, env.Code)
}

func TestBuildEnvelopeSuccessIsTerminal(t *testing.T) {
	env := BuildEnvelope(&models.Job{
		RequestID: "req-1",
		Status:    models.StatusDoneSuccess,
		Progress:  models.ProgressDone,
		Result:    json.RawMessage(`{"requestId":"req-1","results":[]}`),
	})

	assert.True(t, env.Terminal)
	assert.Empty(t, env.Code)
}

func TestBuildEnvelopeSuccessWithoutResultIsResultMissing(t *testing.T) {
	env := BuildEnvelope(&models.Job{
		RequestID: "req-1",
		Status:    models.StatusDoneSuccess,
		Progress:  models.ProgressDone,
	})

	assert.True(t, env.Terminal)
	assert.Equal(t, models.CodeResultMissing, env.Code)
}

func TestBuildEnvelopeFailedCarriesStableError(t *testing.T) {
	env := BuildEnvelope(&models.Job{
		RequestID: "req-1",
		Status:    models.StatusDoneFailed,
		Error: &models.JobError{
			Kind:    models.CodeProviderFailed,
			Message: "places call failed",
			Route:   string(models.RouteTextSearch),
		},
	})

	assert.True(t, env.Terminal)
	assert.Equal(t, models.CodeProviderFailed, env.Code)
	assert.Equal(t, "places call failed", env.Message)
	assert.Equal(t, string(models.RouteTextSearch), env.ErrorType)
}

func TestBuildEnvelopeFailedWithEmptyResultKeepsStoredCode(t *testing.T) {
	// RESULT_MISSING is reserved for a success whose body is gone; a failed
	// job always reports the error it failed with, result or not.
	env := BuildEnvelope(&models.Job{
		RequestID: "req-1",
		Status:    models.StatusDoneFailed,
		Error: &models.JobError{
			Kind:    models.CodeSearchFailed,
			Message: "internal pipeline failure",
		},
	})

	assert.True(t, env.Terminal)
	assert.Equal(t, models.CodeSearchFailed, env.Code)
	assert.NotEqual(t, models.CodeResultMissing, env.Code)
	assert.Equal(t, "internal pipeline failure", env.Message)
}

func TestBuildEnvelopeFailedWithoutRecordStillFails(t *testing.T) {
	env := BuildEnvelope(&models.Job{RequestID: "req-1", Status: models.StatusDoneFailed})

	assert.True(t, env.Terminal)
	assert.Equal(t, models.CodeSearchFailed, env.Code)
}

func TestBuildRunningMetaAges(t *testing.T) {
	now := time.Now()
	meta := buildRunningMeta(&models.Job{
		Status:    models.StatusRunning,
		CreatedAt: now.Add(-2 * time.Second),
		UpdatedAt: now.Add(-time.Second),
	}, nil)

	assert.GreaterOrEqual(t, meta.AgeMs, int64(2000))
	assert.GreaterOrEqual(t, meta.UpdatedAgeMs, int64(1000))
	assert.Less(t, meta.UpdatedAgeMs, meta.AgeMs)
	assert.False(t, meta.IsStale)
}
