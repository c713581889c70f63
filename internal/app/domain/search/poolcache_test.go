package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

func TestSessionPoolsRoundTrip(t *testing.T) {
	pools := NewSessionPools(nil, time.Hour, nil)
	ctx := context.Background()

	assert.Nil(t, pools.Load(ctx, "session-1"))

	pool := &models.CandidatePool{
		Context:   models.SearchContext{Query: "italian gedera", Route: models.RouteTextSearch},
		Places:    testPlaces("p1", "p2"),
		FetchedAt: time.Now(),
	}
	pools.Save(ctx, "session-1", pool)

	got := pools.Load(ctx, "session-1")
	require.NotNil(t, got)
	assert.Equal(t, "italian gedera", got.Context.Query)
	assert.Len(t, got.Places, 2)

	assert.Nil(t, pools.Load(ctx, "session-2"), "pools are per session")
}

func TestSessionPoolsSaveReplaces(t *testing.T) {
	pools := NewSessionPools(nil, time.Hour, nil)
	ctx := context.Background()

	pools.Save(ctx, "s", &models.CandidatePool{Context: models.SearchContext{Query: "first"}, FetchedAt: time.Now()})
	pools.Save(ctx, "s", &models.CandidatePool{Context: models.SearchContext{Query: "second"}, FetchedAt: time.Now()})

	got := pools.Load(ctx, "s")
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Context.Query)
}

func TestSessionPoolsExpiry(t *testing.T) {
	pools := NewSessionPools(nil, 10*time.Millisecond, nil)
	ctx := context.Background()

	pools.Save(ctx, "s", &models.CandidatePool{FetchedAt: time.Now().Add(-time.Minute)})

	assert.Nil(t, pools.Load(ctx, "s"), "expired pools are dropped on read")
}
