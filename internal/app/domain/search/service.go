// Package search is the pipeline orchestrator. Accept validates, dedupes and
// enqueues a job; run drives the stages in order, publishing progress over
// the WS hub and persisting the terminal outcome on the job store.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/loci-search/internal/app/domain/assistant"
	"github.com/FACorreiaa/loci-search/internal/app/domain/enforcer"
	"github.com/FACorreiaa/loci-search/internal/app/domain/filters"
	"github.com/FACorreiaa/loci-search/internal/app/domain/gate"
	"github.com/FACorreiaa/loci-search/internal/app/domain/intent"
	"github.com/FACorreiaa/loci-search/internal/app/domain/jobstore"
	"github.com/FACorreiaa/loci-search/internal/app/domain/language"
	"github.com/FACorreiaa/loci-search/internal/app/domain/mapper"
	"github.com/FACorreiaa/loci-search/internal/app/domain/places"
	"github.com/FACorreiaa/loci-search/internal/app/domain/postfilter"
	"github.com/FACorreiaa/loci-search/internal/app/domain/ranker"
	"github.com/FACorreiaa/loci-search/internal/app/domain/requery"
	"github.com/FACorreiaa/loci-search/internal/app/domain/wshub"
	"github.com/FACorreiaa/loci-search/internal/app/models"
	"github.com/FACorreiaa/loci-search/internal/app/observability/metrics"
	"github.com/FACorreiaa/loci-search/internal/pkg/config"
)

const (
	maxQueryLength    = 512
	defaultPageLimit  = 20
	maxPageLimit      = 50
	assistantTopNames = 3
)

// providerStage is what the orchestrator needs from the places service.
type providerStage interface {
	Execute(ctx context.Context, mapping models.Mapping, lang models.LanguageContext) (places.Result, error)
	GeocodeCity(ctx context.Context, cityText, regionCode, lang string) (models.LatLng, error)
}

type Service struct {
	jobs       config.JobsConfig
	store      jobstore.Store
	hub        *wshub.Hub
	pools      *SessionPools
	resolver   *language.Resolver
	gate       *gate.Service
	intent     *intent.Service
	filters    *filters.Service
	mapper     *mapper.Service
	requery    *requery.Decider
	places     providerStage
	enforcer   *enforcer.Service
	postfilter *postfilter.Service
	ranker     *ranker.Service
	assistant  *assistant.Service
	cuisine    *mapper.CuisineExtractor
	metrics    *metrics.AppMetrics
	logger     *zap.Logger
}

// Deps bundles the orchestrator's collaborators; everything is required
// except Metrics and Logger.
type Deps struct {
	Jobs       config.JobsConfig
	Store      jobstore.Store
	Hub        *wshub.Hub
	Pools      *SessionPools
	Resolver   *language.Resolver
	Gate       *gate.Service
	Intent     *intent.Service
	Filters    *filters.Service
	Mapper     *mapper.Service
	Requery    *requery.Decider
	Places     providerStage
	Enforcer   *enforcer.Service
	PostFilter *postfilter.Service
	Ranker     *ranker.Service
	Assistant  *assistant.Service
	Metrics    *metrics.AppMetrics
	Logger     *zap.Logger
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		jobs:       d.Jobs,
		store:      d.Store,
		hub:        d.Hub,
		pools:      d.Pools,
		resolver:   d.Resolver,
		gate:       d.Gate,
		intent:     d.Intent,
		filters:    d.Filters,
		mapper:     d.Mapper,
		requery:    d.Requery,
		places:     d.Places,
		enforcer:   d.Enforcer,
		postfilter: d.PostFilter,
		ranker:     d.Ranker,
		assistant:  d.Assistant,
		cuisine:    mapper.NewCuisineExtractor(),
		metrics:    d.Metrics,
		logger:     logger,
	}
}

// Accept validates the request, reuses a matching in-flight or fresh job, or
// creates a new one and starts the pipeline in the background. The returned
// job is what the 202 response is built from.
func (s *Service) Accept(ctx context.Context, req models.SearchRequest) (*models.Job, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "Accept")
	defer span.End()

	req.Query = strings.TrimSpace(req.Query)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	key := idempotencyKey(req)
	span.SetAttributes(attribute.String("search.idempotency_key", key))

	if existing, err := s.store.FindByIdempotencyKey(ctx, req.SessionID, key); err == nil {
		if s.reusable(existing) {
			s.logger.Info("search_deduplicated",
				zap.String("request_id", existing.RequestID),
				zap.String("status", string(existing.Status)),
			)
			span.SetAttributes(attribute.Bool("search.deduplicated", true))
			return existing, nil
		}
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}

	now := time.Now()
	job := &models.Job{
		RequestID:      uuid.NewString(),
		SessionID:      req.SessionID,
		Status:         models.StatusQueued,
		Progress:       models.ProgressAccepted,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.hub.Register(job.RequestID, job.SessionID)
	s.hub.Publish(job.RequestID, models.StreamEvent{
		Type:     models.EventTypeStatus,
		Status:   models.StatusQueued,
		Progress: models.ProgressAccepted,
	})
	if s.jobs.StoreTTL > 0 {
		requestID := job.RequestID
		time.AfterFunc(s.jobs.StoreTTL, func() { s.hub.Release(requestID) })
	}

	if s.metrics != nil {
		s.metrics.SearchRequestsTotal.Add(ctx, 1)
	}
	s.logger.Info("search_accepted",
		zap.String("request_id", job.RequestID),
		zap.String("session_id", job.SessionID),
	)

	// The job must outlive the HTTP request that enqueued it.
	go s.run(context.WithoutCancel(ctx), job, req)
	return job, nil
}

// reusable implements the dedup rule: an in-flight job is reused while its
// heartbeat is fresh or someone is watching it; a finished one only inside
// the short freshness window.
func (s *Service) reusable(job *models.Job) bool {
	switch job.Status {
	case models.StatusQueued, models.StatusRunning:
		if time.Since(job.UpdatedAt) <= s.jobs.MaxRunningAge {
			return true
		}
		return s.hub.HasActiveSubscribers(job.RequestID, job.SessionID)
	case models.StatusDoneSuccess:
		return time.Since(job.UpdatedAt) <= s.jobs.SuccessFreshFor
	}
	return false
}

func (s *Service) run(ctx context.Context, job *models.Job, req models.SearchRequest) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.String("search.request_id", job.RequestID))

	started := time.Now()
	query := req.Query

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("search_pipeline_panic",
				zap.String("request_id", job.RequestID),
				zap.Any("panic", r),
			)
			s.fail(ctx, job, models.NewStageError(models.CodeSearchFailed, "", "internal pipeline failure", nil),
				models.LangEnglish, query)
		}
	}()

	stopHeartbeat := s.startHeartbeat(ctx, job.RequestID)
	defer stopHeartbeat()

	s.advance(ctx, job.RequestID, models.StatusRunning, models.ProgressAccepted)

	// Gate and intent are independent classifications; run them together.
	var (
		gateRes   gate.Result
		intentRes intent.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		gateRes = s.gate.Classify(gctx, query)
		return nil
	})
	g.Go(func() error {
		intentRes = s.intent.Classify(gctx, query, req.UserLocation != nil)
		return nil
	})
	_ = g.Wait()

	lang := s.resolver.Resolve(req.UILanguage, query, intentRes.Language, intentRes.LanguageConfidence)

	if !gateRes.IsFoodSearch {
		s.failGate(ctx, job, gateRes, lang, query)
		return
	}

	s.advance(ctx, job.RequestID, models.StatusRunning, models.ProgressIntent)

	// A MAYBE gate verdict proceeds through the pipeline but is not generic
	// enough to skip the filter extractors.
	genericQuery := gateRes.FoodSignal == gate.SignalYes &&
		req.UserLocation != nil && intentRes.CityText == "" && s.cuisine.Extract(query) == ""
	skip := s.filters.Decide(query, genericQuery)

	// Route mapping and filter extraction only depend on intent; another
	// barrier.
	var (
		mapping     models.Mapping
		mapErr      error
		extracted   models.SoftFilters
		constraints models.PostConstraints
	)
	g2, gctx2 := errgroup.WithContext(ctx)
	g2.Go(func() error {
		mapping, mapErr = s.mapper.Map(gctx2, mapper.Input{
			Query:        query,
			Intent:       intentRes,
			Language:     lang,
			UserLocation: req.UserLocation,
		})
		return nil
	})
	g2.Go(func() error {
		if !skip.SkipBaseFilters {
			extracted = s.filters.ExtractBaseFilters(gctx2, query)
		}
		if !skip.SkipPostConstraints {
			constraints = s.filters.ExtractPostConstraints(gctx2, query)
		}
		return nil
	})
	_ = g2.Wait()

	if mapErr != nil {
		s.fail(ctx, job, models.AsStageError(mapErr, intentRes.Route), lang.AssistantLanguage, query)
		return
	}
	if mapping.Text != nil {
		mapping.Text.RequiredTerms = appendUnique(mapping.Text.RequiredTerms, constraints.MustHave)
	}

	merged := mergeFilters(extracted, req.Filters)
	s.advance(ctx, job.RequestID, models.StatusRunning, models.ProgressFilters)

	searchCtx := buildSearchContext(query, mapping, intentRes, req.UserLocation, merged)

	poolPlaces, source, err := s.fetchPool(ctx, job, req.SessionID, mapping, searchCtx, merged, lang)
	if err != nil {
		s.fail(ctx, job, models.AsStageError(err, mapping.Route), lang.AssistantLanguage, query)
		return
	}
	s.advance(ctx, job.RequestID, models.StatusRunning, models.ProgressProvider)

	enforcementFailed := false
	if mapping.Text != nil {
		outcome := s.enforcer.Enforce(ctx, query, mapping.Text, poolPlaces)
		poolPlaces = outcome.Places
		enforcementFailed = outcome.Failed
	}
	s.advance(ctx, job.RequestID, models.StatusRunning, models.ProgressEnforcer)

	filtered := s.postfilter.Apply(poolPlaces, merged)

	var cityCenter *models.LatLng
	if intentRes.CityText != "" {
		if center, gerr := s.places.GeocodeCity(ctx, intentRes.CityText, intentRes.RegionCandidate, lang.SearchLanguage); gerr == nil {
			cityCenter = &center
		}
	}
	ordered, explain := s.ranker.Rank(filtered.Places, ranker.Input{
		Route:        mapping.Route,
		Reason:       intentRes.Reason,
		ExplicitCity: intentRes.CityText != "",
		CityCenter:   cityCenter,
		UserLocation: req.UserLocation,
	})
	s.advance(ctx, job.RequestID, models.StatusRunning, models.ProgressRanked)

	page := paginate(ordered, req.Pagination)
	response := models.SearchResponse{
		ContractsVersion: models.ContractsVersion,
		RequestID:        job.RequestID,
		Status:           models.StatusDoneSuccess,
		Terminal:         true,
		Results:          page,
		Meta: models.ResponseMeta{
			TookMs:                   time.Since(started).Milliseconds(),
			Source:                   source,
			LanguageContext:          lang,
			OrderExplain:             &explain,
			CuisineEnforcementFailed: enforcementFailed,
		},
	}
	raw, err := json.Marshal(response)
	if err != nil {
		s.fail(ctx, job, models.NewStageError(models.CodeSearchFailed, mapping.Route, "failed to encode result", err),
			lang.AssistantLanguage, query)
		return
	}

	// Result lands before the terminal status so a poller never observes
	// DONE_SUCCESS with an empty slot.
	if err := s.store.SetResult(ctx, job.RequestID, raw); err != nil {
		s.logger.Error("job_result_write_failed", zap.String("request_id", job.RequestID), zap.Error(err))
		s.fail(ctx, job, models.NewStageError(models.CodeSearchFailed, mapping.Route, "failed to persist result", err),
			lang.AssistantLanguage, query)
		return
	}
	s.advance(ctx, job.RequestID, models.StatusDoneSuccess, models.ProgressDone)
	s.hub.Publish(job.RequestID, models.StreamEvent{
		Type:     models.EventTypeTerminal,
		Status:   models.StatusDoneSuccess,
		Progress: models.ProgressDone,
		Payload:  json.RawMessage(raw),
	})

	s.logger.Info("search_completed",
		zap.String("request_id", job.RequestID),
		zap.String("route", string(mapping.Route)),
		zap.String("source", source),
		zap.Int("results", len(ordered)),
		zap.Int64("took_ms", response.Meta.TookMs),
	)

	assistantCtx := assistant.ContextSummary
	if genericQuery {
		assistantCtx = assistant.ContextGenericNarration
	}
	s.narrate(context.WithoutCancel(ctx), job.RequestID, assistant.Request{
		Context:     assistantCtx,
		Query:       query,
		Language:    lang.AssistantLanguage,
		ResultCount: len(ordered),
		TopNames:    topNames(ordered, assistantTopNames),
	})
}

// fetchPool decides between reusing the session's previous candidate pool
// and calling the provider, and keeps both pool stores current on a fetch.
func (s *Service) fetchPool(
	ctx context.Context,
	job *models.Job,
	sessionID string,
	mapping models.Mapping,
	searchCtx models.SearchContext,
	merged models.SoftFilters,
	lang models.LanguageContext,
) ([]models.Place, string, error) {
	var (
		prevCtx *models.SearchContext
		stats   *requery.PoolStats
	)
	prev := s.pools.Load(ctx, sessionID)
	if prev != nil {
		prevCtx = &prev.Context
		stats = &requery.PoolStats{
			TotalCount:    len(prev.Places),
			FilteredCount: s.postfilter.Count(prev.Places, merged),
		}
	}

	decision := s.requery.Decide(prevCtx, searchCtx, stats)
	if !decision.CallProvider && prev != nil {
		return prev.Places, "pool", nil
	}

	result, err := s.places.Execute(ctx, mapping, lang)
	if err != nil {
		return nil, "", err
	}

	pool := &models.CandidatePool{Context: searchCtx, Places: result.Places, FetchedAt: time.Now()}
	if err := s.store.SetCandidatePool(ctx, job.RequestID, pool); err != nil {
		s.logger.Warn("candidate_pool_write_failed", zap.String("request_id", job.RequestID), zap.Error(err))
	}
	s.pools.Save(ctx, sessionID, pool)
	return result.Places, result.Source, nil
}

// advance persists the milestone and streams it. Failures on a terminal job
// mean something else already finished it; the publish is skipped then.
func (s *Service) advance(ctx context.Context, requestID string, status models.JobStatus, progress int) {
	if err := s.store.SetStatus(ctx, requestID, status, progress); err != nil {
		s.logger.Warn("job_status_write_failed",
			zap.String("request_id", requestID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		if errors.Is(err, models.ErrTerminalJob) {
			return
		}
	}
	if status != models.StatusDoneSuccess {
		s.hub.Publish(requestID, models.StreamEvent{
			Type:     models.EventTypeStatus,
			Status:   status,
			Progress: progress,
		})
	}
}

func (s *Service) fail(ctx context.Context, job *models.Job, se *models.StageError, assistantLang, query string) {
	if err := s.store.SetError(ctx, job.RequestID, se.Code, se.Message, string(se.Route)); err != nil {
		if errors.Is(err, models.ErrTerminalJob) {
			return
		}
		s.logger.Error("job_error_write_failed", zap.String("request_id", job.RequestID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.SearchFailuresTotal.Add(ctx, 1)
	}
	s.logger.Warn("search_failed",
		zap.String("request_id", job.RequestID),
		zap.String("kind", se.Code),
		zap.String("route", string(se.Route)),
		zap.String("message", se.Message),
	)

	s.hub.Publish(job.RequestID, models.StreamEvent{
		Type:    models.EventTypeTerminal,
		Status:  models.StatusDoneFailed,
		Payload: ErrorBody{Code: se.Code, Message: se.Message, Route: string(se.Route)},
	})

	if assistantLang == "" {
		assistantLang = models.LangEnglish
	}
	s.narrate(context.WithoutCancel(ctx), job.RequestID, assistant.Request{
		Context:  assistant.ContextSearchFailed,
		Query:    query,
		Language: assistantLang,
	})
}

// failGate terminates a non-food query. The assistant message is the real
// payload here; the error record is bookkeeping.
func (s *Service) failGate(ctx context.Context, job *models.Job, gateRes gate.Result, lang models.LanguageContext, query string) {
	if err := s.store.SetError(ctx, job.RequestID, models.CodeGateFail, gateRes.Reason, ""); err != nil && !errors.Is(err, models.ErrTerminalJob) {
		s.logger.Error("job_error_write_failed", zap.String("request_id", job.RequestID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.SearchFailuresTotal.Add(ctx, 1)
	}
	s.logger.Info("search_gated",
		zap.String("request_id", job.RequestID),
		zap.String("reason", gateRes.Reason),
	)

	s.hub.Publish(job.RequestID, models.StreamEvent{
		Type:    models.EventTypeTerminal,
		Status:  models.StatusDoneFailed,
		Payload: ErrorBody{Code: models.CodeGateFail, Message: gateRes.Reason},
	})
	s.narrate(context.WithoutCancel(ctx), job.RequestID, assistant.Request{
		Context:    assistant.ContextGateFail,
		Query:      query,
		Language:   lang.AssistantLanguage,
		GateReason: gateRes.Reason,
	})
}

// narrate generates and publishes the assistant message. It runs after the
// terminal event on purpose: the message is additive and must never delay or
// fail a result.
func (s *Service) narrate(ctx context.Context, requestID string, req assistant.Request) {
	if s.assistant == nil {
		return
	}
	msg := s.assistant.Generate(ctx, req)
	s.hub.Publish(requestID, models.StreamEvent{
		Type: models.EventTypeAssistant,
		Payload: models.AssistantMessage{
			Context:      models.AssistantContext(msg.Context),
			Message:      msg.Text,
			BlocksSearch: msg.BlocksSearch,
			Language:     msg.Language,
		},
	})
}

func (s *Service) startHeartbeat(ctx context.Context, requestID string) func() {
	interval := s.jobs.HeartbeatEvery
	if interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := s.store.UpdateHeartbeat(ctx, requestID); err != nil {
					s.logger.Debug("heartbeat_failed", zap.String("request_id", requestID), zap.Error(err))
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func validateRequest(req models.SearchRequest) error {
	if req.SessionID == "" {
		return fmt.Errorf("%w: sessionId is required", models.ErrValidation)
	}
	if req.Query == "" {
		return fmt.Errorf("%w: query is required", models.ErrValidation)
	}
	if len(req.Query) > maxQueryLength {
		return fmt.Errorf("%w: query exceeds %d characters", models.ErrValidation, maxQueryLength)
	}
	if loc := req.UserLocation; loc != nil {
		if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
			return fmt.Errorf("%w: userLocation out of range", models.ErrValidation)
		}
	}
	if p := req.Pagination; p != nil {
		if p.Limit < 0 || p.Offset < 0 {
			return fmt.Errorf("%w: pagination values must be non-negative", models.ErrValidation)
		}
	}
	if f := req.Filters; f != nil && f.OpenBetween != nil {
		w := f.OpenBetween
		if w.StartMin < 0 || w.StartMin >= 24*60 || w.EndMin < 0 || w.EndMin > 24*60 {
			return fmt.Errorf("%w: openBetween window out of range", models.ErrValidation)
		}
	}
	return nil
}

// idempotencyKey hashes the request identity. Pagination is excluded: a page
// change must reuse the running job, not spawn a sibling.
func idempotencyKey(req models.SearchRequest) string {
	var filterSig string
	if req.Filters != nil {
		filterSig = req.Filters.Signature()
	}
	h := sha256.New()
	for _, part := range []string{
		req.SessionID,
		strings.ToLower(strings.Join(strings.Fields(req.Query), " ")),
		req.UILanguage,
		locationBucket(req.UserLocation),
		filterSig,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// locationBucket rounds to ~1km so GPS jitter does not defeat deduplication.
func locationBucket(loc *models.LatLng) string {
	if loc == nil {
		return "none"
	}
	return fmt.Sprintf("%.2f,%.2f", loc.Lat, loc.Lng)
}

func buildSearchContext(
	query string,
	mapping models.Mapping,
	intentRes intent.Result,
	userLocation *models.LatLng,
	merged models.SoftFilters,
) models.SearchContext {
	sc := models.SearchContext{
		Query:           strings.ToLower(strings.Join(strings.Fields(query), " ")),
		Route:           mapping.Route,
		CityText:        intentRes.CityText,
		UserLocation:    userLocation,
		FilterSignature: merged.Signature(),
	}
	switch {
	case mapping.Text != nil:
		sc.RegionCode = mapping.Text.RegionCode
		if mapping.Text.LocationBias != nil {
			sc.RadiusMeters = mapping.Text.LocationBias.RadiusMeters
		}
	case mapping.Nearby != nil:
		sc.RegionCode = mapping.Nearby.RegionCode
		sc.RadiusMeters = mapping.Nearby.RadiusMeters
	case mapping.Landmark != nil:
		sc.RegionCode = mapping.Landmark.RegionCode
		sc.RadiusMeters = mapping.Landmark.RadiusMeters
	}
	return sc
}

// mergeFilters overlays explicit request filters on the extracted ones. A
// set request field always wins; dietary booleans are additive.
func mergeFilters(extracted models.SoftFilters, override *models.SoftFilters) models.SoftFilters {
	if override == nil {
		return extracted
	}
	out := extracted
	if override.OpenState != nil {
		out.OpenState = override.OpenState
	}
	if override.OpenAt != nil {
		out.OpenAt = override.OpenAt
	}
	if override.OpenBetween != nil {
		out.OpenBetween = override.OpenBetween
	}
	if override.PriceIntent != nil {
		out.PriceIntent = override.PriceIntent
	}
	if override.MinRating != nil {
		out.MinRating = override.MinRating
	}
	if override.MinReviewCount != nil {
		out.MinReviewCount = override.MinReviewCount
	}
	out.Vegan = out.Vegan || override.Vegan
	out.Vegetarian = out.Vegetarian || override.Vegetarian
	out.GlutenFree = out.GlutenFree || override.GlutenFree
	out.Kosher = out.Kosher || override.Kosher
	out.Halal = out.Halal || override.Halal
	return out
}

func paginate(places []models.Place, p *models.Pagination) []models.Place {
	limit, offset := defaultPageLimit, 0
	if p != nil {
		if p.Limit > 0 {
			limit = p.Limit
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
		offset = p.Offset
	}
	if offset >= len(places) {
		return []models.Place{}
	}
	end := offset + limit
	if end > len(places) {
		end = len(places)
	}
	return places[offset:end]
}

func topNames(places []models.Place, n int) []string {
	if len(places) < n {
		n = len(places)
	}
	names := make([]string, 0, n)
	for _, p := range places[:n] {
		names = append(names, p.Name)
	}
	return names
}

func appendUnique(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	for _, t := range base {
		seen[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range extra {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		base = append(base, t)
	}
	return base
}
