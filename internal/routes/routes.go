package routes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/domain/assistant"
	"github.com/FACorreiaa/loci-search/internal/app/domain/enforcer"
	"github.com/FACorreiaa/loci-search/internal/app/domain/filters"
	"github.com/FACorreiaa/loci-search/internal/app/domain/gate"
	"github.com/FACorreiaa/loci-search/internal/app/domain/intent"
	"github.com/FACorreiaa/loci-search/internal/app/domain/jobstore"
	"github.com/FACorreiaa/loci-search/internal/app/domain/language"
	"github.com/FACorreiaa/loci-search/internal/app/domain/llm"
	"github.com/FACorreiaa/loci-search/internal/app/domain/mapper"
	"github.com/FACorreiaa/loci-search/internal/app/domain/places"
	"github.com/FACorreiaa/loci-search/internal/app/domain/postfilter"
	"github.com/FACorreiaa/loci-search/internal/app/domain/ranker"
	"github.com/FACorreiaa/loci-search/internal/app/domain/requery"
	"github.com/FACorreiaa/loci-search/internal/app/domain/search"
	"github.com/FACorreiaa/loci-search/internal/app/domain/wshub"
	"github.com/FACorreiaa/loci-search/internal/app/middleware"
	"github.com/FACorreiaa/loci-search/internal/app/models"
	"github.com/FACorreiaa/loci-search/internal/app/observability/metrics"
	"github.com/FACorreiaa/loci-search/internal/pkg/cache"
	"github.com/FACorreiaa/loci-search/internal/pkg/config"
)

// App holds the wired pipeline pieces that outlive route registration: the
// job store and stale checker feed the background sweeper, the hub and
// caches feed the stats endpoint.
type App struct {
	Store   jobstore.Store
	Checker *jobstore.StaleChecker
	Hub     *wshub.Hub
	Caches  *cache.Manager
	Sweeper *jobstore.Sweeper
}

// Setup builds the full search pipeline and registers all routes on r.
// pool may be nil; the job store then falls back to the in-memory
// implementation and the background sweeper stays off.
func Setup(ctx context.Context, r *gin.Engine, cfg *config.Config, pool *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	redis := cache.NewRedisStore(cfg.Repositories.Redis, logger)
	if err := redis.Ping(ctx); err != nil {
		// WS tickets degrade to 503 and the tiered caches run without L2.
		logger.Warn("redis unreachable, running degraded", zap.Error(err))
	}
	caches := cache.NewManager(cfg.Cache, redis, logger)

	llmClient, err := llm.NewGenAIClient(ctx, cfg.GeminiAPIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	placesClient := places.NewClient(cfg.Provider, metrics.Get(), logger)
	placesSvc := places.NewService(placesClient, caches, logger)

	canonical := mapper.NewCanonicalizer(llmClient, caches.Canonical, cfg.Cache.CanonicalTTL, cfg.LLM.Mapper, logger)
	mapperSvc := mapper.NewService(llmClient, canonical, placesSvc, cfg.LLM.Mapper, logger)

	var store jobstore.Store
	var pgStore *jobstore.PostgresStore
	if pool != nil {
		pgStore = jobstore.NewPostgresStore(pool, logger)
		store = pgStore
	} else {
		logger.Warn("no database pool, using in-memory job store")
		store = jobstore.NewMemoryStore(cfg.Jobs.StoreTTL, logger)
	}

	hub := wshub.NewHub(logger)
	checker := jobstore.NewStaleChecker(store, hub, cfg.Jobs.MaxRunningAge, logger)

	svc := search.NewService(search.Deps{
		Jobs:       cfg.Jobs,
		Store:      store,
		Hub:        hub,
		Pools:      search.NewSessionPools(redis, cfg.Cache.L2DefaultTTL, logger),
		Resolver:   language.NewResolver(logger),
		Gate:       gate.NewService(llmClient, cfg.LLM.Gate, logger),
		Intent:     intent.NewService(llmClient, cfg.LLM.Intent, logger),
		Filters:    filters.NewService(llmClient, cfg.LLM.Filters, logger),
		Mapper:     mapperSvc,
		Requery:    requery.NewDecider(logger),
		Places:     placesSvc,
		Enforcer:   enforcer.NewService(llmClient, cfg.LLM.Enforcer, logger),
		PostFilter: postfilter.NewService(logger),
		Ranker:     ranker.NewService(logger),
		Assistant:  assistant.NewService(llmClient, cfg.LLM.Assistant, logger),
		Metrics:    metrics.Get(),
		Logger:     logger,
	})

	tickets := wshub.NewTicketService(cfg.SessionKey, redis, logger)
	handler := search.NewHandler(svc, store, checker, hub, tickets, logger)

	registerRoutes(r, cfg, handler, hub, caches, redis)

	app := &App{
		Store:   store,
		Checker: checker,
		Hub:     hub,
		Caches:  caches,
	}
	if pgStore != nil {
		app.Sweeper = jobstore.NewSweeper(pgStore, checker, cfg.Jobs.MaxRunningAge, logger)
	}
	return app, nil
}

func registerRoutes(r *gin.Engine, cfg *config.Config, handler *search.Handler, hub *wshub.Hub, caches *cache.Manager, redis *cache.RedisStore) {
	r.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		if err := redis.Ping(c.Request.Context()); err != nil {
			status["redis"] = "down"
		}
		c.JSON(http.StatusOK, status)
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"caches":               caches.Stats(),
			"active_subscriptions": hub.ActiveSubscriptions(),
		})
	})

	api := r.Group("/api")
	api.Use(middleware.SessionAuth(cfg.SessionKey))
	{
		api.POST("/search", handler.CreateSearch)
		api.GET("/search/:requestId/result", handler.GetResult)
		api.POST("/ws-ticket", handler.IssueTicket)
	}

	// The WS endpoint authenticates with the single-use ticket instead of the
	// session token; browser WebSocket clients cannot set headers.
	r.GET("/ws", handler.ServeWS)

	if cfg.Env != "prod" {
		registerDevRoutes(r, cfg)
	}
}

// registerDevRoutes exposes a token mint so local clients can get a session
// without the upstream identity service.
func registerDevRoutes(r *gin.Engine, cfg *config.Config) {
	r.POST("/dev/session", func(c *gin.Context) {
		var body struct {
			SessionID string `json:"sessionId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": models.CodeValidationError, "message": "sessionId is required"}})
			return
		}
		token, err := middleware.IssueSessionToken(cfg.SessionKey, body.SessionID, cfg.Jobs.StoreTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": models.CodeSearchFailed, "message": "failed to issue token"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})
}
