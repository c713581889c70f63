package search

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/domain/jobstore"
	"github.com/FACorreiaa/loci-search/internal/app/domain/wshub"
	"github.com/FACorreiaa/loci-search/internal/app/middleware"
	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// Handler exposes the async search API: submit, poll, and the WS ticket and
// upgrade endpoints.
type Handler struct {
	service  *Service
	store    jobstore.Store
	stale    *jobstore.StaleChecker
	hub      *wshub.Hub
	tickets  *wshub.TicketService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHandler(
	service *Service,
	store jobstore.Store,
	stale *jobstore.StaleChecker,
	hub *wshub.Hub,
	tickets *wshub.TicketService,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		store:   store,
		stale:   stale,
		hub:     hub,
		tickets: tickets,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser origin enforcement happens at the ticket: the WS URL
			// is useless without a freshly issued single-use ticket.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// CreateSearch handles POST /search: validate, enqueue, 202 with the request
// handle. The client follows up over WS or by polling the result endpoint.
func (h *Handler) CreateSearch(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, models.CodeValidationError, "malformed request body")
		return
	}
	req.SessionID = middleware.SessionID(c)

	job, err := h.service.Accept(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			writeError(c, http.StatusBadRequest, models.CodeValidationError, err.Error())
			return
		}
		h.logger.Error("search_accept_failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, models.CodeSearchFailed, "failed to accept search")
		return
	}

	c.JSON(http.StatusAccepted, Envelope{
		ContractsVersion: models.ContractsVersion,
		RequestID:        job.RequestID,
		Status:           job.Status,
		Progress:         job.Progress,
		ResultURL:        "/api/search/" + job.RequestID + "/result",
	})
}

// GetResult handles GET /search/:requestId/result. Reads are session-scoped;
// a foreign or unknown request is a 404 either way.
func (h *Handler) GetResult(c *gin.Context) {
	requestID := c.Param("requestId")
	sessionID := middleware.SessionID(c)

	job, err := h.store.Get(c.Request.Context(), requestID, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(c, http.StatusNotFound, models.CodeResultMissing, "unknown request")
			return
		}
		h.logger.Error("job_read_failed", zap.String("request_id", requestID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, models.CodeSearchFailed, "failed to read job")
		return
	}

	// Lazy staleness: a poll is as good a moment as the sweeper to notice a
	// dead worker.
	if h.stale != nil {
		if marked, serr := h.stale.Evaluate(c.Request.Context(), job); serr == nil && marked {
			if fresh, gerr := h.store.Get(c.Request.Context(), requestID, sessionID); gerr == nil {
				job = fresh
			}
		}
	}

	// Terminal success returns the stored response verbatim; everything else
	// gets the flat envelope, with 202 while the job is still in flight.
	if job.Status == models.StatusDoneSuccess && len(job.Result) > 0 {
		c.Data(http.StatusOK, "application/json; charset=utf-8", job.Result)
		return
	}
	env := BuildEnvelope(job)
	if !job.Status.Terminal() {
		env.Meta = buildRunningMeta(job, h.stale)
		c.JSON(http.StatusAccepted, env)
		return
	}
	c.JSON(http.StatusOK, env)
}

// IssueTicket handles POST /ws-ticket. When the ticket store is down clients
// get a 503 with Retry-After so they fall back to polling.
func (h *Handler) IssueTicket(c *gin.Context) {
	sessionID := middleware.SessionID(c)

	ticket, err := h.tickets.Issue(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, wshub.ErrStoreUnavailable) {
			c.Header("Retry-After", "2")
			writeError(c, http.StatusServiceUnavailable, models.CodeTicketStoreUnavailable, "ticket store unavailable")
			return
		}
		if errors.Is(err, models.ErrUnauthenticated) {
			writeError(c, http.StatusUnauthorized, models.CodeUnauthorized, "missing session")
			return
		}
		h.logger.Error("ws_ticket_issue_failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, models.CodeSearchFailed, "failed to issue ticket")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

// ServeWS handles GET /ws?ticket=... by redeeming the single-use ticket and
// upgrading. Session identity comes from the ticket, not from headers, so
// browser WS clients need no Authorization support.
func (h *Handler) ServeWS(c *gin.Context) {
	ticket := c.Query("ticket")
	if ticket == "" {
		writeError(c, http.StatusUnauthorized, models.CodeUnauthorized, "missing ticket")
		return
	}

	sessionID, err := h.tickets.Redeem(c.Request.Context(), ticket)
	if err != nil {
		switch {
		case errors.Is(err, wshub.ErrStoreUnavailable):
			c.Header("Retry-After", "2")
			writeError(c, http.StatusServiceUnavailable, models.CodeTicketStoreUnavailable, "ticket store unavailable")
		case errors.Is(err, wshub.ErrTicketUsed), errors.Is(err, wshub.ErrInvalidTicket):
			writeError(c, http.StatusUnauthorized, models.CodeUnauthorized, "invalid ticket")
		default:
			h.logger.Error("ws_ticket_redeem_failed", zap.Error(err))
			writeError(c, http.StatusInternalServerError, models.CodeSearchFailed, "failed to redeem ticket")
		}
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws_upgrade_failed", zap.Error(err))
		return
	}

	client := wshub.NewClient(h.hub, conn, sessionID, h.logger)
	client.Run()
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{"code": code, "message": message},
	})
}
