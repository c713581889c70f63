// Package wshub delivers per-request search events over WebSocket. Sessions
// authenticate with a short-lived single-use ticket; subscriptions are scoped
// to (requestId, sessionId) and a bounded backlog is replayed to late
// subscribers so early publishes are not lost.
package wshub

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

const backlogLimit = 32

type subscription struct {
	requestID string
	sessionID string
}

// Hub owns the subscription maps and backlogs. Publishing never blocks the
// caller: slow clients have events dropped, and every failure is logged and
// swallowed.
type Hub struct {
	mu       sync.RWMutex
	owners   map[string]string                     // requestID -> owning sessionID
	subs     map[subscription]map[*Client]struct{} // registered subscribers
	backlogs map[string][]models.StreamEvent       // requestID -> ordered events
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		owners:   make(map[string]string),
		subs:     make(map[subscription]map[*Client]struct{}),
		backlogs: make(map[string][]models.StreamEvent),
		logger:   logger,
	}
}

// Register binds a requestID to its owning session. Called at job accept,
// before any publish, so subscribe requests can be authorised.
func (h *Hub) Register(requestID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.owners[requestID] = sessionID
}

// Release drops the request's owner binding and backlog once the job has
// left the retention window.
func (h *Hub) Release(requestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.owners, requestID)
	delete(h.backlogs, requestID)
	for key, clients := range h.subs {
		if key.requestID == requestID {
			for c := range clients {
				c.detach(key)
			}
			delete(h.subs, key)
		}
	}
}

// Subscribe registers the client for a request's events and replays the
// backlog in publish order. Returns the number of replayed events, or a
// nack reason when the request is unknown or owned by another session.
func (h *Hub) Subscribe(c *Client, requestID string) (int, string) {
	h.mu.Lock()
	owner, known := h.owners[requestID]
	if !known || owner != c.sessionID {
		h.mu.Unlock()
		// Unknown and foreign requests are indistinguishable on purpose.
		return 0, "not_found"
	}

	key := subscription{requestID: requestID, sessionID: c.sessionID}
	if h.subs[key] == nil {
		h.subs[key] = make(map[*Client]struct{})
	}
	h.subs[key][c] = struct{}{}
	c.attach(key)

	backlog := make([]models.StreamEvent, len(h.backlogs[requestID]))
	copy(backlog, h.backlogs[requestID])
	h.mu.Unlock()

	for _, ev := range backlog {
		c.enqueue(ev)
	}
	return len(backlog), ""
}

// Unsubscribe removes one subscription; Detach removes the client from all.
func (h *Hub) Unsubscribe(c *Client, requestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := subscription{requestID: requestID, sessionID: c.sessionID}
	h.removeLocked(key, c)
}

func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range c.subscriptions() {
		h.removeLocked(key, c)
	}
}

func (h *Hub) removeLocked(key subscription, c *Client) {
	if clients, ok := h.subs[key]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.subs, key)
		}
	}
	c.detach(key)
}

// Publish appends the event to the request backlog and fans it out to the
// owning session's subscribers. Errors never propagate to the pipeline.
func (h *Hub) Publish(requestID string, event models.StreamEvent) {
	event.RequestID = requestID
	event.Channel = models.ChannelSearch
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.Lock()
	owner, known := h.owners[requestID]
	if !known {
		h.mu.Unlock()
		h.logger.Debug("ws_publish_unregistered_request", zap.String("request_id", requestID))
		return
	}

	backlog := append(h.backlogs[requestID], event)
	if len(backlog) > backlogLimit {
		backlog = backlog[len(backlog)-backlogLimit:]
	}
	h.backlogs[requestID] = backlog

	key := subscription{requestID: requestID, sessionID: owner}
	targets := make([]*Client, 0, len(h.subs[key]))
	for c := range h.subs[key] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.enqueue(event)
	}
}

// HasActiveSubscribers reports whether anyone is watching the request. Used
// by stale detection to avoid killing a job with a live viewer.
func (h *Hub) HasActiveSubscribers(requestID, sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	key := subscription{requestID: requestID, sessionID: sessionID}
	return len(h.subs[key]) > 0
}

// ActiveSubscriptions returns the current subscription count for metrics.
func (h *Hub) ActiveSubscriptions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, clients := range h.subs {
		total += len(clients)
	}
	return total
}
