package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	authdomain "eventscout-backend/internal/auth/domain"
	authRepo "eventscout-backend/internal/auth/repository"
	eventRepo "eventscout-backend/internal/event/repository"
	"eventscout-backend/internal/pipeline/queue"
	"eventscout-backend/pkg/config"
	"eventscout-backend/pkg/gmail"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

// Handler exposes the pipeline's trigger surface: manual sync, Gmail
// watch registration, and per-user periodic scheduling. Event CRUD
// beyond the read-only listing lives in a separate service.
type Handler struct {
	cfg       *config.Config
	jobs      *queue.Queue
	gmail     *gmail.Service
	userRepo  authRepo.UserRepository
	eventRepo eventRepo.EventRepository

	mu        sync.Mutex
	schedules map[string]context.CancelFunc
}

func NewHandler(cfg *config.Config, jobs *queue.Queue, gmailService *gmail.Service, userRepo authRepo.UserRepository, eventRepository eventRepo.EventRepository) *Handler {
	return &Handler{
		cfg:       cfg,
		jobs:      jobs,
		gmail:     gmailService,
		userRepo:  userRepo,
		eventRepo: eventRepository,
		schedules: make(map[string]context.CancelFunc),
	}
}

func currentUser(c *gin.Context) *authdomain.User {
	return c.MustGet("user").(*authdomain.User)
}

// TriggerSync enqueues one sync run for the caller.
func (h *Handler) TriggerSync(c *gin.Context) {
	user := currentUser(c)

	var req struct {
		MaxResults int `json:"max_results"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.MaxResults <= 0 {
		req.MaxResults = h.cfg.SyncMaxResults
	}

	ok := h.jobs.Enqueue(queue.Job{
		Kind:       queue.KindSyncInbox,
		UserID:     user.ID,
		MaxResults: req.MaxResults,
	})
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline busy, try again later"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// WatchMailbox registers the caller's mailbox with the Pub/Sub topic so
// new mail triggers a sync without waiting for the periodic loop.
func (h *Handler) WatchMailbox(c *gin.Context) {
	user := currentUser(c)

	topic := fmt.Sprintf("projects/%s/topics/%s", h.cfg.GoogleProjectID, h.cfg.GooglePubSubTopic)
	err := h.gmail.Watch(c.Request.Context(), user.AccessToken, user.RefreshToken, topic, h.tokenSaver(user.ID))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "watching", "topic": topic})
}

func (h *Handler) StopWatchMailbox(c *gin.Context) {
	user := currentUser(c)

	if err := h.gmail.StopWatch(c.Request.Context(), user.AccessToken, user.RefreshToken, h.tokenSaver(user.ID)); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// ScheduleFor starts the periodic sync loop for a user, replacing any
// loop already running for them. Boot-time scheduling and the API go
// through this single registry so a user never has two loops and
// StopSchedule can always find the one to cancel.
func (h *Handler) ScheduleFor(userID string) {
	h.mu.Lock()
	if cancel, ok := h.schedules[userID]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.schedules[userID] = cancel
	h.mu.Unlock()

	h.jobs.SchedulePeriodic(ctx, userID, h.cfg.SyncInterval, h.cfg.SyncMaxResults)
}

// StartSchedule begins a periodic sync loop for the caller. Calling it
// again replaces the existing loop.
func (h *Handler) StartSchedule(c *gin.Context) {
	user := currentUser(c)
	h.ScheduleFor(user.ID)
	c.JSON(http.StatusOK, gin.H{"status": "scheduled", "interval": h.cfg.SyncInterval.String()})
}

func (h *Handler) StopSchedule(c *gin.Context) {
	user := currentUser(c)

	h.mu.Lock()
	cancel, ok := h.schedules[user.ID]
	if ok {
		cancel()
		delete(h.schedules, user.ID)
	}
	h.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no schedule for user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// ListEvents returns the caller's materialized events, newest first.
func (h *Handler) ListEvents(c *gin.Context) {
	user := currentUser(c)

	limit := 50
	offset := 0
	if v, err := parseQueryInt(c, "limit"); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := parseQueryInt(c, "offset"); err == nil && v >= 0 {
		offset = v
	}

	events, err := h.eventRepo.ListByUser(user.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func parseQueryInt(c *gin.Context, key string) (int, error) {
	var v int
	_, err := fmt.Sscanf(c.Query(key), "%d", &v)
	return v, err
}

// StopAllSchedules cancels every periodic loop. Called on shutdown.
func (h *Handler) StopAllSchedules() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cancel := range h.schedules {
		cancel()
		delete(h.schedules, id)
	}
}

func (h *Handler) tokenSaver(userID string) func(*oauth2.Token) error {
	return func(token *oauth2.Token) error {
		return h.userRepo.UpdateTokens(userID, token.AccessToken, token.RefreshToken, &token.Expiry)
	}
}
