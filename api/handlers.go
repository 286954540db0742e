// Package api exposes the embedded HTTP surface the CLI child processes
// and external tooling call back into.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ccdb/ccdb/db"
)

// Notifier delivers messages to Discord on behalf of API callers
type Notifier interface {
	// SendNotification posts an embed; channelID "" means the default
	// notification channel
	SendNotification(message, title string, color int, channelID string) error

	// PostLounge forwards a lounge message to the coordination channel
	PostLounge(label, message string) error
}

// Handlers holds the dependencies the route handlers need
type Handlers struct {
	notifier         Notifier
	schedulerEnabled bool
	defaultChannelID string
}

func NewHandlers(notifier Notifier, schedulerEnabled bool, defaultChannelID string) *Handlers {
	return &Handlers{
		notifier:         notifier,
		schedulerEnabled: schedulerEnabled,
		defaultChannelID: defaultChannelID,
	}
}

// Health reports liveness. The only route exempt from auth.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

type notifyRequest struct {
	Message   string `json:"message"`
	Title     string `json:"title"`
	Color     int    `json:"color"`
	ChannelID string `json:"channel_id"`
}

// Notify sends an immediate notification embed
func (h *Handlers) Notify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if req.ChannelID == "" && h.defaultChannelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no channel configured"})
		return
	}

	if err := h.notifier.SendNotification(req.Message, req.Title, req.Color, req.ChannelID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

type scheduleRequest struct {
	Message     string `json:"message"`
	Title       string `json:"title"`
	Color       int    `json:"color"`
	ChannelID   string `json:"channel_id"`
	ScheduledAt string `json:"scheduled_at"`
}

// Schedule persists a notification for later delivery
func (h *Handlers) Schedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	at, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_at must be ISO-8601"})
		return
	}

	id, err := db.CreateScheduledNotification(req.Message, req.Title, req.Color, req.ChannelID, at)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// ListScheduled returns notifications still pending delivery
func (h *Handlers) ListScheduled(c *gin.Context) {
	pending, err := db.ListPendingNotifications()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(pending))
	for _, n := range pending {
		out = append(out, gin.H{
			"id":           n.ID,
			"message":      n.Message,
			"title":        n.Title,
			"channel_id":   n.ChannelID,
			"scheduled_at": n.ScheduledAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"scheduled": out})
}

// CancelScheduled cancels one pending notification
func (h *Handlers) CancelScheduled(c *gin.Context) {
	cancelled, err := db.CancelScheduledNotification(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !cancelled {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found or not pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}
