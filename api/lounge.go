package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ccdb/ccdb/db"
	"github.com/ccdb/ccdb/log"
)

const (
	loungeDefaultLimit = 20
	loungeMaxLimit     = 50
)

// GetLounge returns recent lounge messages in chronological order
func (h *Handlers) GetLounge(c *gin.Context) {
	limit := loungeDefaultLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	// Silently cap out-of-range limits
	if limit < 1 {
		limit = 1
	}
	if limit > loungeMaxLimit {
		limit = loungeMaxLimit
	}

	messages, err := db.GetRecentLoungeMessages(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		out = append(out, gin.H{
			"label":     m.Label,
			"message":   m.Message,
			"posted_at": m.PostedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

type postLoungeRequest struct {
	Message string `json:"message"`
	Label   string `json:"label"`
}

// PostLounge stores a lounge message and forwards it to the coordination
// channel
func (h *Handlers) PostLounge(c *gin.Context) {
	var req postLoungeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if req.Label == "" {
		req.Label = "agent"
	}

	if _, err := db.PostLoungeMessage(req.Message, req.Label, db.DefaultLoungeRetention); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Forwarding is best-effort; the stored copy is the durable one
	if err := h.notifier.PostLounge(req.Label, req.Message); err != nil {
		log.Warn().Err(err).Msg("lounge forward failed")
	}

	c.JSON(http.StatusCreated, gin.H{"posted": true})
}
