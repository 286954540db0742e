package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ccdb/ccdb/db"
)

type createTaskRequest struct {
	Name            string `json:"name"`
	Prompt          string `json:"prompt"`
	IntervalSeconds int    `json:"interval_seconds"`
	ChannelID       string `json:"channel_id"`
	WorkingDir      string `json:"working_dir"`
	RunImmediately  bool   `json:"run_immediately"`
}

// CreateTask registers a periodic task
func (h *Handlers) CreateTask(c *gin.Context) {
	if !h.schedulerEnabled {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler is disabled"})
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.Name == "" || req.Prompt == "" || req.IntervalSeconds <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, prompt and interval_seconds are required"})
		return
	}

	id, err := db.CreateTask(req.Name, req.Prompt, req.IntervalSeconds, req.ChannelID, req.WorkingDir, req.RunImmediately)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, gin.H{"error": "a task with that name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// ListTasks returns all tasks
func (h *Handlers) ListTasks(c *gin.Context) {
	tasks, err := db.ListTasks()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, gin.H{
			"id":               t.ID,
			"name":             t.Name,
			"prompt":           t.Prompt,
			"interval_seconds": t.IntervalSeconds,
			"channel_id":       t.ChannelID,
			"working_dir":      t.WorkingDir,
			"enabled":          t.Enabled,
			"next_run_at":      t.NextRunAt,
			"last_run_at":      t.LastRunAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

type updateTaskRequest struct {
	Enabled         *bool   `json:"enabled"`
	Prompt          *string `json:"prompt"`
	IntervalSeconds *int    `json:"interval_seconds"`
	WorkingDir      *string `json:"working_dir"`
}

// UpdateTask applies a partial update
func (h *Handlers) UpdateTask(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	existed, err := db.UpdateTask(id, req.Enabled, req.Prompt, req.IntervalSeconds, req.WorkingDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !existed {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// DeleteTask removes a task
func (h *Handlers) DeleteTask(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	deleted, err := db.DeleteTask(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
