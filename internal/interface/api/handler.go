// Package api exposes the task operations over HTTP.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opspilot/opspilot/internal/application/usecase"
	"github.com/opspilot/opspilot/internal/domain/repository"
)

// TaskHandler adapts the coordinator to HTTP.
type TaskHandler struct {
	coordinator *usecase.Coordinator
}

// NewTaskHandler creates a handler over a coordinator.
func NewTaskHandler(coordinator *usecase.Coordinator) *TaskHandler {
	return &TaskHandler{coordinator: coordinator}
}

type executeRequest struct {
	Request         string `json:"request"`
	RequireApproval bool   `json:"require_approval"`
}

// Execute submits a request for classification and execution.
// POST /api/v1/execute
func (h *TaskHandler) Execute(c *gin.Context) {
	var body executeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(body.Request) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "request text is empty"})
		return
	}
	submit := h.coordinator.Submit
	if body.RequireApproval {
		submit = h.coordinator.SubmitRequiringApproval
	}
	resp, err := submit(c.Request.Context(), body.Request)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get returns one task.
// GET /api/v1/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	resp, err := h.coordinator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List returns all tasks in creation order.
// GET /api/v1/tasks
func (h *TaskHandler) List(c *gin.Context) {
	responses, err := h.coordinator.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": responses, "count": len(responses)})
}

// Approve releases a waiting task into execution.
// POST /api/v1/tasks/:id/approve (alias /api/v1/plans/:id/approve)
func (h *TaskHandler) Approve(c *gin.Context) {
	resp, err := h.coordinator.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reject terminates a waiting task.
// POST /api/v1/tasks/:id/reject (alias /api/v1/plans/:id/reject)
func (h *TaskHandler) Reject(c *gin.Context) {
	resp, err := h.coordinator.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TaskHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case errors.Is(err, usecase.ErrNotAwaitingApproval):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	}
}
