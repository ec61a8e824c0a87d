package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskflow/internal/apperr"
	"taskflow/internal/service/task"
)

type TaskHandler struct {
	svc    *task.Service
	logger *zap.Logger
}

func NewTaskHandler(svc *task.Service, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

// List handles GET /api/tasks.
func (h *TaskHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	in := task.ListInput{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Search:   c.Query("search"),
		SortBy:   c.Query("sort_by"),
		SortDir:  c.Query("sort_dir"),
		Page:     page,
		Limit:    limit,
	}

	result, err := h.svc.List(c.Request.Context(), CurrentUserID(c), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondPage(c, gin.H{"tasks": result.Items}, Pagination{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages,
	})
}

// Get handles GET /api/tasks/:id.
func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := taskID(c, h.logger)
	if !ok {
		return
	}
	t, err := h.svc.GetByID(c.Request.Context(), id, CurrentUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"task": t})
}

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}

	t, err := h.svc.Create(c.Request.Context(), CurrentUserID(c), task.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "task created", gin.H{"task": t})
}

type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

// Update handles PUT /api/tasks/:id.
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := taskID(c, h.logger)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}

	t, err := h.svc.Update(c.Request.Context(), id, CurrentUserID(c), task.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "task updated", gin.H{"task": t})
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/tasks/:id/status.
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	id, ok := taskID(c, h.logger)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}

	t, err := h.svc.UpdateStatus(c.Request.Context(), id, CurrentUserID(c), req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "status updated", gin.H{"task": t})
}

type priorityRequest struct {
	Priority string `json:"priority"`
}

// UpdatePriority handles PATCH /api/tasks/:id/priority.
func (h *TaskHandler) UpdatePriority(c *gin.Context) {
	id, ok := taskID(c, h.logger)
	if !ok {
		return
	}
	var req priorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}

	t, err := h.svc.UpdatePriority(c.Request.Context(), id, CurrentUserID(c), req.Priority)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "priority updated", gin.H{"task": t})
}

// Delete handles DELETE /api/tasks/:id.
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := taskID(c, h.logger)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, CurrentUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "task deleted", nil)
}

type bulkDeleteRequest struct {
	TaskIDs []int64 `json:"task_ids"`
}

// BulkDelete handles POST /api/tasks/bulk-delete.
func (h *TaskHandler) BulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}

	deleted, err := h.svc.DeleteMany(c.Request.Context(), CurrentUserID(c), req.TaskIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "tasks deleted", gin.H{"deleted_count": deleted})
}

type bulkUpdateRequest struct {
	TaskIDs  []int64 `json:"task_ids"`
	Status   *string `json:"status"`
	Priority *string `json:"priority"`
}

// BulkUpdate handles POST /api/tasks/bulk-update.
func (h *TaskHandler) BulkUpdate(c *gin.Context) {
	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Validation("invalid request body"))
		return
	}

	modified, err := h.svc.BulkUpdate(c.Request.Context(), CurrentUserID(c), req.TaskIDs, task.BulkUpdateInput{
		Status:   req.Status,
		Priority: req.Priority,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "tasks updated", gin.H{"modified_count": modified})
}

// Stats handles GET /api/tasks/stats.
func (h *TaskHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "", gin.H{"stats": stats})
}

func taskID(c *gin.Context, logger *zap.Logger) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		respondError(c, logger, apperr.Validation("invalid task id",
			apperr.FieldError{Field: "id", Message: "must be a positive integer"}))
		return 0, false
	}
	return id, true
}
