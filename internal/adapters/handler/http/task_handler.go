package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/services"
)

type TaskHandler struct {
	svc *services.TaskService
}

func NewTaskHandler(svc *services.TaskService) *TaskHandler {
	return &TaskHandler{
		svc: svc,
	}
}

type streakPolicyRequest struct {
	Enabled      bool  `json:"enabled"`
	MinimumCount int   `json:"minimum_count"`
	SkipWeekends bool  `json:"skip_weekends"`
	SkipDays     []int `json:"skip_days"`
}

type createTaskRequest struct {
	Title  string              `json:"title" binding:"required"`
	Color  string              `json:"color"`
	Icon   string              `json:"icon"`
	Streak streakPolicyRequest `json:"streak"`
}

type updateTaskRequest struct {
	Title  string              `json:"title"`
	Color  string              `json:"color"`
	Icon   string              `json:"icon"`
	Streak streakPolicyRequest `json:"streak"`
}

func (h *TaskHandler) RegisterRoutes(router *gin.RouterGroup) {
	tasks := router.Group("/tasks")
	{
		tasks.POST("", h.Create)
		tasks.GET("", h.List)
		tasks.GET("/:id", h.Get)
		tasks.PUT("/:id", h.Update)
		tasks.POST("/:id/archive", h.Archive)
		tasks.POST("/:id/restore", h.Restore)
		tasks.DELETE("/:id", h.Delete)
	}
}

func policyFromRequest(req streakPolicyRequest) domain.StreakPolicy {
	return domain.StreakPolicy{
		Enabled:      req.Enabled,
		MinimumCount: req.MinimumCount,
		SkipWeekends: req.SkipWeekends,
		SkipDays:     req.SkipDays,
	}
}

func isValidationErr(err error) bool {
	return errors.Is(err, domain.ErrTaskTitleEmpty) ||
		errors.Is(err, domain.ErrTaskTitleTooLong) ||
		errors.Is(err, domain.ErrInvalidColor) ||
		errors.Is(err, domain.ErrInvalidSkipDays) ||
		errors.Is(err, domain.ErrInvalidMinimum) ||
		errors.Is(err, domain.ErrAllDaysSkipped) ||
		errors.Is(err, domain.ErrTaskArchived)
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := services.CreateTaskInput{
		Title:  req.Title,
		Color:  req.Color,
		Icon:   req.Icon,
		Streak: policyFromRequest(req.Streak),
	}

	task, err := h.svc.Create(c.Request.Context(), input)
	if err != nil {
		if isValidationErr(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Update(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := services.UpdateTaskInput{
		ID:     c.Param("id"),
		Title:  req.Title,
		Color:  req.Color,
		Icon:   req.Icon,
		Streak: policyFromRequest(req.Streak),
	}

	task, err := h.svc.Update(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTaskNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		case isValidationErr(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Archive(c *gin.Context) {
	if err := h.svc.Archive(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) Restore(c *gin.Context) {
	if err := h.svc.Restore(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}
