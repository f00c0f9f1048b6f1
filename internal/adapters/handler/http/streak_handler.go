package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/services"
)

type StreakHandler struct {
	svc *services.StreakService
}

func NewStreakHandler(svc *services.StreakService) *StreakHandler {
	return &StreakHandler{svc: svc}
}

func (h *StreakHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.PUT("/tasks/:id/completions/:date", h.LogCompletion)
	router.GET("/tasks/:id/streak", h.GetStreak)
	router.GET("/tasks/:id/streak/status", h.GetStatus)

	streaks := router.Group("/streaks")
	{
		streaks.GET("", h.List)
		streaks.GET("/at-risk", h.AtRisk)
		streaks.POST("/sweep", h.Sweep)
		streaks.POST("/recalculate", h.Recalculate)
	}
}

type logCompletionRequest struct {
	Count int `json:"count"`
}

// parseDay reads a YYYY-MM-DD value; fallback applies when the value is
// empty (query parameters).
func parseDay(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return domain.DayOf(fallback), nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return day, nil
}

// LogCompletion is the one write path the mobile client uses: it reads
// the prior count for the day and lets the engine pick the completion
// or decrement branch, both atomic with the log write.
func (h *StreakHandler) LogCompletion(c *gin.Context) {
	var req logCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Count < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count cannot be negative"})
		return
	}

	day, err := parseDay(c.Param("date"), time.Time{})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	record, err := h.svc.ApplyCompletionChange(c.Request.Context(), c.Param("id"), day, req.Count)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save completion"})
		return
	}

	if record == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *StreakHandler) GetStreak(c *gin.Context) {
	record, err := h.svc.GetStreakRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrStreakRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no streak recorded for this task"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *StreakHandler) GetStatus(c *gin.Context) {
	day, err := parseDay(c.Query("date"), time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	status, err := h.svc.CheckStreakStatus(c.Request.Context(), c.Param("id"), day)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *StreakHandler) List(c *gin.Context) {
	records, err := h.svc.ListStreakRecords(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"streaks": records})
}

func (h *StreakHandler) AtRisk(c *gin.Context) {
	day, err := parseDay(c.Query("date"), time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	minStreak := 1
	if v := c.Query("min_streak"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_streak must be a positive integer"})
			return
		}
		minStreak = parsed
	}

	atRisk, err := h.svc.AtRiskStreaks(c.Request.Context(), day, minStreak)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"at_risk": atRisk})
}

type maintenanceRequest struct {
	Date string `json:"date"`
}

func (h *StreakHandler) Sweep(c *gin.Context) {
	var req maintenanceRequest
	_ = c.ShouldBindJSON(&req)

	day, err := parseDay(req.Date, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	if err := h.svc.CheckDailyStreaks(c.Request.Context(), day); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *StreakHandler) Recalculate(c *gin.Context) {
	var req maintenanceRequest
	_ = c.ShouldBindJSON(&req)

	day, err := parseDay(req.Date, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	if err := h.svc.RecalculateAllStreaks(c.Request.Context(), day); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recalculation failed"})
		return
	}

	c.Status(http.StatusNoContent)
}
