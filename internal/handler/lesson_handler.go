package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamsforge/frontquiz-api/internal/handler/dto"
	"github.com/teamsforge/frontquiz-api/internal/middleware"
	apperrors "github.com/teamsforge/frontquiz-api/internal/pkg/errors"
	"github.com/teamsforge/frontquiz-api/internal/service"
)

// LessonIDKey - ключ контекста для ID урока
const LessonIDKey = "lessonID"

// LessonHandler обрабатывает запросы каталога уроков
type LessonHandler struct {
	lessonService *service.LessonService
}

// NewLessonHandler создает новый обработчик уроков
func NewLessonHandler(lessonService *service.LessonService) *LessonHandler {
	return &LessonHandler{lessonService: lessonService}
}

// ListLessons возвращает превью уроков с фильтрами category и status
func (h *LessonHandler) ListLessons(c *gin.Context) {
	previews, err := h.lessonService.ListLessons(
		c.Request.Context(),
		c.Query("category"),
		c.DefaultQuery("status", service.LessonStatusAll),
		middleware.GetTelegramID(c),
	)
	if err != nil {
		h.handleLessonError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lessons": previews, "total": len(previews)})
}

// GetLesson возвращает урок целиком
func (h *LessonHandler) GetLesson(c *gin.Context) {
	lessonID := middleware.GetUintParam(c, LessonIDKey)

	lesson, err := h.lessonService.GetLesson(c.Request.Context(), lessonID, middleware.GetTelegramID(c))
	if err != nil {
		h.handleLessonError(c, err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}

// UpdateProgress отмечает урок пройденным или непройденным
func (h *LessonHandler) UpdateProgress(c *gin.Context) {
	var req dto.UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "completed is required", "error_type": "validation_error"})
		return
	}

	lessonID := middleware.GetUintParam(c, LessonIDKey)
	err := h.lessonService.SetCompleted(c.Request.Context(), middleware.GetTelegramID(c), lessonID, *req.Completed)
	if err != nil {
		h.handleLessonError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "lesson_id": lessonID, "completed": *req.Completed})
}

func (h *LessonHandler) handleLessonError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Lesson not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "unauthorized"})
	default:
		log.Printf("[LessonHandler] Внутренняя ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
