package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/teamsforge/frontquiz-api/internal/handler/dto"
	"github.com/teamsforge/frontquiz-api/internal/handler/helper"
	"github.com/teamsforge/frontquiz-api/internal/middleware"
	"github.com/teamsforge/frontquiz-api/internal/service/assessment"
)

// AssessmentHandler обрабатывает запросы самопроверки
type AssessmentHandler struct {
	manager *assessment.Manager
}

// NewAssessmentHandler создает новый обработчик самопроверки
func NewAssessmentHandler(manager *assessment.Manager) *AssessmentHandler {
	return &AssessmentHandler{manager: manager}
}

func (h *AssessmentHandler) session(c *gin.Context) *assessment.Session {
	return h.manager.Session(c.Request.Context(), middleware.GetUserKey(c))
}

func (h *AssessmentHandler) respond(c *gin.Context, view assessment.View) {
	c.JSON(http.StatusOK, dto.NewAssessmentResponse(view, h.manager.Config().Topics))
}

// GetState возвращает текущее состояние сессии
func (h *AssessmentHandler) GetState(c *gin.Context) {
	h.respond(c, h.session(c).State())
}

// Start запускает новую попытку
func (h *AssessmentHandler) Start(c *gin.Context) {
	s := h.session(c)
	if err := s.Start(c.Request.Context()); err != nil {
		h.handleAssessmentError(c, err)
		return
	}
	h.respond(c, s.State())
}

// SubmitAnswer принимает ответ на текущий вопрос
func (h *AssessmentHandler) SubmitAnswer(c *gin.Context) {
	var req dto.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selected_index is required", "error_type": "validation"})
		return
	}

	s := h.session(c)
	answer, err := s.SubmitAnswer(c.Request.Context(), *req.SelectedIndex)
	if err != nil {
		h.handleAssessmentError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AnswerResponse{
		Answer: answer,
		State:  dto.NewAssessmentResponse(s.State(), h.manager.Config().Topics),
	})
}

// Finish досрочно завершает попытку
func (h *AssessmentHandler) Finish(c *gin.Context) {
	s := h.session(c)
	if err := s.Finish(); err != nil {
		h.handleAssessmentError(c, err)
		return
	}
	h.respond(c, s.State())
}

// OpenReview переключает на экран разбора
func (h *AssessmentHandler) OpenReview(c *gin.Context) {
	s := h.session(c)
	if err := s.NavigateToReview(); err != nil {
		h.handleAssessmentError(c, err)
		return
	}
	h.respond(c, s.State())
}

// OpenScoreboard возвращает на экран результатов
func (h *AssessmentHandler) OpenScoreboard(c *gin.Context) {
	s := h.session(c)
	if err := s.NavigateToScoreboard(); err != nil {
		h.handleAssessmentError(c, err)
		return
	}
	h.respond(c, s.State())
}

// Reset сбрасывает сессию в начальное состояние
func (h *AssessmentHandler) Reset(c *gin.Context) {
	s := h.session(c)
	s.Reset(c.Request.Context())
	h.respond(c, s.State())
}

// GetReport возвращает сводку результатов
func (h *AssessmentHandler) GetReport(c *gin.Context) {
	s := h.session(c)
	if !resultsVisible(s.State().Screen) {
		h.handleAssessmentError(c, fmt.Errorf("%w: report is available after the attempt", assessment.ErrInvalidState))
		return
	}
	c.JSON(http.StatusOK, s.Report())
}

// GetReview возвращает разбор отвеченных вопросов
func (h *AssessmentHandler) GetReview(c *gin.Context) {
	s := h.session(c)
	if !resultsVisible(s.State().Screen) {
		h.handleAssessmentError(c, fmt.Errorf("%w: review is available after the attempt", assessment.ErrInvalidState))
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": s.Review()})
}

// ExportReview выгружает разбор попытки в Excel (.xlsx)
func (h *AssessmentHandler) ExportReview(c *gin.Context) {
	s := h.session(c)
	if !resultsVisible(s.State().Screen) {
		h.handleAssessmentError(c, fmt.Errorf("%w: review is available after the attempt", assessment.ErrInvalidState))
		return
	}
	report := s.Report()
	entries := s.Review()

	f := excelize.NewFile()
	defer f.Close()

	const reviewSheet = "Разбор"
	const summarySheet = "Итоги"
	f.SetSheetName("Sheet1", reviewSheet)

	sw, err := f.NewStreamWriter(reviewSheet)
	if err != nil {
		log.Printf("[AssessmentHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := []interface{}{"№", "Тема", "Вопрос", "Ваш ответ", "Правильный ответ", "Верно", "Пояснение"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[AssessmentHandler] Ошибка записи заголовков: %v", err)
	}
	for i, e := range entries {
		verdict := "Нет"
		if e.IsCorrect {
			verdict = "Да"
		}
		row := []interface{}{
			e.Number,
			string(e.Topic),
			helper.SanitizeForExcel(e.Prompt),
			e.SelectedLabel,
			e.CorrectLabel,
			verdict,
			helper.SanitizeForExcel(e.Rationale),
		}
		if err := sw.SetRow(fmt.Sprintf("A%d", i+2), row); err != nil {
			log.Printf("[AssessmentHandler] Ошибка записи строки %d: %v", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		log.Printf("[AssessmentHandler] Ошибка при Flush: %v", err)
	}

	if _, err := f.NewSheet(summarySheet); err == nil {
		_ = f.SetSheetRow(summarySheet, "A1", &[]interface{}{"Отвечено", report.Attempted})
		_ = f.SetSheetRow(summarySheet, "A2", &[]interface{}{"Верно", report.Correct})
		_ = f.SetSheetRow(summarySheet, "A3", &[]interface{}{"Точность, %", report.Accuracy})
		_ = f.SetSheetRow(summarySheet, "A4", &[]interface{}{"Время", report.ElapsedDisplay})
		for i, t := range report.Topics {
			_ = f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+6), &[]interface{}{string(t.Topic), t.Correct, t.Total, t.Accuracy})
		}
	}

	filename := fmt.Sprintf("assessment-review-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AssessmentHandler] Ошибка записи Excel в response: %v", err)
	}
}

func resultsVisible(screen assessment.Screen) bool {
	return screen == assessment.ScreenScoreboard || screen == assessment.ScreenReview
}

// handleAssessmentError преобразует ошибки сессии в HTTP-ответы
func (h *AssessmentHandler) handleAssessmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, assessment.ErrFetch):
		log.Printf("[AssessmentHandler] Банк вопросов недоступен: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to load questions. Please try again.", "error_type": "pool_unavailable"})
	case errors.Is(err, assessment.ErrEmptyPool):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "error_type": "empty_pool"})
	case errors.Is(err, assessment.ErrInvalidOption):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_option"})
	case errors.Is(err, assessment.ErrStaleAttempt):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "stale_attempt"})
	case errors.Is(err, assessment.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "invalid_state"})
	default:
		log.Printf("[AssessmentHandler] Внутренняя ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
