package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
	"github.com/teamsforge/frontquiz-api/internal/handler/dto"
	"github.com/teamsforge/frontquiz-api/internal/middleware"
	"github.com/teamsforge/frontquiz-api/internal/service/assessment"
)

const testSessionHeader = "6a1f3c9e-2b7d-4c8e-9f10-3d5e7a9b1c2d"

// poolStub отдает фиксированный банк вопросов или ошибку
type poolStub struct {
	pool assessment.Pool
	err  error
}

func (p poolStub) LoadPool(context.Context) (assessment.Pool, error) {
	return p.pool, p.err
}

func stubPool(perTopic int) assessment.Pool {
	pool := make(assessment.Pool)
	id := uint(1)
	for _, topic := range entity.DefaultTopics() {
		for i := 0; i < perTopic; i++ {
			pool[topic] = append(pool[topic], entity.Question{
				ID:           id,
				Topic:        topic,
				Prompt:       fmt.Sprintf("%s #%d", topic, i),
				Choices:      entity.StringArray{"A", "B", "C", "D"},
				CorrectIndex: 1,
				Rationale:    "=SUM(A1)",
			})
			id++
		}
	}
	return pool
}

func newAssessmentRouter(t *testing.T, source assessment.PoolSource) (*gin.Engine, *assessment.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := assessment.DefaultConfig()
	cfg.TickInterval = time.Hour
	manager := assessment.NewManager(cfg, assessment.Dependencies{
		Loader:  source,
		Sampler: assessment.NewSampler(rand.New(rand.NewSource(1))),
	})
	t.Cleanup(manager.Shutdown)

	h := NewAssessmentHandler(manager)
	r := gin.New()
	g := r.Group("/api/assessment", func(c *gin.Context) {
		key, _ := middleware.AnonymousKey(c.GetHeader(middleware.SessionIDHeader))
		c.Set(middleware.ContextUserKey, key)
	})
	g.GET("", h.GetState)
	g.POST("/start", h.Start)
	g.POST("/answer", h.SubmitAnswer)
	g.POST("/finish", h.Finish)
	g.POST("/review", h.OpenReview)
	g.POST("/scoreboard", h.OpenScoreboard)
	g.POST("/reset", h.Reset)
	g.GET("/report", h.GetReport)
	g.GET("/review", h.GetReview)
	g.GET("/review/export", h.ExportReview)
	return r, manager
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.SessionIDHeader, testSessionHeader)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) dto.AssessmentResponse {
	t.Helper()
	var resp dto.AssessmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAssessmentHandler_InitialState(t *testing.T) {
	r, _ := newAssessmentRouter(t, poolStub{pool: stubPool(7)})

	w := doRequest(r, http.MethodGet, "/api/assessment", nil)

	require.Equal(t, http.StatusOK, w.Code)
	state := decodeState(t, w)
	assert.Equal(t, assessment.ScreenWelcome, state.Screen)
	assert.Equal(t, 900, state.TimeRemaining)
	assert.Equal(t, "15:00", state.TimeRemainingDisplay)
	assert.Nil(t, state.CurrentQuestion)
	assert.Len(t, state.Scores, 3)
}

func TestAssessmentHandler_FullAttempt(t *testing.T) {
	// Arrange
	r, _ := newAssessmentRouter(t, poolStub{pool: stubPool(7)})

	// Act: старт
	w := doRequest(r, http.MethodPost, "/api/assessment/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeState(t, w)

	// Assert
	assert.Equal(t, assessment.ScreenAssessment, state.Screen)
	assert.Equal(t, 21, state.TotalQuestions)
	require.NotNil(t, state.CurrentQuestion)
	assert.Equal(t, "B", state.CurrentQuestion.Options[1].Label)
	assert.NotContains(t, w.Body.String(), "correctAnswerIndex", "Правильный ответ не отдается во время попытки")

	// Act: отвечаем на все вопросы правильно
	for i := 0; i < 21; i++ {
		w = doRequest(r, http.MethodPost, "/api/assessment/answer", gin.H{"selected_index": 1})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// Assert: попытка завершена
	var answer dto.AnswerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	assert.True(t, answer.Answer.IsCorrect)
	assert.Equal(t, assessment.ScreenScoreboard, answer.State.Screen)

	w = doRequest(r, http.MethodGet, "/api/assessment/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report assessment.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 21, report.Attempted)
	assert.InDelta(t, 100.0, report.Accuracy, 0.001)

	w = doRequest(r, http.MethodPost, "/api/assessment/review", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, assessment.ScreenReview, decodeState(t, w).Screen)

	w = doRequest(r, http.MethodGet, "/api/assessment/review/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx - zip-архив")

	w = doRequest(r, http.MethodPost, "/api/assessment/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, assessment.ScreenWelcome, decodeState(t, w).Screen)
}

func TestAssessmentHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		source     poolStub
		prepare    []string
		method     string
		path       string
		body       interface{}
		wantStatus int
		wantType   string
	}{
		{
			name:       "банк недоступен",
			source:     poolStub{err: &assessment.FetchError{Reason: "db", Err: errors.New("down")}},
			method:     http.MethodPost,
			path:       "/api/assessment/start",
			wantStatus: http.StatusServiceUnavailable,
			wantType:   "pool_unavailable",
		},
		{
			name:       "пустой банк",
			source:     poolStub{pool: assessment.Pool{}},
			method:     http.MethodPost,
			path:       "/api/assessment/start",
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "empty_pool",
		},
		{
			name:       "ответ до старта",
			source:     poolStub{pool: stubPool(7)},
			method:     http.MethodPost,
			path:       "/api/assessment/answer",
			body:       gin.H{"selected_index": 0},
			wantStatus: http.StatusConflict,
			wantType:   "invalid_state",
		},
		{
			name:       "вариант вне диапазона",
			source:     poolStub{pool: stubPool(7)},
			prepare:    []string{"/api/assessment/start"},
			method:     http.MethodPost,
			path:       "/api/assessment/answer",
			body:       gin.H{"selected_index": 9},
			wantStatus: http.StatusBadRequest,
			wantType:   "invalid_option",
		},
		{
			name:       "нет selected_index",
			source:     poolStub{pool: stubPool(7)},
			prepare:    []string{"/api/assessment/start"},
			method:     http.MethodPost,
			path:       "/api/assessment/answer",
			body:       gin.H{},
			wantStatus: http.StatusBadRequest,
			wantType:   "validation",
		},
		{
			name:       "отчет во время попытки",
			source:     poolStub{pool: stubPool(7)},
			prepare:    []string{"/api/assessment/start"},
			method:     http.MethodGet,
			path:       "/api/assessment/report",
			wantStatus: http.StatusConflict,
			wantType:   "invalid_state",
		},
		{
			name:       "разбор с экрана приветствия",
			source:     poolStub{pool: stubPool(7)},
			method:     http.MethodPost,
			path:       "/api/assessment/review",
			wantStatus: http.StatusConflict,
			wantType:   "invalid_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			r, _ := newAssessmentRouter(t, tt.source)
			for _, p := range tt.prepare {
				require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, p, nil).Code)
			}

			// Act
			w := doRequest(r, tt.method, tt.path, tt.body)

			// Assert
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantType)
		})
	}
}

func TestAssessmentHandler_FinishEarly(t *testing.T) {
	r, _ := newAssessmentRouter(t, poolStub{pool: stubPool(2)})
	require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/assessment/start", nil).Code)
	require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/assessment/answer", gin.H{"selected_index": 0}).Code)

	w := doRequest(r, http.MethodPost, "/api/assessment/finish", nil)

	require.Equal(t, http.StatusOK, w.Code)
	state := decodeState(t, w)
	assert.Equal(t, assessment.ScreenScoreboard, state.Screen)
	assert.Equal(t, 1, state.AnsweredCount)

	w = doRequest(r, http.MethodGet, "/api/assessment/review", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"showCorrectAnswer":true`)
}
