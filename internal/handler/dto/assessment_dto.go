package dto

import (
	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
	"github.com/teamsforge/frontquiz-api/internal/handler/helper"
	"github.com/teamsforge/frontquiz-api/internal/service/assessment"
)

// QuestionResponse - текущий вопрос без правильного ответа
type QuestionResponse struct {
	ID      uint                    `json:"id"`
	Topic   entity.Topic            `json:"topic"`
	Text    string                  `json:"question"`
	Options []helper.QuestionOption `json:"options"`
}

// TopicScoreResponse - счетчик по теме
type TopicScoreResponse struct {
	Topic   entity.Topic `json:"topic"`
	Correct int          `json:"correct"`
	Total   int          `json:"total"`
}

// AssessmentResponse - состояние самопроверки для клиента
type AssessmentResponse struct {
	Screen               assessment.Screen    `json:"screen"`
	TimeRemaining        int                  `json:"time_remaining"`
	TimeRemainingDisplay string               `json:"time_remaining_display"`
	CurrentQuestionIndex int                  `json:"current_question_index"`
	TotalQuestions       int                  `json:"total_questions"`
	AnsweredCount        int                  `json:"answered_count"`
	Progress             float64              `json:"progress"`
	CurrentQuestion      *QuestionResponse    `json:"current_question,omitempty"`
	Scores               []TopicScoreResponse `json:"scores"`
}

// NewAssessmentResponse строит ответ из снимка состояния сессии
func NewAssessmentResponse(view assessment.View, topics []entity.Topic) AssessmentResponse {
	resp := AssessmentResponse{
		Screen:               view.Screen,
		TimeRemaining:        view.RemainingSeconds,
		TimeRemainingDisplay: helper.FormatClock(view.RemainingSeconds),
		CurrentQuestionIndex: view.CurrentIndex,
		TotalQuestions:       view.TotalQuestions,
		AnsweredCount:        len(view.Answers),
		Scores:               make([]TopicScoreResponse, 0, len(topics)),
	}
	if view.TotalQuestions > 0 {
		resp.Progress = float64(len(view.Answers)) / float64(view.TotalQuestions) * 100
	}

	if view.Screen == assessment.ScreenAssessment {
		if q, ok := view.CurrentQuestion(); ok {
			resp.CurrentQuestion = &QuestionResponse{
				ID:      q.ID,
				Topic:   q.Topic,
				Text:    q.Prompt,
				Options: helper.ConvertOptionsToObjects(q.Choices),
			}
		}
	}

	for _, t := range topics {
		ts := view.Score[t]
		resp.Scores = append(resp.Scores, TopicScoreResponse{Topic: t, Correct: ts.Correct, Total: ts.Total})
	}
	return resp
}

// SubmitAnswerRequest - тело запроса ответа на вопрос
type SubmitAnswerRequest struct {
	SelectedIndex *int `json:"selected_index" binding:"required"`
}

// AnswerResponse - результат ответа и новое состояние
type AnswerResponse struct {
	Answer entity.UserAnswer  `json:"answer"`
	State  AssessmentResponse `json:"state"`
}

// AssessmentEvent - полезная нагрузка WebSocket-события об изменении сессии
type AssessmentEvent struct {
	Action string             `json:"action"`
	State  AssessmentResponse `json:"state"`
}
