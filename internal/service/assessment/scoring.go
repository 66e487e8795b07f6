package assessment

import (
	"fmt"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
)

// TopicReport - итог по одной теме
type TopicReport struct {
	Topic    entity.Topic `json:"topic"`
	Correct  int          `json:"correct"`
	Total    int          `json:"total"`
	Accuracy float64      `json:"accuracy"`
}

// Report - сводка результатов попытки для экрана результатов
type Report struct {
	Attempted      int           `json:"attempted"`
	Correct        int           `json:"correct"`
	Accuracy       float64       `json:"accuracy"`
	ElapsedSeconds int           `json:"elapsedSeconds"`
	ElapsedDisplay string        `json:"elapsedDisplay"`
	Topics         []TopicReport `json:"topics"`
}

// ReviewOption - вариант ответа с буквенной меткой
type ReviewOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// ReviewEntry - разбор одного отвеченного вопроса
type ReviewEntry struct {
	Number        int            `json:"number"`
	QuestionID    uint           `json:"questionId"`
	Topic         entity.Topic   `json:"topic"`
	Prompt        string         `json:"question"`
	Options       []ReviewOption `json:"options"`
	SelectedLabel string         `json:"selectedLabel"`
	CorrectLabel  string         `json:"correctLabel"`
	IsCorrect     bool           `json:"isCorrect"`
	ShowCorrect   bool           `json:"showCorrectAnswer"`
	Rationale     string         `json:"explanation"`
}

// percent возвращает part/whole*100 или 0 при пустом знаменателе
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// BuildReport считает точность по ответам и счетчикам тем
func BuildReport(answers []entity.UserAnswer, score entity.CompetencyScore, topics []entity.Topic) Report {
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}

	elapsed := 0
	if len(answers) > 0 {
		elapsed = answers[len(answers)-1].ElapsedSeconds
	}

	report := Report{
		Attempted:      len(answers),
		Correct:        correct,
		Accuracy:       percent(correct, len(answers)),
		ElapsedSeconds: elapsed,
		ElapsedDisplay: fmt.Sprintf("%02d:%02d", elapsed/60, elapsed%60),
		Topics:         make([]TopicReport, 0, len(topics)),
	}
	for _, topic := range topics {
		ts := score[topic]
		report.Topics = append(report.Topics, TopicReport{
			Topic:    topic,
			Correct:  ts.Correct,
			Total:    ts.Total,
			Accuracy: percent(ts.Correct, ts.Total),
		})
	}
	return report
}

// BuildReview возвращает разбор отвеченных вопросов в порядке ответов
func BuildReview(questions []entity.Question, answers []entity.UserAnswer) []ReviewEntry {
	byID := make(map[uint]entity.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	entries := make([]ReviewEntry, 0, len(answers))
	for i, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			continue
		}
		options := make([]ReviewOption, len(q.Choices))
		for idx, text := range q.Choices {
			options[idx] = ReviewOption{Label: entity.OptionLabel(idx), Text: text}
		}
		entries = append(entries, ReviewEntry{
			Number:        i + 1,
			QuestionID:    q.ID,
			Topic:         q.Topic,
			Prompt:        q.Prompt,
			Options:       options,
			SelectedLabel: entity.OptionLabel(a.SelectedIndex),
			CorrectLabel:  entity.OptionLabel(q.CorrectIndex),
			IsCorrect:     a.IsCorrect,
			ShowCorrect:   !a.IsCorrect,
			Rationale:     q.Rationale,
		})
	}
	return entries
}
