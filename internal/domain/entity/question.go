package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxQuestionOptions - максимальное число вариантов ответа (метки A-D)
const MaxQuestionOptions = 4

// Topic - технологическая тема вопроса
type Topic string

const (
	TopicHTML       Topic = "html"
	TopicCSS        Topic = "css"
	TopicJavaScript Topic = "javascript"
)

// DefaultTopics возвращает фиксированный порядок тем для выборки
func DefaultTopics() []Topic {
	return []Topic{TopicHTML, TopicCSS, TopicJavaScript}
}

// IsKnown сообщает, входит ли тема в фиксированный набор
func (t Topic) IsKnown() bool {
	switch t {
	case TopicHTML, TopicCSS, TopicJavaScript:
		return true
	}
	return false
}

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte or string")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

// Question - вопрос банка самопроверки. После загрузки не изменяется.
type Question struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Topic        Topic       `gorm:"size:32;not null;uniqueIndex:idx_quiz_questions_topic_seq" json:"topic"`
	SequenceID   int         `gorm:"not null;uniqueIndex:idx_quiz_questions_topic_seq" json:"-"`
	Prompt       string      `gorm:"type:text;not null" json:"question"`
	Choices      StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectIndex int         `gorm:"not null" json:"correctAnswerIndex"`
	Rationale    string      `gorm:"type:text;not null;default:''" json:"explanation"`
	CreatedAt    time.Time   `json:"-"`
	UpdatedAt    time.Time   `json:"-"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "quiz_questions"
}

// IsCorrect проверяет, является ли выбранный вариант правильным
func (q *Question) IsCorrect(selectedIndex int) bool {
	return selectedIndex == q.CorrectIndex
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Choices)
}

// IsValidOption проверяет, является ли выбранный вариант допустимым
func (q *Question) IsValidOption(selectedIndex int) bool {
	return selectedIndex >= 0 && selectedIndex < len(q.Choices)
}

// Validate проверяет обязательные поля вопроса, полученного из банка
func (q *Question) Validate() error {
	if q.ID == 0 {
		return errors.New("question id is missing")
	}
	if !q.Topic.IsKnown() {
		return fmt.Errorf("question %d: unknown topic %q", q.ID, q.Topic)
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("question %d: prompt is empty", q.ID)
	}
	if len(q.Choices) < 2 || len(q.Choices) > MaxQuestionOptions {
		return fmt.Errorf("question %d: expected 2..%d options, got %d", q.ID, MaxQuestionOptions, len(q.Choices))
	}
	if !q.IsValidOption(q.CorrectIndex) {
		return fmt.Errorf("question %d: correct index %d out of range", q.ID, q.CorrectIndex)
	}
	return nil
}

// OptionLabel возвращает буквенную метку варианта (0 -> "A")
func OptionLabel(index int) string {
	if index < 0 || index >= MaxQuestionOptions {
		return ""
	}
	return string(rune('A' + index))
}
