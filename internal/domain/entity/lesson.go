package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// LessonCategory - раздел каталога уроков
type LessonCategory string

const (
	CategoryHTML       LessonCategory = "HTML"
	CategoryCSS        LessonCategory = "CSS"
	CategoryJavaScript LessonCategory = "JavaScript"
	CategoryTypeScript LessonCategory = "TypeScript"
)

// ParseLessonCategory разбирает категорию без учета регистра
func ParseLessonCategory(s string) (LessonCategory, error) {
	for _, c := range []LessonCategory{CategoryHTML, CategoryCSS, CategoryJavaScript, CategoryTypeScript} {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown lesson category %q", s)
}

// Типы блоков урока
const (
	BlockTheory    = "theory"
	BlockQnA       = "qna"
	BlockPractice  = "practice"
	BlockExample   = "example"
	BlockResources = "resources"
	BlockQuestions = "questions"
)

// QnAItem - пара вопрос-ответ
type QnAItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ResourceLink - ссылка на дополнительный материал
type ResourceLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// LessonBlock - блок содержимого урока. Набор заполненных полей зависит от Type.
type LessonBlock struct {
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Content     string         `json:"content,omitempty"`
	Items       []QnAItem      `json:"items,omitempty"`
	Description []string       `json:"description,omitempty"`
	ShowCode    bool           `json:"showCode,omitempty"`
	ShowExample bool           `json:"showExample,omitempty"`
	Code        string         `json:"code,omitempty"`
	CodeType    string         `json:"codeType,omitempty"`
	Explanation string         `json:"explanation,omitempty"`
	Links       []ResourceLink `json:"links,omitempty"`
	Questions   []string       `json:"questions,omitempty"`
}

// Validate проверяет, что тип блока известен
func (b LessonBlock) Validate() error {
	switch b.Type {
	case BlockTheory, BlockQnA, BlockPractice, BlockExample, BlockResources, BlockQuestions:
		return nil
	}
	return fmt.Errorf("unknown lesson block type %q", b.Type)
}

// LessonBlocks - JSONB-массив блоков урока
type LessonBlocks []LessonBlock

// Scan реализует интерфейс sql.Scanner для LessonBlocks
func (b *LessonBlocks) Scan(value interface{}) error {
	if value == nil {
		*b = LessonBlocks{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal lesson blocks: expected []byte or string")
	}
	if len(bytes) == 0 {
		*b = LessonBlocks{}
		return nil
	}
	return json.Unmarshal(bytes, b)
}

// Value реализует интерфейс driver.Valuer для LessonBlocks
func (b LessonBlocks) Value() (driver.Value, error) {
	if len(b) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(b)
}

// Lesson - урок каталога
type Lesson struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Category   LessonCategory `gorm:"size:32;not null;index" json:"category"`
	Title      string         `gorm:"size:255;not null" json:"title"`
	Motivation string         `gorm:"type:text;not null;default:''" json:"motivation"`
	Blocks     LessonBlocks   `gorm:"type:jsonb;not null" json:"blocks"`
	CreatedAt  time.Time      `json:"-"`
	UpdatedAt  time.Time      `json:"-"`
}

// TableName определяет имя таблицы для GORM
func (Lesson) TableName() string {
	return "lessons"
}

// ValidateBlocks проверяет все блоки урока
func (l *Lesson) ValidateBlocks() error {
	for i, b := range l.Blocks {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("lesson %d block %d: %w", l.ID, i, err)
		}
	}
	return nil
}

// UserProgress - отметка о прохождении урока пользователем
type UserProgress struct {
	ID         uint           `gorm:"primaryKey" json:"-"`
	TelegramID int64          `gorm:"not null;uniqueIndex:idx_user_progress_user_lesson" json:"telegram_id"`
	LessonID   uint           `gorm:"not null;uniqueIndex:idx_user_progress_user_lesson" json:"lesson_id"`
	Category   LessonCategory `gorm:"size:32;not null" json:"category"`
	Completed  bool           `gorm:"not null;default:false" json:"completed"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (UserProgress) TableName() string {
	return "user_progress"
}
