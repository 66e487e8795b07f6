package helper

import (
	"fmt"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
)

// QuestionOption - вариант ответа для фронтенда
type QuestionOption struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// ConvertOptionsToObjects преобразует массив строк в массив объектов с id, буквой и текстом.
// ID совпадает с индексом, который клиент передает в ответе.
func ConvertOptionsToObjects(options entity.StringArray) []QuestionOption {
	converted := make([]QuestionOption, len(options))
	for i, opt := range options {
		if opt == "" {
			opt = "(пустой вариант)"
		}
		converted[i] = QuestionOption{ID: i, Label: entity.OptionLabel(i), Text: opt}
	}
	return converted
}

// FormatClock форматирует секунды как MM:SS
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// SanitizeForExcel экранирует данные для защиты от formula injection в Excel
func SanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}
