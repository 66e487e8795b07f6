// Package seed читает файлы наполнения банка вопросов.
package seed

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
)

// QuizFile - корень YAML-файла банка вопросов
type QuizFile struct {
	Quiz map[string][]QuizItem `yaml:"quiz"`
}

// QuizItem - вопрос в файле наполнения
type QuizItem struct {
	ID          int      `yaml:"id"`
	Question    string   `yaml:"question"`
	Options     []string `yaml:"options"`
	Correct     int      `yaml:"correct"`
	Explanation string   `yaml:"explanation"`
}

// ParseQuiz разбирает YAML и возвращает вопросы, готовые к upsert.
// Все ошибки валидации собираются в одну, чтобы файл можно было исправить за один проход.
func ParseQuiz(r io.Reader) ([]entity.Question, error) {
	var file QuizFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse quiz yaml: %w", err)
	}
	if len(file.Quiz) == 0 {
		return nil, fmt.Errorf("quiz yaml: section 'quiz' is empty")
	}

	topics := make([]string, 0, len(file.Quiz))
	for t := range file.Quiz {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	var (
		questions []entity.Question
		problems  []string
	)
	for _, name := range topics {
		topic := entity.Topic(strings.ToLower(name))
		if !topic.IsKnown() {
			problems = append(problems, fmt.Sprintf("unknown topic %q", name))
			continue
		}

		seen := make(map[int]bool)
		for i, item := range file.Quiz[name] {
			where := fmt.Sprintf("%s[%d] (id=%d)", topic, i, item.ID)
			if err := validateItem(item); err != nil {
				problems = append(problems, where+": "+err.Error())
				continue
			}
			if seen[item.ID] {
				problems = append(problems, where+": duplicate id")
				continue
			}
			seen[item.ID] = true

			questions = append(questions, entity.Question{
				Topic:        topic,
				SequenceID:   item.ID,
				Prompt:       strings.TrimSpace(item.Question),
				Choices:      entity.StringArray(item.Options),
				CorrectIndex: item.Correct,
				Rationale:    strings.TrimSpace(item.Explanation),
			})
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("quiz yaml has %d problem(s):\n  %s", len(problems), strings.Join(problems, "\n  "))
	}
	return questions, nil
}

func validateItem(item QuizItem) error {
	switch {
	case item.ID <= 0:
		return fmt.Errorf("id must be positive")
	case strings.TrimSpace(item.Question) == "":
		return fmt.Errorf("question is empty")
	case len(item.Options) < 2 || len(item.Options) > entity.MaxQuestionOptions:
		return fmt.Errorf("expected 2..%d options, got %d", entity.MaxQuestionOptions, len(item.Options))
	case item.Correct < 0 || item.Correct >= len(item.Options):
		return fmt.Errorf("correct index %d out of range", item.Correct)
	}
	for i, o := range item.Options {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("option %d is empty", i)
		}
	}
	return nil
}

// CountByTopic считает вопросы по темам, для отчета после загрузки
func CountByTopic(questions []entity.Question) map[entity.Topic]int {
	counts := make(map[entity.Topic]int)
	for _, q := range questions {
		counts[q.Topic]++
	}
	return counts
}
