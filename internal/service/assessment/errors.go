package assessment

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch - банк вопросов недоступен или вернул некорректные данные
	ErrFetch = errors.New("question pool unavailable")
	// ErrEmptyPool - выборка не содержит ни одного вопроса
	ErrEmptyPool = errors.New("question pool is empty")
	// ErrInvalidState - действие недопустимо на текущем экране
	ErrInvalidState = errors.New("action not allowed in current state")
	// ErrInvalidOption - индекс варианта вне диапазона
	ErrInvalidOption = errors.New("selected option out of range")
	// ErrStaleAttempt - результат загрузки относится к уже отмененной попытке
	ErrStaleAttempt = errors.New("assessment attempt superseded")
)

// FetchError описывает сбой загрузки банка вопросов
type FetchError struct {
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch questions: %s: %v", e.Reason, e.Err)
	}
	return "fetch questions: " + e.Reason
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is позволяет сравнивать через errors.Is(err, ErrFetch)
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

func invalidState(action string, screen Screen) error {
	return fmt.Errorf("%w: %s on %s", ErrInvalidState, action, screen)
}
