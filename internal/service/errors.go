package service

import "errors"

// Ошибки сервисного слоя, которые обработчики отображают в стабильный error_type
var (
	// ErrFeatureDisabled - функция выключена конфигурацией (например, не задан токен бота)
	ErrFeatureDisabled = errors.New("feature_disabled")
)
