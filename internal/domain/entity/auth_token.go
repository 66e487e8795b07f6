package entity

import "time"

// LoginTokenLifetime - срок действия одноразового токена входа
const LoginTokenLifetime = time.Hour

// AuthToken - одноразовый токен входа, выданный ботом или виджетом Telegram
type AuthToken struct {
	Token      string    `gorm:"type:uuid;primaryKey" json:"token"`
	TelegramID int64     `gorm:"not null;index" json:"telegram_id"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (AuthToken) TableName() string {
	return "auth_tokens"
}

// IsExpired сообщает, истек ли токен на момент now
func (t *AuthToken) IsExpired(now time.Time) bool {
	return now.Sub(t.CreatedAt) > LoginTokenLifetime
}
