package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
	"github.com/teamsforge/frontquiz-api/internal/domain/repository"
	apperrors "github.com/teamsforge/frontquiz-api/internal/pkg/errors"
)

// WidgetAuthMaxAge - максимальный возраст auth_date в данных виджета Telegram
const WidgetAuthMaxAge = 24 * time.Hour

// TokenIssuer выпускает токен доступа после входа
type TokenIssuer interface {
	GenerateToken(telegramID int64) (string, error)
}

// LoginResult - результат обмена одноразового токена на токен доступа
type LoginResult struct {
	TelegramID  int64  `json:"telegram_id"`
	AccessToken string `json:"access_token"`
}

// AuthService связывает вход через Telegram с веб-приложением
type AuthService struct {
	tokenRepo repository.AuthTokenRepository
	issuer    TokenIssuer
	botToken  string
	now       func() time.Time
}

// NewAuthService создает сервис аутентификации
func NewAuthService(tokenRepo repository.AuthTokenRepository, issuer TokenIssuer, botToken string) (*AuthService, error) {
	if tokenRepo == nil {
		return nil, errors.New("auth token repository is required")
	}
	if issuer == nil {
		return nil, errors.New("token issuer is required")
	}
	return &AuthService{
		tokenRepo: tokenRepo,
		issuer:    issuer,
		botToken:  botToken,
		now:       time.Now,
	}, nil
}

// IssueLoginToken создает одноразовый токен входа для пользователя Telegram
func (s *AuthService) IssueLoginToken(ctx context.Context, telegramID int64) (string, error) {
	if telegramID == 0 {
		return "", fmt.Errorf("%w: telegram id is required", apperrors.ErrValidation)
	}

	token := &entity.AuthToken{
		Token:      uuid.NewString(),
		TelegramID: telegramID,
		CreatedAt:  s.now(),
	}
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		log.Printf("[AuthService] Ошибка сохранения токена входа для telegram_id=%d: %v", telegramID, err)
		return "", fmt.Errorf("failed to store login token: %w", err)
	}

	log.Printf("[AuthService] Выдан токен входа для telegram_id=%d", telegramID)
	return token.Token, nil
}

// PeekToken проверяет токен входа, не расходуя его
func (s *AuthService) PeekToken(ctx context.Context, token string) (int64, error) {
	if _, err := uuid.Parse(token); err != nil {
		return 0, apperrors.ErrUnauthorized
	}

	stored, err := s.tokenRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, apperrors.ErrUnauthorized
		}
		return 0, err
	}
	if stored.IsExpired(s.now()) {
		return 0, apperrors.ErrExpiredToken
	}
	return stored.TelegramID, nil
}

// RedeemToken расходует токен входа и выдает токен доступа
func (s *AuthService) RedeemToken(ctx context.Context, token string) (*LoginResult, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, apperrors.ErrUnauthorized
	}

	stored, err := s.tokenRepo.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[AuthService] Попытка входа с неизвестным или использованным токеном")
			return nil, apperrors.ErrUnauthorized
		}
		return nil, err
	}
	if stored.IsExpired(s.now()) {
		log.Printf("[AuthService] Токен входа для telegram_id=%d истек", stored.TelegramID)
		return nil, apperrors.ErrExpiredToken
	}

	accessToken, err := s.issuer.GenerateToken(stored.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	log.Printf("[AuthService] Пользователь telegram_id=%d вошел в приложение", stored.TelegramID)
	return &LoginResult{TelegramID: stored.TelegramID, AccessToken: accessToken}, nil
}

// VerifyTelegramWidget проверяет подпись данных Telegram Login Widget и возвращает telegram id
func (s *AuthService) VerifyTelegramWidget(fields map[string]string) (int64, error) {
	if s.botToken == "" {
		return 0, ErrFeatureDisabled
	}

	hash := fields["hash"]
	if hash == "" {
		return 0, fmt.Errorf("%w: hash is missing", apperrors.ErrValidation)
	}

	expected := WidgetSignature(s.botToken, fields)
	if !hmac.Equal([]byte(strings.ToLower(hash)), []byte(expected)) {
		log.Printf("[AuthService] Неверная подпись данных виджета Telegram")
		return 0, apperrors.ErrUnauthorized
	}

	authDate, err := strconv.ParseInt(fields["auth_date"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid auth_date", apperrors.ErrValidation)
	}
	if s.now().Sub(time.Unix(authDate, 0)) > WidgetAuthMaxAge {
		return 0, apperrors.ErrExpiredToken
	}

	telegramID, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil || telegramID == 0 {
		return 0, fmt.Errorf("%w: invalid id", apperrors.ErrValidation)
	}
	return telegramID, nil
}

// WidgetSignature вычисляет подпись данных виджета: HMAC-SHA256 от отсортированных
// строк key=value, ключ - SHA256 от токена бота
func WidgetSignature(botToken string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

// PurgeExpired удаляет токены входа старше срока действия
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := s.tokenRepo.DeleteOlderThan(ctx, s.now().Add(-entity.LoginTokenLifetime))
	if err != nil {
		log.Printf("[AuthService] Ошибка очистки истекших токенов: %v", err)
		return 0, err
	}
	if removed > 0 {
		log.Printf("[AuthService] Удалено истекших токенов входа: %d", removed)
	}
	return removed, nil
}

// RunPurge периодически очищает истекшие токены до отмены контекста
func (s *AuthService) RunPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[AuthService] Очистка токенов остановлена")
			return
		case <-ticker.C:
			_, _ = s.PurgeExpired(ctx)
		}
	}
}
