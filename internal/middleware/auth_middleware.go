package middleware

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/teamsforge/frontquiz-api/pkg/auth"
)

// Ключи контекста gin и заголовки
const (
	ContextTelegramID = "telegram_id"
	ContextUserKey    = "user_key"
	SessionIDHeader   = "X-Session-ID"
)

// TokenParser проверяет токен доступа
type TokenParser interface {
	ParseToken(tokenString string) (*auth.JWTCustomClaims, error)
}

// AuthMiddleware обеспечивает аутентификацию по токену, выданному после входа через Telegram
type AuthMiddleware struct {
	tokens TokenParser
}

// NewAuthMiddleware создает новый middleware аутентификации
func NewAuthMiddleware(tokens TokenParser) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth пропускает только запросы с действующим токеном доступа
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, errType := bearerToken(c)
		if errType != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": errType})
			return
		}

		claims, err := m.tokens.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
			return
		}

		setTelegramUser(c, claims.TelegramID)
		c.Next()
	}
}

// OptionalAuth определяет пользователя, если передан токен, и иначе использует
// анонимный идентификатор сессии из заголовка X-Session-ID
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, errType := bearerToken(c); errType == "" {
			claims, err := m.tokens.ParseToken(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
				return
			}
			setTelegramUser(c, claims.TelegramID)
			c.Next()
			return
		}

		sessionID := c.GetHeader(SessionIDHeader)
		if sessionID == "" {
			sessionID = c.Query("session_id")
		}
		key, ok := AnonymousKey(sessionID)
		if !ok {
			log.Printf("[AuthMiddleware] Запрос без токена и без корректного %s", SessionIDHeader)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token or X-Session-ID header is required", "error_type": "identity_missing"})
			return
		}
		c.Set(ContextUserKey, key)
		c.Next()
	}
}

// IdentifyIfPresent определяет пользователя по действующему токену и пропускает остальные запросы
// без ключа пользователя. Используется для публичных маршрутов с персонализацией.
func (m *AuthMiddleware) IdentifyIfPresent() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, errType := bearerToken(c); errType == "" {
			if claims, err := m.tokens.ParseToken(token); err == nil {
				setTelegramUser(c, claims.TelegramID)
			}
		}
		c.Next()
	}
}

// TelegramKey строит ключ пользователя для авторизованного пользователя
func TelegramKey(telegramID int64) string {
	return "tg:" + strconv.FormatInt(telegramID, 10)
}

// AnonymousKey строит ключ пользователя по анонимному идентификатору сессии
func AnonymousKey(sessionID string) (string, bool) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return "", false
	}
	return "anon:" + id.String(), true
}

// GetTelegramID возвращает telegram id из контекста или 0 для анонимного запроса
func GetTelegramID(c *gin.Context) int64 {
	if v, ok := c.Get(ContextTelegramID); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// GetUserKey возвращает ключ пользователя, установленный RequireAuth или OptionalAuth
func GetUserKey(c *gin.Context) string {
	return c.GetString(ContextUserKey)
}

func setTelegramUser(c *gin.Context, telegramID int64) {
	c.Set(ContextTelegramID, telegramID)
	c.Set(ContextUserKey, TelegramKey(telegramID))
}

// bearerToken возвращает токен из заголовка Authorization и тип ошибки, если его нет
func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "token_missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "token_format"
	}
	return parts[1], ""
}
