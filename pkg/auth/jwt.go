package auth

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	issuer         = "frontquiz-api"
	usageAccess    = "access"
	usageWebSocket = "websocket_auth"
)

var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token is expired")
	ErrTokenSignature = errors.New("signature is invalid")
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenUsage     = errors.New("token usage mismatch")
)

// JWTCustomClaims содержит пользовательские поля для токена
type JWTCustomClaims struct {
	TelegramID int64  `json:"telegram_id"`
	Usage      string `json:"usage"`
	jwt.RegisteredClaims
}

// JWTService выдает и проверяет токены сессии, полученные после входа через Telegram
type JWTService struct {
	secret         []byte
	expiry         time.Duration
	wsTicketExpiry time.Duration
	now            func() time.Time
}

// NewJWTService создает сервис JWT. Секрет обязателен.
func NewJWTService(secret string, expirationHrs int, wsTicketExpirySec int) (*JWTService, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	if expirationHrs <= 0 {
		expirationHrs = 24 * 7
	}
	if wsTicketExpirySec <= 0 {
		wsTicketExpirySec = 60
	}
	return &JWTService{
		secret:         []byte(secret),
		expiry:         time.Duration(expirationHrs) * time.Hour,
		wsTicketExpiry: time.Duration(wsTicketExpirySec) * time.Second,
		now:            time.Now,
	}, nil
}

// GenerateToken создает токен доступа для пользователя Telegram
func (s *JWTService) GenerateToken(telegramID int64) (string, error) {
	return s.sign(telegramID, usageAccess, s.expiry, "frontquiz-user")
}

// GenerateWSTicket создает короткоживущий токен для подключения к WebSocket
func (s *JWTService) GenerateWSTicket(telegramID int64) (string, error) {
	return s.sign(telegramID, usageWebSocket, s.wsTicketExpiry, "frontquiz-ws")
}

func (s *JWTService) sign(telegramID int64, usage string, ttl time.Duration, audience string) (string, error) {
	now := s.now()
	claims := &JWTCustomClaims{
		TelegramID: telegramID,
		Usage:      usage,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   strconv.FormatInt(telegramID, 10),
			Audience:  jwt.ClaimStrings{audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] Ошибка генерации токена (%s) для telegram_id=%d: %v", usage, telegramID, err)
		return "", err
	}
	return tokenString, nil
}

// ParseToken проверяет токен доступа
func (s *JWTService) ParseToken(tokenString string) (*JWTCustomClaims, error) {
	return s.parse(tokenString, usageAccess)
}

// ParseWSTicket проверяет тикет WebSocket
func (s *JWTService) ParseWSTicket(tokenString string) (*JWTCustomClaims, error) {
	return s.parse(tokenString, usageWebSocket)
}

func (s *JWTService) parse(tokenString, usage string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}

	parser := jwt.Parser{}
	parser.SkipClaimsValidation = true
	token, err := parser.ParseWithClaims(tokenString, claims, keyFunc)
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrTokenMalformed
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				log.Printf("[JWT] Неверная подпись токена")
				return nil, ErrTokenSignature
			}
		}
		log.Printf("[JWT] Ошибка при разборе токена: %v", err)
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	// Срок проверяем по собственным часам сервиса
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(s.now()) {
		return nil, ErrTokenExpired
	}
	if claims.Usage != usage {
		return nil, ErrTokenUsage
	}
	return claims, nil
}
