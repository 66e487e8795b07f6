package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/teamsforge/frontquiz-api/internal/handler/dto"
	"github.com/teamsforge/frontquiz-api/internal/middleware"
	apperrors "github.com/teamsforge/frontquiz-api/internal/pkg/errors"
	"github.com/teamsforge/frontquiz-api/internal/service"
)

// LoginService - операции входа через Telegram, которые использует AuthHandler
type LoginService interface {
	IssueLoginToken(ctx context.Context, telegramID int64) (string, error)
	PeekToken(ctx context.Context, token string) (int64, error)
	RedeemToken(ctx context.Context, token string) (*service.LoginResult, error)
	VerifyTelegramWidget(fields map[string]string) (int64, error)
}

// TicketIssuer выдает тикеты для WebSocket
type TicketIssuer interface {
	GenerateWSTicket(telegramID int64) (string, error)
}

// AuthHandler обрабатывает запросы входа через Telegram
type AuthHandler struct {
	logins          LoginService
	tickets         TicketIssuer
	frontendURL     string
	ticketExpirySec int
}

// NewAuthHandler создает новый обработчик аутентификации
func NewAuthHandler(logins LoginService, tickets TicketIssuer, frontendURL string, ticketExpirySec int) *AuthHandler {
	return &AuthHandler{
		logins:          logins,
		tickets:         tickets,
		frontendURL:     strings.TrimRight(frontendURL, "/"),
		ticketExpirySec: ticketExpirySec,
	}
}

// CheckToken проверяет токен входа, не расходуя его
func (h *AuthHandler) CheckToken(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Token is required", "error_type": "token_missing"})
		return
	}

	telegramID, err := h.logins.PeekToken(c.Request.Context(), token)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "telegram_id": telegramID})
}

// RedeemToken обменивает одноразовый токен входа на токен доступа
func (h *AuthHandler) RedeemToken(c *gin.Context) {
	var req dto.RedeemTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Token is required", "error_type": "token_missing"})
		return
	}

	result, err := h.logins.RedeemToken(c.Request.Context(), req.Token)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Success:     true,
		TelegramID:  result.TelegramID,
		AccessToken: result.AccessToken,
	})
}

// TelegramWidgetLogin проверяет данные Telegram Login Widget, выдает токен входа
// и перенаправляет на фронтенд
func (h *AuthHandler) TelegramWidgetLogin(c *gin.Context) {
	fields, err := widgetFields(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid widget payload", "error_type": "validation_error"})
		return
	}

	telegramID, err := h.logins.VerifyTelegramWidget(fields)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	token, err := h.logins.IssueLoginToken(c.Request.Context(), telegramID)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("%s/auth?token=%s", h.frontendURL, url.QueryEscape(token)))
}

// GenerateWsTicket выдает короткоживущий тикет для подключения к WebSocket
func (h *AuthHandler) GenerateWsTicket(c *gin.Context) {
	telegramID := middleware.GetTelegramID(c)
	if telegramID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
		return
	}

	ticket, err := h.tickets.GenerateWSTicket(telegramID)
	if err != nil {
		log.Printf("[AuthHandler] Ошибка генерации WS-тикета: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate WebSocket ticket"})
		return
	}
	c.JSON(http.StatusOK, dto.WSTicketResponse{Ticket: ticket, ExpiresIn: h.ticketExpirySec})
}

// widgetFields собирает поля виджета из JSON, формы или query
func widgetFields(c *gin.Context) (map[string]string, error) {
	fields := make(map[string]string)

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var raw map[string]interface{}
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				fields[k] = val
			case json.Number:
				fields[k] = val.String()
			case bool:
				fields[k] = fmt.Sprintf("%t", val)
			}
		}
		return fields, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	for k, v := range c.Request.Form {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

// handleAuthError преобразует ошибки входа в HTTP-ответы
func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrExpiredToken):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Токен истек", "error_type": "token_expired"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Недействительный токен", "error_type": "token_invalid"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Ошибка валидации данных", "error_type": "validation_error"})
	case errors.Is(err, service.ErrFeatureDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Вход через Telegram не настроен", "error_type": "feature_disabled"})
	default:
		log.Printf("[AuthHandler] Auth Error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Внутренняя ошибка сервера", "error_type": "internal_server_error"})
	}
}
