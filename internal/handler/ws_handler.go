package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/teamsforge/frontquiz-api/internal/handler/dto"
	"github.com/teamsforge/frontquiz-api/internal/middleware"
	"github.com/teamsforge/frontquiz-api/internal/service/assessment"
	"github.com/teamsforge/frontquiz-api/internal/websocket"
	"github.com/teamsforge/frontquiz-api/pkg/auth"
)

// TicketParser проверяет тикет WebSocket
type TicketParser interface {
	ParseWSTicket(tokenString string) (*auth.JWTCustomClaims, error)
}

// WSHandler обрабатывает WebSocket соединения и рассылает изменения сессий самопроверки
type WSHandler struct {
	hub         *websocket.Hub
	wsManager   *websocket.Manager
	assessments *assessment.Manager
	tickets     TicketParser
	upgrader    gorillaws.Upgrader
}

// NewWSHandler создает обработчик WebSocket и подписывает его на изменения сессий
func NewWSHandler(
	hub *websocket.Hub,
	wsManager *websocket.Manager,
	assessments *assessment.Manager,
	tickets TicketParser,
	allowedOrigins []string,
) *WSHandler {
	h := &WSHandler{
		hub:         hub,
		wsManager:   wsManager,
		assessments: assessments,
		tickets:     tickets,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   4096,
			CheckOrigin:       originChecker(allowedOrigins),
			EnableCompression: true,
		},
	}

	h.registerMessageHandlers()
	assessments.OnChange(h.publishChange)
	return h
}

// originChecker разрешает подключения без Origin (не браузерные клиенты) и из списка
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		log.Printf("[WSHandler] Отклонен origin: %s", origin)
		return false
	}
}

// HandleConnection обрабатывает входящее WebSocket соединение.
// Пользователь определяется по ?ticket= (после входа) или по ?session_id= (анонимно).
func (h *WSHandler) HandleConnection(c *gin.Context) {
	userKey, ok := h.resolveUserKey(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid ticket or session_id", "error_type": "identity_missing"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WSHandler] Ошибка upgrade соединения: %v", err)
		return
	}

	client := websocket.NewClient(conn, userKey)
	client.StartPumps(h.hub, h.wsManager.HandleMessage)

	h.wsManager.SendToClient(client, websocket.Event{
		Type: websocket.EventConnected,
		Data: gin.H{"connection_id": client.ConnectionID},
	})
	h.sendState(client)
}

func (h *WSHandler) resolveUserKey(c *gin.Context) (string, bool) {
	if ticket := c.Query("ticket"); ticket != "" {
		claims, err := h.tickets.ParseWSTicket(ticket)
		if err != nil {
			log.Printf("[WSHandler] Недействительный тикет: %v", err)
			return "", false
		}
		return middleware.TelegramKey(claims.TelegramID), true
	}
	return middleware.AnonymousKey(c.Query("session_id"))
}

// registerMessageHandlers регистрирует обработчики входящих сообщений
func (h *WSHandler) registerMessageHandlers() {
	h.wsManager.RegisterHandler(websocket.EventAssessmentSync, func(_ json.RawMessage, client *websocket.Client) error {
		h.sendState(client)
		return nil
	})
}

// sendState отправляет клиенту текущее состояние, если сессия уже существует
func (h *WSHandler) sendState(client *websocket.Client) {
	s, ok := h.assessments.Lookup(client.UserKey)
	if !ok {
		return
	}
	h.wsManager.SendToClient(client, websocket.Event{
		Type: websocket.EventAssessmentChanged,
		Data: dto.AssessmentEvent{
			Action: "sync",
			State:  dto.NewAssessmentResponse(s.State(), h.assessments.Config().Topics),
		},
	})
}

// publishChange рассылает изменение сессии всем соединениям пользователя
func (h *WSHandler) publishChange(userKey string, ev assessment.ChangeEvent) {
	payload := dto.AssessmentEvent{
		Action: ev.Action,
		State:  dto.NewAssessmentResponse(ev.View, h.assessments.Config().Topics),
	}
	if err := h.wsManager.SendEventToUser(userKey, websocket.EventAssessmentChanged, payload); err != nil {
		log.Printf("[WSHandler] Ошибка отправки события %s пользователю %s: %v", ev.Action, userKey, err)
	}
}
