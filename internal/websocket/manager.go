package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundEvent - входящее сообщение, данные разбираются обработчиком
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventHandler обрабатывает входящее событие определенного типа
type EventHandler func(data json.RawMessage, client *Client) error

// Manager маршрутизирует входящие сообщения и отправляет события пользователям
type Manager struct {
	hub HubInterface

	mu       sync.RWMutex
	handlers map[string]EventHandler
	metrics  *HubMetrics
}

// NewManager создает новый менеджер WebSocket
func NewManager(hub HubInterface) *Manager {
	m := &Manager{
		hub:      hub,
		handlers: make(map[string]EventHandler),
	}
	if h, ok := hub.(*Hub); ok {
		m.metrics = h.metrics
	}
	m.RegisterHandler(EventPing, func(_ json.RawMessage, client *Client) error {
		m.SendToClient(client, Event{Type: "pong"})
		return nil
	})
	return m
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений
func (m *Manager) RegisterHandler(eventType string, handler EventHandler) {
	m.mu.Lock()
	m.handlers[eventType] = handler
	m.mu.Unlock()
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event inboundEvent
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("[WebSocketManager] Некорректное сообщение от %s: %v", client.UserKey, err)
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err
	}
	if m.metrics != nil {
		m.metrics.MessageReceived(event.Type)
	}

	m.mu.RLock()
	handler, ok := m.handlers[event.Type]
	m.mu.RUnlock()
	if !ok {
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}

	return handler(event.Data, client)
}

// SendToClient отправляет событие в конкретное соединение
func (m *Manager) SendToClient(client *Client, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[WebSocketManager] Ошибка сериализации события %s: %v", event.Type, err)
		return
	}
	if !client.enqueue(payload) {
		log.Printf("[WebSocketManager] Не удалось поставить событие %s в очередь соединения %s", event.Type, client.ConnectionID)
	}
}

// SendErrorToClient отправляет клиенту сообщение об ошибке, не закрывая соединение
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	m.SendToClient(client, Event{
		Type: EventServerError,
		Data: map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// SendEventToUser отправляет событие всем соединениям пользователя
func (m *Manager) SendEventToUser(userKey string, eventType string, data interface{}) error {
	return m.hub.SendJSONToUser(userKey, Event{Type: eventType, Data: data})
}

// BroadcastEvent отправляет событие всем клиентам
func (m *Manager) BroadcastEvent(eventType string, data interface{}) error {
	return m.hub.BroadcastJSON(Event{Type: eventType, Data: data})
}
