package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// HubConfig содержит настройки хаба
type HubConfig struct {
	// CleanupInterval - период проверки неактивных клиентов (0 отключает проверку)
	CleanupInterval time.Duration
	// InactivityTimeout - время без активности, после которого клиент отключается
	InactivityTimeout time.Duration
}

// DefaultHubConfig возвращает настройки хаба по умолчанию
func DefaultHubConfig() HubConfig {
	return HubConfig{
		CleanupInterval:   time.Minute,
		InactivityTimeout: 5 * time.Minute,
	}
}

// Hub хранит соединения, сгруппированные по ключу пользователя.
// У одного пользователя может быть несколько вкладок.
type Hub struct {
	cfg     HubConfig
	metrics *HubMetrics

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	closed  bool
}

// NewHub создает новый хаб
func NewHub(cfg HubConfig) *Hub {
	return &Hub{
		cfg:     cfg,
		metrics: NewHubMetrics(),
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Register добавляет клиента. Возвращает false, если хаб уже закрыт.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}

	set, ok := h.clients[c.UserKey]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserKey] = set
	}
	set[c] = struct{}{}
	c.hub = h
	h.metrics.ConnectionOpened()
	log.Printf("[WebSocketHub] Клиент подключен: user=%s conn=%s (соединений пользователя: %d)", c.UserKey, c.ConnectionID, len(set))
	return true
}

// Unregister удаляет клиента и закрывает его канал отправки
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	h.mu.Unlock()

	if removed {
		c.CloseSend()
		h.metrics.ConnectionClosed()
		log.Printf("[WebSocketHub] Клиент отключен: user=%s conn=%s", c.UserKey, c.ConnectionID)
	}
}

func (h *Hub) removeLocked(c *Client) bool {
	set, ok := h.clients[c.UserKey]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserKey)
	}
	return true
}

// SendToUser отправляет сообщение всем соединениям пользователя.
// Возвращает true, если сообщение поставлено в очередь хотя бы одному соединению.
func (h *Hub) SendToUser(userKey string, message []byte) bool {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userKey]))
	for c := range h.clients[userKey] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := false
	for _, c := range targets {
		if h.deliver(c, message) {
			delivered = true
		}
	}
	return delivered
}

// SendJSONToUser сериализует v и отправляет пользователю
func (h *Hub) SendJSONToUser(userKey string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", userKey, err)
	}
	h.SendToUser(userKey, payload)
	return nil
}

// BroadcastJSON отправляет сообщение всем подключенным клиентам
func (h *Hub) BroadcastJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast message: %w", err)
	}

	h.mu.RLock()
	targets := make([]*Client, 0)
	for _, set := range h.clients {
		for c := range set {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, payload)
	}
	return nil
}

// deliver ставит сообщение в буфер клиента. Клиент, у которого буфер переполняется
// несколько раз подряд, отключается.
func (h *Hub) deliver(c *Client, message []byte) bool {
	if c.enqueue(message) {
		h.metrics.MessageSent()
		return true
	}

	h.metrics.MessageDropped()
	warnings := c.bufferWarnings.Add(1)
	log.Printf("[WebSocketHub] Буфер клиента %s (conn %s) переполнен, предупреждение %d/%d", c.UserKey, c.ConnectionID, warnings, maxBufferWarnings)
	if warnings >= maxBufferWarnings {
		go h.Unregister(c)
	}
	return false
}

// ClientCount возвращает общее количество соединений
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// UserConnections возвращает количество соединений пользователя
func (h *Hub) UserConnections(userKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userKey])
}

// GetMetrics возвращает метрики хаба
func (h *Hub) GetMetrics() map[string]interface{} {
	m := h.metrics.Snapshot()
	h.mu.RLock()
	m["connected_users"] = len(h.clients)
	h.mu.RUnlock()
	return m
}

// Run периодически отключает неактивных клиентов до отмены контекста
func (h *Hub) Run(ctx context.Context) {
	if h.cfg.CleanupInterval <= 0 {
		log.Printf("[WebSocketHub] Очистка неактивных клиентов отключена")
		<-ctx.Done()
		h.Close()
		return
	}

	ticker := time.NewTicker(h.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Close()
			return
		case <-ticker.C:
			h.cleanupInactive(time.Now())
		}
	}
}

// cleanupInactive отключает клиентов без активности дольше InactivityTimeout
func (h *Hub) cleanupInactive(now time.Time) int {
	h.mu.RLock()
	var stale []*Client
	for _, set := range h.clients {
		for c := range set {
			if now.Sub(c.LastActivity()) > h.cfg.InactivityTimeout {
				stale = append(stale, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.Unregister(c)
		c.closeConn()
	}
	h.metrics.InactiveRemoved(len(stale))
	if len(stale) > 0 {
		log.Printf("[WebSocketHub] Отключено неактивных клиентов: %d", len(stale))
	}
	return len(stale)
}

// Close отключает всех клиентов и запрещает новые подключения
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	all := make([]*Client, 0)
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.CloseSend()
		c.closeConn()
		h.metrics.ConnectionClosed()
	}
	log.Printf("[WebSocketHub] Хаб остановлен, закрыто соединений: %d", len(all))
}
