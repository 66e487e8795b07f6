package websocket

import (
	"sync"
	"sync/atomic"
	"time"
)

// HubMetrics - агрегированные метрики WebSocket-сервера
type HubMetrics struct {
	totalConnections       atomic.Int64
	activeConnections      atomic.Int64
	messagesSent           atomic.Int64
	messagesDropped        atomic.Int64
	messagesReceived       atomic.Int64
	inactiveClientsRemoved atomic.Int64
	startTime              time.Time

	mu                sync.Mutex
	lastCleanupTime   time.Time
	messageTypeCounts map[string]int64
}

// NewHubMetrics создает новый экземпляр метрик
func NewHubMetrics() *HubMetrics {
	now := time.Now()
	return &HubMetrics{
		startTime:         now,
		lastCleanupTime:   now,
		messageTypeCounts: make(map[string]int64),
	}
}

// ConnectionOpened учитывает новое соединение
func (m *HubMetrics) ConnectionOpened() {
	m.totalConnections.Add(1)
	m.activeConnections.Add(1)
}

// ConnectionClosed учитывает закрытое соединение
func (m *HubMetrics) ConnectionClosed() {
	if m.activeConnections.Add(-1) < 0 {
		m.activeConnections.Store(0)
	}
}

// MessageSent учитывает отправленное сообщение
func (m *HubMetrics) MessageSent() {
	m.messagesSent.Add(1)
}

// MessageDropped учитывает сообщение, не поместившееся в буфер клиента
func (m *HubMetrics) MessageDropped() {
	m.messagesDropped.Add(1)
}

// MessageReceived учитывает входящее сообщение заданного типа
func (m *HubMetrics) MessageReceived(messageType string) {
	m.messagesReceived.Add(1)
	m.mu.Lock()
	m.messageTypeCounts[messageType]++
	m.mu.Unlock()
}

// InactiveRemoved учитывает клиентов, отключенных по неактивности
func (m *HubMetrics) InactiveRemoved(count int) {
	m.inactiveClientsRemoved.Add(int64(count))
	m.mu.Lock()
	m.lastCleanupTime = time.Now()
	m.mu.Unlock()
}

// Snapshot возвращает копию метрик
func (m *HubMetrics) Snapshot() map[string]interface{} {
	m.mu.Lock()
	types := make(map[string]int64, len(m.messageTypeCounts))
	for k, v := range m.messageTypeCounts {
		types[k] = v
	}
	lastCleanup := m.lastCleanupTime
	m.mu.Unlock()

	return map[string]interface{}{
		"total_connections":        m.totalConnections.Load(),
		"active_connections":       m.activeConnections.Load(),
		"messages_sent":            m.messagesSent.Load(),
		"messages_dropped":         m.messagesDropped.Load(),
		"messages_received":        m.messagesReceived.Load(),
		"inactive_clients_removed": m.inactiveClientsRemoved.Load(),
		"uptime_seconds":           int64(time.Since(m.startTime).Seconds()),
		"last_cleanup":             lastCleanup.Format(time.RFC3339),
		"message_types":            types,
	}
}
