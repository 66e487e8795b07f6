package websocket

// MetricsProvider определяет методы для получения метрик хаба
type MetricsProvider interface {
	GetMetrics() map[string]interface{}
	ClientCount() int
}

// HubInterface - возможности хаба, которые использует Manager
type HubInterface interface {
	MetricsProvider

	// SendJSONToUser отправляет структуру JSON всем соединениям пользователя
	SendJSONToUser(userKey string, v interface{}) error

	// SendToUser отправляет байтовое сообщение всем соединениям пользователя
	SendToUser(userKey string, message []byte) bool

	// BroadcastJSON отправляет структуру JSON всем клиентам
	BroadcastJSON(v interface{}) error
}
