package websocket

// Типы событий, отправляемых сервером
const (
	// EventConnected подтверждает подключение и сообщает ключ пользователя
	EventConnected = "server:connected"

	// EventServerError сообщает клиенту об ошибке обработки сообщения
	EventServerError = "server:error"

	// EventAssessmentChanged несет новое состояние тестирования пользователя
	EventAssessmentChanged = "assessment:changed"

	// EventServerShutdown рассылается всем клиентам перед остановкой сервера
	EventServerShutdown = "server:shutdown"
)

// Типы сообщений, принимаемых от клиента
const (
	// EventAssessmentSync запрашивает текущее состояние тестирования
	EventAssessmentSync = "assessment:sync"

	// EventPing - прикладной ping для клиентов, которые не умеют отвечать на ping-фреймы
	EventPing = "ping"
)
