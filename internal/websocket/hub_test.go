package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient создает клиента без сетевого соединения
func newTestClient(userKey string) *Client {
	return NewClient(nil, userKey)
}

func readEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("сообщение не получено")
		return Event{}
	}
}

func TestHub_SendToUserReachesAllTabs(t *testing.T) {
	// Arrange
	hub := NewHub(DefaultHubConfig())
	tab1 := newTestClient("tg:1")
	tab2 := newTestClient("tg:1")
	other := newTestClient("tg:2")
	require.True(t, hub.Register(tab1))
	require.True(t, hub.Register(tab2))
	require.True(t, hub.Register(other))

	// Act
	err := hub.SendJSONToUser("tg:1", Event{Type: EventAssessmentChanged, Data: "x"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, EventAssessmentChanged, readEvent(t, tab1).Type)
	assert.Equal(t, EventAssessmentChanged, readEvent(t, tab2).Type)
	assert.Len(t, other.send, 0, "Другой пользователь не получает событие")
	assert.Equal(t, 3, hub.ClientCount())
	assert.Equal(t, 2, hub.UserConnections("tg:1"))
}

func TestManager_BroadcastEventReachesEveryone(t *testing.T) {
	hub := NewHub(DefaultHubConfig())
	a := newTestClient("tg:1")
	b := newTestClient("anon:2")
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))

	require.NoError(t, NewManager(hub).BroadcastEvent(EventServerShutdown, nil))

	assert.Equal(t, EventServerShutdown, readEvent(t, a).Type)
	assert.Equal(t, EventServerShutdown, readEvent(t, b).Type)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(DefaultHubConfig())
	c := newTestClient("anon:1")
	hub.Register(c)

	hub.Unregister(c)
	hub.Unregister(c)

	assert.Equal(t, 0, hub.ClientCount())
	assert.False(t, hub.SendToUser("anon:1", []byte("{}")))
	_, open := <-c.send
	assert.False(t, open, "Канал отправки закрыт")
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	// Arrange: заполняем буфер клиента
	hub := NewHub(DefaultHubConfig())
	c := newTestClient("tg:9")
	hub.Register(c)
	for i := 0; i < defaultClientBufferSize; i++ {
		require.True(t, hub.SendToUser("tg:9", []byte("{}")))
	}

	// Act: каждое следующее сообщение не помещается
	for i := 0; i < maxBufferWarnings; i++ {
		assert.False(t, hub.SendToUser("tg:9", []byte("{}")))
	}

	// Assert
	assert.Eventually(t, func() bool { return hub.UserConnections("tg:9") == 0 }, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, maxBufferWarnings, hub.GetMetrics()["messages_dropped"])
}

func TestHub_CleanupInactive(t *testing.T) {
	hub := NewHub(HubConfig{CleanupInterval: time.Minute, InactivityTimeout: time.Minute})
	idle := newTestClient("tg:1")
	active := newTestClient("tg:2")
	hub.Register(idle)
	hub.Register(active)
	idle.lastActivity.Store(time.Now().Add(-2 * time.Minute).UnixNano())

	removed := hub.cleanupInactive(time.Now())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, hub.UserConnections("tg:1"))
	assert.Equal(t, 1, hub.UserConnections("tg:2"))
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	hub := NewHub(DefaultHubConfig())
	hub.Register(newTestClient("tg:1"))

	hub.Close()

	assert.Equal(t, 0, hub.ClientCount())
	assert.False(t, hub.Register(newTestClient("tg:2")))
}

func TestManager_HandleMessage(t *testing.T) {
	// Arrange
	hub := NewHub(DefaultHubConfig())
	m := NewManager(hub)
	c := newTestClient("tg:1")
	hub.Register(c)

	var gotKey string
	m.RegisterHandler(EventAssessmentSync, func(_ json.RawMessage, client *Client) error {
		gotKey = client.UserKey
		return nil
	})

	// Act & Assert: известный тип
	require.NoError(t, m.HandleMessage([]byte(`{"type":"assessment:sync"}`), c))
	assert.Equal(t, "tg:1", gotKey)

	// неизвестный тип не закрывает соединение
	require.NoError(t, m.HandleMessage([]byte(`{"type":"dance"}`), c))
	assert.Equal(t, EventServerError, readEvent(t, c).Type)

	// ping
	require.NoError(t, m.HandleMessage([]byte(`{"type":"ping"}`), c))
	assert.Equal(t, "pong", readEvent(t, c).Type)

	// мусор закрывает соединение
	assert.Error(t, m.HandleMessage([]byte(`not json`), c))
}

func TestWebSocketMetricsHandler(t *testing.T) {
	hub := NewHub(DefaultHubConfig())
	hub.Register(newTestClient("tg:1"))

	w := httptest.NewRecorder()
	WebSocketMetricsHandler(hub)(w, httptest.NewRequest(http.MethodGet, "/metrics/ws", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active_connections":1`)

	w = httptest.NewRecorder()
	WebSocketMetricsHandler(hub)(w, httptest.NewRequest(http.MethodGet, "/metrics/ws?format=prometheus", nil))
	assert.Contains(t, w.Body.String(), "websocket_active_connections 1")
}
