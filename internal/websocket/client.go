package websocket

import (
	"bytes"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 512

	// Размер буфера канала отправки
	defaultClientBufferSize = 32

	// Количество переполнений буфера до отключения клиента
	maxBufferWarnings = 3
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// MessageHandler обрабатывает входящее сообщение клиента.
// Ошибка считается фатальной и закрывает соединение.
type MessageHandler func(message []byte, client *Client) error

// Client - одно WebSocket-соединение пользователя
type Client struct {
	// Ключ пользователя (tg:<id> или anon:<session>)
	UserKey string

	// Уникальный ID для каждого соединения
	ConnectionID string

	hub  *Hub
	conn *websocket.Conn

	sendMu     sync.Mutex
	send       chan []byte
	sendClosed bool

	lastActivity   atomic.Int64
	bufferWarnings atomic.Int32
	closeOnce      sync.Once
}

// NewClient создает нового клиента
func NewClient(conn *websocket.Conn, userKey string) *Client {
	c := &Client{
		UserKey:      userKey,
		ConnectionID: uuid.New().String(),
		conn:         conn,
		send:         make(chan []byte, defaultClientBufferSize),
	}
	c.touch()
	return c
}

// LastActivity возвращает время последней активности клиента
func (c *Client) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// enqueue неблокирующе кладет сообщение в буфер
func (c *Client) enqueue(message []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// CloseSend закрывает канал отправки. Повторный вызов ничего не делает.
func (c *Client) CloseSend() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	c.sendClosed = true
	close(c.send)
	return true
}

func (c *Client) closeConn() {
	if c.conn == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

// StartPumps регистрирует клиента в хабе и запускает горутины чтения и записи
func (c *Client) StartPumps(hub *Hub, handler MessageHandler) {
	if c.UserKey == "" {
		log.Printf("[WebSocketClient] Клиент без ключа пользователя, соединение закрыто")
		c.closeConn()
		return
	}
	if !hub.Register(c) {
		log.Printf("[WebSocketClient] Хаб закрыт, соединение %s отклонено", c.ConnectionID)
		c.closeConn()
		return
	}

	go c.writePump()
	go c.readPump(handler)
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(handler MessageHandler) {
	defer func() {
		if c.hub != nil {
			c.hub.Unregister(c)
		}
		c.closeConn()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[WebSocketClient] Ошибка чтения (user=%s conn=%s): %v", c.UserKey, c.ConnectionID, err)
			}
			return
		}
		c.touch()
		c.bufferWarnings.Store(0)

		if err := safeHandleMessage(message, c, handler); err != nil {
			log.Printf("[WebSocketClient] Ошибка обработчика (user=%s conn=%s): %v. Соединение закрывается.", c.UserKey, c.ConnectionID, err)
			return
		}
	}
}

// safeHandleMessage вызывает обработчик с recover
func safeHandleMessage(message []byte, client *Client, handler MessageHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WebSocketClient] PANIC в обработчике (user=%s conn=%s): %v\n%s",
				client.UserKey, client.ConnectionID, r, string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if handler == nil {
		return nil
	}
	return handler(message, client)
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WebSocketClient] Ошибка записи (user=%s conn=%s): %v", c.UserKey, c.ConnectionID, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
