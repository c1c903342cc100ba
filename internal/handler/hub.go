package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"omnitip-relay/internal/models"
	"omnitip-relay/pkg/logger"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer 每个连接待发送消息的缓冲数，写满视为慢客户端
	sendBuffer = 32
)

// hubClient 单个看板连接，由独立的写协程发送消息
type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// TipHub 向看板推送新记录的预测
// 广播只做非阻塞投递，慢连接不会拖慢入站处理
type TipHub struct {
	clients  map[*hubClient]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
}

func NewTipHub() *TipHub {
	return &TipHub{
		clients:  make(map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

type tipEvent struct {
	Type string     `json:"type"`
	Tip  models.Tip `json:"tip"`
}

// TipRecorded 投递给所有连接，缓冲已满的连接被断开
func (h *TipHub) TipRecorded(tip models.Tip) {
	msg, err := json.Marshal(tipEvent{Type: "tip", Tip: tip})
	if err != nil {
		logger.Error("序列化预测事件失败:", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			logger.Debug("websocket 客户端过慢，断开连接")
			h.dropLocked(client)
		}
	}
}

func (h *TipHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve 升级为 websocket，启动写协程并保持读循环直到客户端断开
func (h *TipHub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket 升级失败: ", err)
		return
	}

	client := &hubClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writePump(client)
	go func() {
		defer h.remove(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writePump send 关闭后发送关闭帧并断开连接
func (h *TipHub) writePump(client *hubClient) {
	defer client.conn.Close()
	for msg := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug("websocket 写入失败: ", err)
			return
		}
	}
	_ = client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
		time.Now().Add(time.Second))
}

func (h *TipHub) remove(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(client)
}

// dropLocked 调用方需持有 h.mu
func (h *TipHub) dropLocked(client *hubClient) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Close 关闭所有连接
func (h *TipHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.dropLocked(client)
	}
}
