package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"hangout/config"
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws  *websocket.Conn
	cfg config.WebSocketConfig

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClientConn(ws *websocket.Conn, cfg config.WebSocketConfig) *ClientConn {
	return &ClientConn{
		ws:   ws,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendBuffer),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性，丢弃新消息（防止阻塞房间）
		return false
	}
}

// Close 关闭发送队列与底层连接（幂等）
func (c *ClientConn) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send) // 关闭发送通道以结束写协程
	}
	c.mu.Unlock()
	_ = c.ws.Close()
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定时发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端帧，交给会话逐条处理；退出时离开房间并注销连接
func (c *ClientConn) readPump(sess *Session, onClose func()) {
	defer func() {
		sess.Close()
		onClose()
		c.Close()
	}()
	c.ws.SetReadLimit(c.cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.log.Debugw("read error", "error", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			sess.metrics.IncIgnored()
			continue
		}
		if !sess.SafeHandle(env) {
			return
		}
	}
}

func (s *Server) upgrader() websocket.Upgrader {
	allowAll := false
	allowed := make(map[string]bool, len(s.cfg.Server.AllowedOrigins))
	for _, o := range s.cfg.Server.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// 非浏览器客户端不带 Origin
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// HandleWS WebSocket 接入：每个连接分配一个 uuid 作为角色标识
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrade.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugw("upgrade error", "error", err)
		return
	}

	id := uuid.NewString()
	client := NewClientConn(ws, s.cfg.WebSocket)
	s.hub.Register(id, client)
	s.metrics.IncConnections()
	s.log.Debugw("connection opened", "conn", id, "remote", r.RemoteAddr)

	sess := NewSession(id, s.registry, s.hub, s.catalog, s.log, s.metrics)
	sess.Welcome()

	go client.writePump()
	go client.readPump(sess, func() {
		s.hub.Unregister(id)
		s.metrics.DecConnections()
		s.log.Debugw("connection closed", "conn", id)
	})
}
