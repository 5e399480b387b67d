package server

import (
	"sync"

	"go.uber.org/zap"

	"hangout/room"
	"hangout/store"
)

// Sender 连接的发送端；Enqueue 必须非阻塞，队列满时返回 false
type Sender interface {
	Enqueue(b []byte) bool
}

// Hub 订阅房间事件并把它们扇出到对应连接。
// 房间只产生领域事件，不接触网络；Hub 不持有任何房间状态。
type Hub struct {
	log     *zap.SugaredLogger
	metrics *Metrics

	mu    sync.RWMutex
	conns map[string]Sender

	// lobbyMu 串行化大厅列表的“计算 + 入队”，保证最后送达的总是最新人数
	lobbyMu sync.Mutex

	summarize func() []room.Summary
}

func NewHub(log *zap.SugaredLogger, metrics *Metrics) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Hub{
		log:       log,
		metrics:   metrics,
		conns:     make(map[string]Sender),
		summarize: func() []room.Summary { return nil },
	}
}

// Attach 绑定房间集合，用于成员变化时向所有人推送大厅列表
func (h *Hub) Attach(reg *room.Registry) {
	h.summarize = reg.Summarize
}

// Register 登记连接
func (h *Hub) Register(id string, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = s
}

// Unregister 注销连接（幂等）
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

// Send 发给单个连接
func (h *Hub) Send(id, typ string, payload any) {
	b, err := encode(typ, payload)
	if err != nil {
		h.log.Errorw("encoding message failed", "type", typ, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(h.conns[id], b)
}

// SendTo 发给一组连接
func (h *Hub) SendTo(ids []string, typ string, payload any) {
	b, err := encode(typ, payload)
	if err != nil {
		h.log.Errorw("encoding message failed", "type", typ, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range ids {
		h.deliver(h.conns[id], b)
	}
}

// Broadcast 发给所有连接（含未加入房间的大厅连接）
func (h *Hub) Broadcast(typ string, payload any) {
	b, err := encode(typ, payload)
	if err != nil {
		h.log.Errorw("encoding message failed", "type", typ, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.conns {
		h.deliver(s, b)
	}
}

func (h *Hub) deliver(s Sender, b []byte) {
	if s == nil {
		return
	}
	if s.Enqueue(b) {
		h.metrics.IncMessagesOut()
	} else {
		h.metrics.IncMessagesDropped()
	}
}

// broadcastRooms 在 lobbyMu 内重新计算并推送大厅列表。
// 人数先于推送变化，所以排在最后的推送一定看到了所有变化。
func (h *Hub) broadcastRooms() {
	h.lobbyMu.Lock()
	defer h.lobbyMu.Unlock()
	h.Broadcast(TypeRooms, h.summarize())
}

// Welcome 向新连接下发大厅列表与家具目录，与大厅推送同序
func (h *Hub) Welcome(id string, items store.Catalog) {
	h.lobbyMu.Lock()
	defer h.lobbyMu.Unlock()
	h.Send(id, TypeWelcome, WelcomeOutput{Rooms: h.summarize(), Items: items})
}

// Summaries 当前大厅列表
func (h *Hub) Summaries() []room.Summary {
	return h.summarize()
}

// Publish 实现 room.EventSink；在房间锁内被调用，只做非阻塞入队
func (h *Hub) Publish(ev room.Event) {
	switch e := ev.(type) {
	case room.CharacterJoined:
		h.Send(e.ID, TypeRoomJoined, RoomJoinedOutput{Map: e.Map, Characters: e.Characters, ID: e.ID})
	case room.RosterChanged:
		h.SendTo(e.Recipients, TypeCharacters, e.Characters)
		if e.Membership {
			h.broadcastRooms()
		}
	case room.CharacterMoved:
		h.SendTo(e.Recipients, TypePlayerMove, e.Character)
	case room.CharacterDanced:
		h.SendTo(e.Recipients, TypePlayerDance, DanceOutput{ID: e.ID})
	case room.ChatMessage:
		h.SendTo(e.Recipients, TypePlayerChatMessage, ChatOutput{ID: e.ID, Message: e.Message})
	case room.PasswordChecked:
		if e.OK {
			h.Send(e.To, TypePasswordSuccess, nil)
		} else {
			h.Send(e.To, TypePasswordFail, nil)
		}
	case room.ItemsChanged:
		h.SendTo(e.Recipients, TypeMapUpdate, MapUpdateOutput{Map: e.Map, Characters: e.Characters})
	default:
		h.log.Warnw("unhandled room event", "room", ev.RoomID())
	}
}
