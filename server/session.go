package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"hangout/room"
	"hangout/store"
)

var (
	errNotJoined   = errors.New("not joined to a room")
	errUnknownRoom = errors.New("unknown room")
	errUnknownType = errors.New("unknown message type")
)

// Session 一个连接的会话状态机：
// Connected(未加入) → Joined(房间, 角色) → 连接断开。
// 只由该连接的读协程访问，无需加锁。
type Session struct {
	id       string
	registry *room.Registry
	hub      *Hub
	catalog  store.Catalog
	log      *zap.SugaredLogger
	metrics  *Metrics

	current *room.Room
}

func NewSession(id string, registry *room.Registry, hub *Hub, catalog store.Catalog, log *zap.SugaredLogger, metrics *Metrics) *Session {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Session{
		id:       id,
		registry: registry,
		hub:      hub,
		catalog:  catalog,
		log:      log.With("conn", id),
		metrics:  metrics,
	}
}

// ID 连接标识（即角色标识）
func (s *Session) ID() string { return s.id }

// Room 当前所在房间，未加入时为 nil
func (s *Session) Room() *room.Room { return s.current }

// Welcome 连接建立时下发大厅列表与家具目录
func (s *Session) Welcome() {
	s.hub.Welcome(s.id, s.catalog)
}

// SafeHandle 处理一条命令。panic 被恢复并记录，返回 false，
// 调用方随后只关闭这一个连接，其他连接不受影响。
func (s *Session) SafeHandle(env Envelope) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.IncPanics()
			s.log.Errorw("panic while handling command, closing connection",
				"type", env.Type, "panic", r, "stack", string(debug.Stack()))
			ok = false
		}
	}()
	s.Handle(env)
	return true
}

// Handle 分发一条入站命令。
// 状态不对、未授权、校验失败的命令一律静默忽略，只记录 debug 日志。
func (s *Session) Handle(env Envelope) {
	s.metrics.IncMessagesIn()
	if err := s.dispatch(env); err != nil {
		s.metrics.IncIgnored()
		s.log.Debugw("command ignored", "type", env.Type, "reason", err)
	}
}

func (s *Session) dispatch(env Envelope) error {
	switch env.Type {
	case TypeJoinRoom:
		var in JoinRoomInput
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		return s.joinRoom(in)
	case TypeLeaveRoom:
		s.leaveRoom()
		return nil
	case TypeAvatarUpdate:
		var in AvatarInput
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		return s.withRoom(func(r *room.Room) error { return r.UpdateAvatar(s.id, in.AvatarURL) })
	case TypeMove:
		var in MoveInput
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		return s.move(in)
	case TypeDance:
		return s.withRoom(func(r *room.Room) error { return r.Dance(s.id) })
	case TypeChatMessage:
		var in ChatInput
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		return s.withRoom(func(r *room.Room) error { return r.Chat(s.id, in.Message) })
	case TypePasswordChk:
		var in PasswordInput
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		return s.withRoom(func(r *room.Room) error {
			_, err := r.CheckPassword(s.id, in.Password)
			return err
		})
	case TypeItemsUpdate:
		var in ItemsInput
		if err := decode(env.Payload, &in); err != nil {
			return err
		}
		return s.updateItems(in)
	default:
		return fmt.Errorf("%w: %q", errUnknownType, env.Type)
	}
}

// joinRoom 房间不存在时静默忽略（大厅列表可能已过期）。
// 已在其他房间时先完整离开，保证任何时刻只属于一个房间。
func (s *Session) joinRoom(in JoinRoomInput) error {
	r, ok := s.registry.Find(in.RoomID)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownRoom, in.RoomID)
	}
	s.leaveRoom()
	if _, err := r.Join(s.id, room.JoinOptions{AvatarURL: in.AvatarURL}); err != nil {
		return err
	}
	s.current = r
	s.log.Infow("joined room", "room", r.ID)
	return nil
}

// leaveRoom 幂等：未加入时什么也不做
func (s *Session) leaveRoom() {
	if s.current == nil {
		return
	}
	if s.current.Leave(s.id) {
		s.log.Infow("left room", "room", s.current.ID)
	}
	s.current = nil
}

func (s *Session) move(in MoveInput) error {
	return s.withRoom(func(r *room.Room) error {
		if _, err := r.RequestMove(s.id, in.From, in.To); err != nil {
			if errors.Is(err, room.ErrNoPath) {
				s.metrics.IncMovesRejected()
			}
			return err
		}
		s.metrics.IncMovesAccepted()
		return nil
	})
}

func (s *Session) updateItems(in ItemsInput) error {
	return s.withRoom(func(r *room.Room) error {
		if err := r.SetItems(s.id, in.Items); err != nil {
			return err
		}
		s.metrics.IncLayoutEdits()
		s.log.Infow("layout updated", "room", r.ID, "items", len(in.Items))
		return nil
	})
}

func (s *Session) withRoom(fn func(r *room.Room) error) error {
	if s.current == nil {
		return errNotJoined
	}
	return fn(s.current)
}

// Close 连接断开：离开房间（可重复调用）
func (s *Session) Close() {
	s.leaveRoom()
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}
