package room

// Event 房间产生的领域事件；分发器负责把它们转换成网络消息并扇出
type Event interface {
	RoomID() string
}

// EventSink 接收房间事件。Publish 在房间锁内被调用，
// 实现方不得阻塞，也不得回调同一房间的方法。
type EventSink interface {
	Publish(ev Event)
}

// SinkFunc 函数适配器
type SinkFunc func(ev Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

type discardSink struct{}

func (discardSink) Publish(Event) {}

// Fanout 依次把事件交给多个订阅者
func Fanout(sinks ...EventSink) EventSink {
	return SinkFunc(func(ev Event) {
		for _, s := range sinks {
			s.Publish(ev)
		}
	})
}

// MapState 发送给客户端的地图定义
type MapState struct {
	GridDivision int    `json:"gridDivision"`
	Size         [2]int `json:"size"`
	Items        []Item `json:"items"`
}

// CharacterJoined 仅发给加入者的完整房间快照
type CharacterJoined struct {
	Room       string
	ID         string
	Map        MapState
	Characters []Character
}

// RosterChanged 房间名单变化（加入、离开、换外观）。
// Membership 为 true 时人数发生变化，大厅列表也需要刷新。
type RosterChanged struct {
	Room       string
	Recipients []string
	Characters []Character
	Membership bool
}

// CharacterMoved 移动被接受
type CharacterMoved struct {
	Room       string
	Recipients []string
	Character  Character
}

// CharacterDanced 跳舞（无状态转发）
type CharacterDanced struct {
	Room       string
	Recipients []string
	ID         string
}

// ChatMessage 聊天（无状态转发，不做内容校验）
type ChatMessage struct {
	Room       string
	Recipients []string
	ID         string
	Message    string
}

// PasswordChecked 密码校验结果，只发给请求者
type PasswordChecked struct {
	Room string
	To   string
	OK   bool
}

// ItemsChanged 布局编辑被接受；Definition 用于持久化
type ItemsChanged struct {
	Room       string
	Recipients []string
	Map        MapState
	Characters []Character
	Definition Definition
}

func (e CharacterJoined) RoomID() string { return e.Room }
func (e RosterChanged) RoomID() string   { return e.Room }
func (e CharacterMoved) RoomID() string  { return e.Room }
func (e CharacterDanced) RoomID() string { return e.Room }
func (e ChatMessage) RoomID() string     { return e.Room }
func (e PasswordChecked) RoomID() string { return e.Room }
func (e ItemsChanged) RoomID() string    { return e.Room }
