package server

import (
	"sync/atomic"
)

// Metrics 记录服务运行期的关键指标（用于监控与调试）
type Metrics struct {
	Connections     int64 // 当前连接数
	MessagesIn      int64 // 收到的入站帧
	CommandsIgnored int64 // 状态不对、未授权、解码失败等被静默忽略的命令
	MovesAccepted   int64
	MovesRejected   int64 // 无路径
	LayoutEdits     int64 // 被接受的布局编辑
	MessagesOut     int64 // 入队的出站帧
	MessagesDropped int64 // 因发送队列满被丢弃的出站帧
	Panics          int64 // 单连接命令处理中被恢复的 panic
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) IncConnections()     { atomic.AddInt64(&m.Connections, 1) }
func (m *Metrics) DecConnections()     { atomic.AddInt64(&m.Connections, -1) }
func (m *Metrics) IncMessagesIn()      { atomic.AddInt64(&m.MessagesIn, 1) }
func (m *Metrics) IncIgnored()         { atomic.AddInt64(&m.CommandsIgnored, 1) }
func (m *Metrics) IncMovesAccepted()   { atomic.AddInt64(&m.MovesAccepted, 1) }
func (m *Metrics) IncMovesRejected()   { atomic.AddInt64(&m.MovesRejected, 1) }
func (m *Metrics) IncLayoutEdits()     { atomic.AddInt64(&m.LayoutEdits, 1) }
func (m *Metrics) IncMessagesOut()     { atomic.AddInt64(&m.MessagesOut, 1) }
func (m *Metrics) IncMessagesDropped() { atomic.AddInt64(&m.MessagesDropped, 1) }
func (m *Metrics) IncPanics()          { atomic.AddInt64(&m.Panics, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"connections":      atomic.LoadInt64(&m.Connections),
		"messages_in":      atomic.LoadInt64(&m.MessagesIn),
		"commands_ignored": atomic.LoadInt64(&m.CommandsIgnored),
		"moves_accepted":   atomic.LoadInt64(&m.MovesAccepted),
		"moves_rejected":   atomic.LoadInt64(&m.MovesRejected),
		"layout_edits":     atomic.LoadInt64(&m.LayoutEdits),
		"messages_out":     atomic.LoadInt64(&m.MessagesOut),
		"messages_dropped": atomic.LoadInt64(&m.MessagesDropped),
		"panics":           atomic.LoadInt64(&m.Panics),
	}
}
